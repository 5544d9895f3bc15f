package cmd

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/alphabill-org/guardian-core/types"
	"github.com/alphabill-org/guardian-core/verifier"
)

type verifyOutput struct {
	VAA         *types.VAA  `json:"vaa"`
	MessageHash common.Hash `json:"messageHash"`
	Digest      common.Hash `json:"digest"`
}

func newVerifyCmd(baseConfig *baseConfiguration) *cobra.Command {
	var allowExpired bool
	cmd := &cobra.Command{
		Use:   "verify <vaa>",
		Short: "verifies VAA against the guardian set it claims to be signed by",
		Long:  "Verifies VAA given as hex or as @file. The guardian set is loaded from the bridge accounts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (rErr error) {
			raw, err := readVAAArg(args[0])
			if err != nil {
				return err
			}
			proc, closeDB, err := baseConfig.openBridge()
			if err != nil {
				return err
			}
			defer closeAndJoin(closeDB, &rErr)

			v, err := verifier.New(proc.Resolver(), baseConfig.observe, verifier.WithTime(unixNow()))
			if err != nil {
				return err
			}
			var opts []verifier.Option
			if allowExpired {
				opts = append(opts, verifier.AllowInactive())
			}
			vaa, err := v.Verify(cmd.Context(), raw, opts...)
			if err != nil {
				return err
			}
			return printJSON(verifyOutput{VAA: vaa, MessageHash: vaa.MessageHash(), Digest: vaa.SigningDigest()})
		},
	}
	cmd.Flags().BoolVar(&allowExpired, "allow-expired", false, "accept VAA signed by guardian set which is not active any more")
	return cmd
}
