package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/types"
)

type postConfig struct {
	Base         *baseConfiguration
	SignatureSet string
	BatchSize    int
}

func newPostCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &postConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "post <vaa>",
		Short: "verifies VAA and stores it as posted VAA account",
		Long: `Verifies VAA given as hex or as @file and stores it as posted VAA account.
When --signature-set is given the signatures are recorded in the signature set account first,
--batch-size signatures at a time, and the VAA is posted when the set has reached the quorum.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postRunFunc(cmd, config, args[0])
		},
	}
	cmd.Flags().StringVar(&config.SignatureSet, "signature-set", "", "base58 address of the signature set account to record the signatures in")
	cmd.Flags().IntVar(&config.BatchSize, "batch-size", 0, "number of signatures recorded per step, all at once when not positive")
	return cmd
}

func postRunFunc(cmd *cobra.Command, config *postConfig, arg string) (rErr error) {
	raw, err := readVAAArg(arg)
	if err != nil {
		return err
	}
	proc, closeDB, err := config.Base.openBridge()
	if err != nil {
		return err
	}
	defer closeAndJoin(closeDB, &rErr)

	ctx := cmd.Context()
	now := unixNow()
	if config.SignatureSet == "" {
		v, err := types.UnmarshalVAA(raw)
		if err != nil {
			return err
		}
		addr, err := proc.PostVerifiedVAA(ctx, v, now)
		if err != nil {
			return err
		}
		consoleWriter.Println(fmt.Sprintf("VAA %s posted to %s", v.MessageHash(), addr))
		return nil
	}

	sigSet, err := account.ParseAddress(config.SignatureSet)
	if err != nil {
		return fmt.Errorf("invalid signature set address: %w", err)
	}
	v, err := types.UnmarshalVAA(raw)
	if err != nil {
		return err
	}
	for _, batch := range signatureBatches(v.Signatures, config.BatchSize) {
		set, err := proc.VerifySignatures(ctx, sigSet, v.GuardianSetIndex, v.MessageHash(), batch, now)
		if err != nil {
			return err
		}
		consoleWriter.Println(fmt.Sprintf("signature set %s: %d signatures verified", sigSet, set.NumVerified()))
	}
	addr, err := proc.PostVAA(ctx, sigSet, v)
	if err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("VAA %s posted to %s", v.MessageHash(), addr))
	return nil
}

func signatureBatches(sigs []*types.Signature, size int) [][]*types.Signature {
	if size <= 0 || size >= len(sigs) {
		return [][]*types.Signature{sigs}
	}
	var batches [][]*types.Signature
	for len(sigs) > size {
		batches = append(batches, sigs[:size])
		sigs = sigs[size:]
	}
	return append(batches, sigs)
}
