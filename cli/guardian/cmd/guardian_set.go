package cmd

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/alphabill-org/guardian-core/types"
)

const defaultGuardianSetTTL = 86400

type (
	guardianSetInitConfig struct {
		Base        *baseConfiguration
		KeyFilePath string
		Guardians   []string
		TTL         uint32
	}

	guardianSetView struct {
		*types.GuardianSet
		Quorum int  `json:"quorum"`
		Active bool `json:"active"`
	}
)

func newGuardianSetCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guardian-set",
		Short: "manages the guardian sets of the bridge",
	}
	cmd.AddCommand(newGuardianSetInitCmd(baseConfig))
	cmd.AddCommand(newGuardianSetUpgradeCmd(baseConfig))
	cmd.AddCommand(newGuardianSetShowCmd(baseConfig))
	return cmd
}

func newGuardianSetInitCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &guardianSetInitConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "initializes the bridge with the initial guardian set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return guardianSetInitRunFunc(cmd, config)
		},
	}
	cmd.Flags().StringVarP(&config.KeyFilePath, keyFileCmdFlag, "k", "", "guardian keys file, the initial set is formed of its guardian addresses")
	cmd.Flags().StringSliceVar(&config.Guardians, "guardians", nil, "comma separated list of guardian addresses (hex)")
	cmd.Flags().Uint32Var(&config.TTL, "ttl", defaultGuardianSetTTL, "seconds the guardian set stays active after it has been replaced")
	cmd.MarkFlagsMutuallyExclusive(keyFileCmdFlag, "guardians")
	return cmd
}

func guardianSetInitRunFunc(cmd *cobra.Command, config *guardianSetInitConfig) (rErr error) {
	keys, err := config.guardianKeys()
	if err != nil {
		return err
	}
	proc, closeDB, err := config.Base.openBridge()
	if err != nil {
		return err
	}
	defer closeAndJoin(closeDB, &rErr)

	if err := proc.Initialize(cmd.Context(), config.TTL, keys, unixNow()); err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("bridge %s initialized with guardian set 0 of %d guardians", proc.ProgramID(), len(keys)))
	return nil
}

func (c *guardianSetInitConfig) guardianKeys() ([]common.Address, error) {
	if c.KeyFilePath != "" {
		signers, err := LoadKeys(c.KeyFilePath)
		if err != nil {
			return nil, err
		}
		keys := make([]common.Address, len(signers))
		for i, s := range signers {
			keys[i] = s.Address()
		}
		return keys, nil
	}
	if len(c.Guardians) == 0 {
		return nil, fmt.Errorf("either --%s or --guardians must be set", keyFileCmdFlag)
	}
	keys := make([]common.Address, len(c.Guardians))
	for i, s := range c.Guardians {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid guardian address %q", s)
		}
		keys[i] = common.HexToAddress(s)
	}
	return keys, nil
}

func newGuardianSetUpgradeCmd(baseConfig *baseConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <vaa>",
		Short: "executes guardian set upgrade governance VAA",
		Long:  "Executes guardian set upgrade governance VAA given as hex or as @file.",
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

			gs, err := proc.UpgradeGuardianSet(cmd.Context(), raw, unixNow())
			if err != nil {
				return err
			}
			consoleWriter.Println(fmt.Sprintf("guardian set %d of %d guardians registered", gs.Index, len(gs.Keys)))
			return nil
		},
	}
}

func newGuardianSetShowCmd(baseConfig *baseConfiguration) *cobra.Command {
	var index int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "prints the guardian set, the current one by default",
		RunE: func(cmd *cobra.Command, args []string) (rErr error) {
			proc, closeDB, err := baseConfig.openBridge()
			if err != nil {
				return err
			}
			defer closeAndJoin(closeDB, &rErr)

			var gs *types.GuardianSet
			switch {
			case index < 0:
				gs, err = proc.CurrentGuardianSet(cmd.Context())
			case index > int64(^uint32(0)):
				err = errors.New("guardian set index out of range")
			default:
				gs, err = proc.GuardianSet(cmd.Context(), uint32(index))
			}
			if err != nil {
				return err
			}
			return printJSON(guardianSetView{GuardianSet: gs, Quorum: gs.Quorum(), Active: gs.IsActive(unixNow())})
		},
	}
	cmd.Flags().Int64Var(&index, "index", -1, "index of the guardian set, current set when negative")
	return cmd
}
