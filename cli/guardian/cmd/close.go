package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/guardian-core/account"
)

type closeConfig struct {
	Base         *baseConfiguration
	Recipient    string
	PostedVAA    string
	SignatureSet string
}

func newCloseCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &closeConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "close",
		Short: "closes posted VAA and/or signature set account, refunding the balance",
		Long: `Closes the posted VAA account together with the signature set it references.
When only --signature-set is given the signature set account is closed on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return closeRunFunc(cmd, config)
		},
	}
	cmd.Flags().StringVar(&config.Recipient, "recipient", "", "base58 address of the account receiving the refund")
	cmd.Flags().StringVar(&config.PostedVAA, "posted", "", "base58 address of the posted VAA account")
	cmd.Flags().StringVar(&config.SignatureSet, "signature-set", "", "base58 address of the signature set account")
	if err := cmd.MarkFlagRequired("recipient"); err != nil {
		panic(err)
	}
	return cmd
}

func closeRunFunc(cmd *cobra.Command, config *closeConfig) (rErr error) {
	recipient, err := account.ParseAddress(config.Recipient)
	if err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	var sigSet *account.Address
	if config.SignatureSet != "" {
		addr, err := account.ParseAddress(config.SignatureSet)
		if err != nil {
			return fmt.Errorf("invalid signature set address: %w", err)
		}
		sigSet = &addr
	}

	proc, closeDB, err := config.Base.openBridge()
	if err != nil {
		return err
	}
	defer closeAndJoin(closeDB, &rErr)

	switch {
	case config.PostedVAA != "":
		posted, err := account.ParseAddress(config.PostedVAA)
		if err != nil {
			return fmt.Errorf("invalid posted VAA address: %w", err)
		}
		if err := proc.ClosePostedVAA(cmd.Context(), recipient, posted, sigSet); err != nil {
			return err
		}
		consoleWriter.Println(fmt.Sprintf("posted VAA %s closed", posted))
	case sigSet != nil:
		if err := proc.CloseSignatureSet(cmd.Context(), recipient, *sigSet); err != nil {
			return err
		}
		consoleWriter.Println(fmt.Sprintf("signature set %s closed", *sigSet))
	default:
		return errors.New("either --posted or --signature-set must be set")
	}
	return nil
}
