package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alphabill-org/guardian-core/crypto"
)

const (
	defaultKeysFileName = "guardian-keys.json"

	keyFileCmdFlag     = "key-file"
	forceKeyGenCmdFlag = "force"
	mnemonicCmdFlag    = "mnemonic"
	recoverCmdFlag     = "recover"
	passwordCmdFlag    = "password"
	passwordArgCmdFlag = "pn"

	mnemonicWarning = "The following mnemonic can be used to recover the guardian keys. Please write it down now, and keep it in a safe, offline place."
)

type (
	keysConfig struct {
		Base            *baseConfiguration
		KeyFilePath     string
		Count           uint8
		ForceGeneration bool
		NewMnemonic     bool
		Mnemonic        string
		PromptPassword  bool
		Password        string
	}

	keyFile struct {
		Guardians []guardianKey `json:"guardians"`
	}

	guardianKey struct {
		Address        common.Address `json:"address"`
		PrivateKey     hexutil.Bytes  `json:"privateKey"`
		DerivationPath string         `json:"derivationPath,omitempty"`
	}
)

func newKeysCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &keysConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "manages devnet guardian keys",
	}
	cmd.PersistentFlags().StringVarP(&config.KeyFilePath, keyFileCmdFlag, "k", "", fmt.Sprintf("path to the keys file (default: $GUARDIAN_HOME/%s)", defaultKeysFileName))
	cmd.AddCommand(newKeysGenerateCmd(config))
	cmd.AddCommand(newKeysShowCmd(config))
	return cmd
}

func newKeysGenerateCmd(config *keysConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generates guardian signing keys",
		Long:  "Generates guardian signing keys, either random or derived from BIP-39 mnemonic with the path m/44'/60'/0'/0/<guardian index>.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateKeysRunFunc(config)
		},
	}
	cmd.Flags().Uint8VarP(&config.Count, "count", "n", 1, "number of guardian keys to generate")
	cmd.Flags().BoolVarP(&config.ForceGeneration, forceKeyGenCmdFlag, "f", false, "overwrite existing keys file")
	cmd.Flags().BoolVar(&config.NewMnemonic, mnemonicCmdFlag, false, "derive the keys from a new mnemonic")
	cmd.Flags().StringVar(&config.Mnemonic, recoverCmdFlag, "", "derive the keys from the given mnemonic")
	cmd.Flags().BoolVarP(&config.PromptPassword, passwordCmdFlag, "p", false, "prompt for the mnemonic passphrase")
	cmd.Flags().StringVar(&config.Password, passwordArgCmdFlag, "", "mnemonic passphrase, non-interactive")
	cmd.MarkFlagsMutuallyExclusive(mnemonicCmdFlag, recoverCmdFlag)
	cmd.MarkFlagsMutuallyExclusive(passwordCmdFlag, passwordArgCmdFlag)
	return cmd
}

func newKeysShowCmd(config *keysConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "prints the guardian addresses of the keys file",
		RunE: func(cmd *cobra.Command, args []string) error {
			signers, err := LoadKeys(config.GetKeyFileLocation())
			if err != nil {
				return err
			}
			for i, s := range signers {
				consoleWriter.Println(fmt.Sprintf("#%d %s", i, s.Address()))
			}
			return nil
		},
	}
}

func (c *keysConfig) GetKeyFileLocation() string {
	if c.KeyFilePath != "" {
		return c.KeyFilePath
	}
	return filepath.Join(c.Base.HomeDir, defaultKeysFileName)
}

func generateKeysRunFunc(config *keysConfig) error {
	if config.Count == 0 {
		return errors.New("key count must be greater than zero")
	}
	file := config.GetKeyFileLocation()
	if _, err := os.Stat(file); err == nil && !config.ForceGeneration {
		return fmt.Errorf("keys file %s already exists, use --%s to overwrite", file, forceKeyGenCmdFlag)
	}

	mnemonic := config.Mnemonic
	if config.NewMnemonic {
		var err error
		if mnemonic, err = crypto.NewMnemonic(); err != nil {
			return err
		}
		consoleWriter.Println(mnemonicWarning)
		consoleWriter.Println(mnemonic)
	}

	kf := &keyFile{}
	if mnemonic == "" {
		for i := 0; i < int(config.Count); i++ {
			signer, err := crypto.NewInMemorySecp256K1Signer()
			if err != nil {
				return err
			}
			if err := kf.add(signer, ""); err != nil {
				return err
			}
		}
	} else {
		passphrase, err := config.passphrase()
		if err != nil {
			return err
		}
		for i := uint32(0); i < uint32(config.Count); i++ {
			signer, err := crypto.NewInMemorySecp256K1SignerFromMnemonic(mnemonic, passphrase, i)
			if err != nil {
				return err
			}
			if err := kf.add(signer, crypto.DerivationPath(i)); err != nil {
				return err
			}
		}
	}

	if err := kf.WriteTo(file); err != nil {
		return err
	}
	consoleWriter.Println(fmt.Sprintf("%d guardian key(s) written to %s", len(kf.Guardians), file))
	return nil
}

func (c *keysConfig) passphrase() (string, error) {
	if c.PromptPassword {
		return readPassword("Enter mnemonic passphrase: ")
	}
	return c.Password, nil
}

func readPassword(promptMessage string) (string, error) {
	consoleWriter.Print(promptMessage)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	consoleWriter.Println("") // line break after reading password
	return string(passwordBytes), nil
}

func (kf *keyFile) add(signer crypto.Signer, path string) error {
	priv, err := signer.MarshalPrivateKey()
	if err != nil {
		return err
	}
	kf.Guardians = append(kf.Guardians, guardianKey{Address: signer.Address(), PrivateKey: priv, DerivationPath: path})
	return nil
}

func (kf *keyFile) WriteTo(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding keys: %w", err)
	}
	return os.WriteFile(file, b, 0600)
}

// LoadKeys loads guardian signing keys, in the order of guardian index.
func LoadKeys(file string) ([]crypto.Signer, error) {
	b, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return nil, fmt.Errorf("reading keys file: %w", err)
	}
	kf := &keyFile{}
	if err := json.Unmarshal(b, kf); err != nil {
		return nil, fmt.Errorf("decoding keys file %s: %w", file, err)
	}
	if len(kf.Guardians) == 0 {
		return nil, fmt.Errorf("keys file %s contains no keys", file)
	}
	signers := make([]crypto.Signer, len(kf.Guardians))
	for i, k := range kf.Guardians {
		signer, err := crypto.NewInMemorySecp256K1SignerFromKey(k.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("guardian key #%d: %w", i, err)
		}
		if signer.Address() != k.Address {
			return nil, fmt.Errorf("guardian key #%d: address %s doesn't match the private key", i, k.Address)
		}
		signers[i] = signer
	}
	return signers, nil
}
