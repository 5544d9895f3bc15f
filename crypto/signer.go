package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

type (
	// Signer produces recoverable secp256k1 signatures, ie the guardian side of
	// the protocol. Used by devnet tooling and tests.
	Signer interface {
		// SignHash signs 32 byte digest, returns 65 byte signature with recovery id 0 or 1.
		SignHash(digest common.Hash) ([]byte, error)
		// Address returns the public identifier of the signer.
		Address() common.Address
		// MarshalPrivateKey returns the private key bytes so these could be unmarshalled later to create the Signer.
		MarshalPrivateKey() ([]byte, error)
	}

	// InMemorySecp256K1Signer keeps the private key in memory, for development only.
	InMemorySecp256K1Signer struct {
		key *ecdsa.PrivateKey
	}
)

// NewInMemorySecp256K1Signer generates new key and creates a new InMemorySecp256K1Signer.
func NewInMemorySecp256K1Signer() (*InMemorySecp256K1Signer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating secp256k1 key: %w", err)
	}
	return &InMemorySecp256K1Signer{key: key}, nil
}

// NewInMemorySecp256K1SignerFromKey creates signer from 32 byte private key.
func NewInMemorySecp256K1SignerFromKey(privKey []byte) (*InMemorySecp256K1Signer, error) {
	key, err := ethcrypto.ToECDSA(privKey)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
	}
	return &InMemorySecp256K1Signer{key: key}, nil
}

/*
NewInMemorySecp256K1SignerFromMnemonic derives the key of guardian "index" from
BIP-39 mnemonic using the Ethereum BIP-44 path m/44'/60'/0'/0/index. Allows
devnet guardian sets to be recreated from a single phrase.
*/
func NewInMemorySecp256K1SignerFromMnemonic(mnemonic, passphrase string, index uint32) (*InMemorySecp256K1Signer, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	// only HDPrivateKeyID of the params is used, as the version of the extended key
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}
	path, err := accounts.ParseDerivationPath(DerivationPath(index))
	if err != nil {
		return nil, err
	}
	derived := masterKey
	for _, n := range path {
		if derived, err = derived.Derive(n); err != nil {
			return nil, fmt.Errorf("deriving key %s: %w", DerivationPath(index), err)
		}
	}
	priv, err := derived.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("reading derived key: %w", err)
	}
	return &InMemorySecp256K1Signer{key: priv.ToECDSA()}, nil
}

// DerivationPath returns BIP-44 path of the guardian key "index".
func DerivationPath(index uint32) string {
	// m / purpose' / coin_type' / account' / change / address_index
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

// NewMnemonic generates a new 24 word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("generating entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

func (s *InMemorySecp256K1Signer) SignHash(digest common.Hash) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	return ethcrypto.Sign(digest[:], s.key)
}

func (s *InMemorySecp256K1Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *InMemorySecp256K1Signer) MarshalPrivateKey() ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	return ethcrypto.FromECDSA(s.key), nil
}
