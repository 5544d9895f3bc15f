package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// SignatureLength is the length of recoverable secp256k1 signature: r, s and recovery id.
	SignatureLength = 65
	// AddressLength is the length of the public identifier of a guardian.
	AddressLength = common.AddressLength

	recoveryIDOffset = 27
)

var ErrInvalidSignature = errors.New("invalid signature")

/*
RecoverAddress returns the Ethereum style address (last 20 bytes of the keccak256
hash of the uncompressed public key) of the key which produced sig over digest.

Recovery id may be either 0/1 or the legacy 27/28.
*/
func RecoverAddress(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= recoveryIDOffset {
		normalized[64] -= recoveryIDOffset
	}
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !ethcrypto.ValidateSignatureValues(normalized[64], r, s, false) {
		return common.Address{}, fmt.Errorf("%w: signature values out of range", ErrInvalidSignature)
	}
	pub, err := ethcrypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// PubKeyToAddress returns the guardian address of the public key.
func PubKeyToAddress(pub *ecdsa.PublicKey) common.Address {
	return ethcrypto.PubkeyToAddress(*pub)
}
