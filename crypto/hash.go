package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the legacy (pre-NIST) Keccak-256 hash of the concatenated data.
func Keccak256(data ...[]byte) common.Hash {
	var h common.Hash
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}

/*
DoubleKeccak256 returns keccak256(keccak256(data)).

Guardians sign the double hash of the attestation body, the single hash is
the message hash used as the storage key of posted attestations.
*/
func DoubleKeccak256(data []byte) common.Hash {
	h := Keccak256(data)
	return Keccak256(h[:])
}
