package account

import (
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/minio/sha256-simd"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	GuardianSetSeed = "GuardianSet"
	PostedVAASeed   = "PostedVAA"
	ConfigSeed      = "Bridge"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidSeeds          = errors.New("provided seeds do not result in a valid address")

	pdaMarker = []byte("ProgramDerivedAddress")
)

/*
CreateProgramAddress returns the program derived address of the seeds, ie

	sha256(seeds... || programID || "ProgramDerivedAddress")

The result must not be a valid ed25519 point (so that no private key can
exist for it), otherwise ErrInvalidSeeds is returned.
*/
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, fmt.Errorf("%w: %d seeds, max allowed is %d", ErrMaxSeedLengthExceeded, len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return Address{}, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLengthExceeded, i, len(s))
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)

	var addr Address
	h.Sum(addr[:0])
	if IsOnCurve(addr[:]) {
		return Address{}, ErrInvalidSeeds
	}
	return addr, nil
}

/*
FindProgramAddress returns the first valid program derived address of the seeds
extended with a "bump" byte, trying bump values from 255 down to 0.
*/
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, fmt.Errorf("%w: %d seeds leaves no room for bump seed", ErrMaxSeedLengthExceeded, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		switch {
		case err == nil:
			return addr, uint8(bump), nil
		case !errors.Is(err, ErrInvalidSeeds):
			return Address{}, 0, err
		}
	}
	return Address{}, 0, fmt.Errorf("unable to find a viable program address bump seed")
}

// IsOnCurve returns true when b is valid compressed ed25519 point encoding.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

/*
GuardianSetAddress returns the storage address of the guardian set "index",
seeds are "GuardianSet" and big-endian index. Creating and loading guardian
set accounts must both use this function.
*/
func GuardianSetAddress(programID Address, index uint32) (Address, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(GuardianSetSeed), binary.BigEndian.AppendUint32(nil, index)}, programID)
	if err != nil {
		return Address{}, fmt.Errorf("deriving guardian set %d address: %w", index, err)
	}
	return addr, nil
}

// PostedVAAAddress returns the storage address of the posted VAA with given message hash.
func PostedVAAAddress(programID Address, messageHash [32]byte) (Address, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(PostedVAASeed), messageHash[:]}, programID)
	if err != nil {
		return Address{}, fmt.Errorf("deriving posted VAA address: %w", err)
	}
	return addr, nil
}

// ConfigAddress returns the storage address of the bridge configuration.
func ConfigAddress(programID Address) (Address, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(ConfigSeed)}, programID)
	if err != nil {
		return Address{}, fmt.Errorf("deriving config address: %w", err)
	}
	return addr, nil
}
