package account

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const AddressLength = 32

// Address identifies an account (and a program) in the account storage.
type Address [AddressLength]byte

var (
	// DefaultProgramID is the mainnet address of the core bridge program.
	DefaultProgramID = MustParseAddress("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth")
	// SystemProgramID owns plain lamport holding accounts.
	SystemProgramID = Address{}
)

// ParseAddress decodes base58 encoded 32 byte address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b := base58.Decode(s)
	if len(b) != AddressLength {
		return a, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

// IsZero returns true for the all-zero address, ie "no account".
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	v, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
