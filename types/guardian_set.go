package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

/*
Mainnet initial guardian set was never expired on Solana so it is blocked
explicitly. This is a one-off patch for that particular set, do not extend
it to other sets.
*/
const (
	blockedGuardianSetIndex        = 0
	blockedGuardianSetCreationTime = 1628099186
)

type (
	// GuardianSetReader is the read-only projection of a guardian set, implemented
	// by the in-memory GuardianSet and by the zero-copy account views.
	GuardianSetReader interface {
		// GetIndex returns the incrementing version number of the set.
		GetIndex() uint32
		GetNumGuardians() int
		// GetKey returns the address of the i-th guardian, i must be less than GetNumGuardians.
		GetKey(i int) common.Address
		// GetCreationTime returns unix time (seconds) when the set became active.
		GetCreationTime() uint32
		// GetExpirationTime returns unix time (seconds) after which the set is not
		// active any more, zero means expiration time hasn't been assigned.
		GetExpirationTime() uint32
	}

	GuardianSet struct {
		_              struct{}         `cbor:",toarray"`
		Index          uint32           `json:"index"`
		Keys           []common.Address `json:"keys"`
		CreationTime   uint32           `json:"creationTime"`
		ExpirationTime uint32           `json:"expirationTime"`
	}
)

/*
Quorum returns the minimum number of signatures required from the set of
numGuardians guardians: smallest integer greater than 2/3 of the set size.

Integer arithmetic in this exact order is part of the consensus, ie
((n*10/3)*2)/10 + 1 must not be replaced with "equivalent" formula.
*/
func Quorum(numGuardians int) int {
	return ((numGuardians*10/3)*2)/10 + 1
}

// IsActive returns true when signatures of the guardian set are accepted at time "now".
func IsActive(gs GuardianSetReader, now uint32) bool {
	if gs.GetIndex() == blockedGuardianSetIndex && gs.GetCreationTime() == blockedGuardianSetCreationTime {
		return false
	}
	expiry := gs.GetExpirationTime()
	return expiry == 0 || expiry >= now
}

// Copy returns in-memory copy of any guardian set implementation.
func Copy(gs GuardianSetReader) *GuardianSet {
	keys := make([]common.Address, gs.GetNumGuardians())
	for i := range keys {
		keys[i] = gs.GetKey(i)
	}
	return &GuardianSet{
		Index:          gs.GetIndex(),
		Keys:           keys,
		CreationTime:   gs.GetCreationTime(),
		ExpirationTime: gs.GetExpirationTime(),
	}
}

func NewGuardianSet(index uint32, keys []common.Address, creationTime uint32) (*GuardianSet, error) {
	gs := &GuardianSet{Index: index, Keys: keys, CreationTime: creationTime}
	if err := gs.IsValid(); err != nil {
		return nil, err
	}
	return gs, nil
}

// IsValid checks that the set is not empty and doesn't contain duplicate or zero keys.
func (x *GuardianSet) IsValid() error {
	if x == nil {
		return fmt.Errorf("guardian set is nil")
	}
	if len(x.Keys) == 0 {
		return fmt.Errorf("guardian set %d has no keys", x.Index)
	}
	if len(x.Keys) > MaxGuardians {
		return fmt.Errorf("guardian set %d has %d keys, max allowed is %d", x.Index, len(x.Keys), MaxGuardians)
	}
	seen := make(map[common.Address]struct{}, len(x.Keys))
	for i, k := range x.Keys {
		if k == (common.Address{}) {
			return fmt.Errorf("guardian set %d key %d is zero address", x.Index, i)
		}
		if _, ok := seen[k]; ok {
			return fmt.Errorf("guardian set %d has duplicate key %s", x.Index, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (x *GuardianSet) GetIndex() uint32 { return x.Index }

func (x *GuardianSet) GetNumGuardians() int { return len(x.Keys) }

func (x *GuardianSet) GetKey(i int) common.Address { return x.Keys[i] }

func (x *GuardianSet) GetCreationTime() uint32 { return x.CreationTime }

func (x *GuardianSet) GetExpirationTime() uint32 { return x.ExpirationTime }

func (x *GuardianSet) Quorum() int {
	return Quorum(len(x.Keys))
}

func (x *GuardianSet) IsActive(now uint32) bool {
	return IsActive(x, now)
}
