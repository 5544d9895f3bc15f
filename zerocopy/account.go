package zerocopy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/types"
)

/*
GuardianSetAccount is a guardian set loaded from account storage. It holds a
shared borrow of the account data, Release must be called when done with it.
Read methods are the same regardless of the layout the account is stored in.
*/
type GuardianSetAccount struct {
	ref  *account.DataRef
	view types.GuardianSetReader
}

/*
LoadGuardianSet returns zero-copy view over guardian set account "info".

The account must be owned by programID and its address must be the one derived
from the index stored in the data, otherwise ErrAddressMismatch is returned.
*/
func LoadGuardianSet(info *account.AccountInfo, programID account.Address) (*GuardianSetAccount, error) {
	if info.Owner != programID {
		return nil, fmt.Errorf("%w: guardian set account %s is owned by %s", types.ErrAddressMismatch, info.Key, info.Owner)
	}
	ref, err := info.TryBorrowData()
	if err != nil {
		return nil, err
	}
	view, err := ParseGuardianSet(ref.Bytes())
	if err != nil {
		ref.Release()
		return nil, fmt.Errorf("guardian set account %s: %w", info.Key, err)
	}
	expected, err := account.GuardianSetAddress(programID, view.GetIndex())
	if err != nil {
		ref.Release()
		return nil, err
	}
	if info.Key != expected {
		ref.Release()
		return nil, fmt.Errorf("%w: guardian set %d must be stored at %s, found at %s",
			types.ErrAddressMismatch, view.GetIndex(), expected, info.Key)
	}
	return &GuardianSetAccount{ref: ref, view: view}, nil
}

func (a *GuardianSetAccount) GetIndex() uint32 { return a.view.GetIndex() }

func (a *GuardianSetAccount) GetNumGuardians() int { return a.view.GetNumGuardians() }

func (a *GuardianSetAccount) GetKey(i int) common.Address { return a.view.GetKey(i) }

func (a *GuardianSetAccount) GetCreationTime() uint32 { return a.view.GetCreationTime() }

func (a *GuardianSetAccount) GetExpirationTime() uint32 { return a.view.GetExpirationTime() }

func (a *GuardianSetAccount) Quorum() int {
	return types.Quorum(a.view.GetNumGuardians())
}

func (a *GuardianSetAccount) IsActive(now uint32) bool {
	return types.IsActive(a.view, now)
}

// Account returns the view when the account is stored in the current layout.
func (a *GuardianSetAccount) Account() (GuardianSet, bool) {
	v, ok := a.view.(GuardianSet)
	return v, ok
}

// LegacyAccount returns the view when the account is stored in the legacy layout.
func (a *GuardianSetAccount) LegacyAccount() (LegacyGuardianSet, bool) {
	v, ok := a.view.(LegacyGuardianSet)
	return v, ok
}

// Release returns the borrowed account data, the view must not be used after that.
func (a *GuardianSetAccount) Release() {
	a.ref.Release()
}
