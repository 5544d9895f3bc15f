package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/state"
	"github.com/alphabill-org/guardian-core/types"
	"github.com/alphabill-org/guardian-core/zerocopy"
)

/*
Resolver gives access to the guardian sets stored in accounts of the bridge
program. Sets are read through the zero-copy view, the account address is
re-derived from the index stored in the data.
*/
type Resolver struct {
	store     *state.Store
	programID account.Address
}

func NewResolver(store *state.Store, programID account.Address) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("account store is nil")
	}
	return &Resolver{store: store, programID: programID}, nil
}

func (r *Resolver) WithGuardianSet(ctx context.Context, index uint32, fn func(gs types.GuardianSetReader) error) error {
	gsa, err := r.load(index)
	if err != nil {
		return err
	}
	defer gsa.Release()
	return fn(gsa)
}

func (r *Resolver) load(index uint32) (*zerocopy.GuardianSetAccount, error) {
	addr, err := account.GuardianSetAddress(r.programID, index)
	if err != nil {
		return nil, err
	}
	info, err := r.store.GetAccount(addr)
	if err != nil {
		if errors.Is(err, state.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: guardian set %d not found: %w", types.ErrGuardianSetUnavailable, index, err)
		}
		return nil, fmt.Errorf("loading guardian set %d: %w", index, err)
	}
	return zerocopy.LoadGuardianSet(info, r.programID)
}
