package verifier

import (
	"context"
	"fmt"

	"github.com/alphabill-org/guardian-core/types"
)

/*
GuardianSetResolver gives scoped access to guardian sets by index. The set
passed to fn must not be retained after fn returns, implementations may
release the underlying storage.
*/
type GuardianSetResolver interface {
	WithGuardianSet(ctx context.Context, index uint32, fn func(gs types.GuardianSetReader) error) error
}

// GuardianSets is in-memory GuardianSetResolver.
type GuardianSets map[uint32]types.GuardianSetReader

func NewGuardianSets(sets ...types.GuardianSetReader) GuardianSets {
	m := make(GuardianSets, len(sets))
	for _, gs := range sets {
		m[gs.GetIndex()] = gs
	}
	return m
}

func (m GuardianSets) WithGuardianSet(ctx context.Context, index uint32, fn func(gs types.GuardianSetReader) error) error {
	gs, ok := m[index]
	if !ok {
		return fmt.Errorf("%w: guardian set %d not found", types.ErrGuardianSetUnavailable, index)
	}
	return fn(gs)
}
