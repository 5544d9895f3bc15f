/*
Package guardians contains helpers for tests which need guardian sets and
signed VAAs.
*/
package guardians

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/crypto"
	"github.com/alphabill-org/guardian-core/types"
)

/*
Signers returns "n" guardian signers. Keys are deterministic, ie signer "i"
is the same in every call.
*/
func Signers(t testing.TB, n int) []crypto.Signer {
	return SignersWithSeed(t, "guardian", n)
}

// SignersWithSeed returns "n" deterministic signers, different seeds produce different keys.
func SignersWithSeed(t testing.TB, seed string, n int) []crypto.Signer {
	t.Helper()
	signers := make([]crypto.Signer, n)
	for i := range signers {
		key := crypto.Keccak256([]byte(seed), binary.BigEndian.AppendUint32(nil, uint32(i)))
		s, err := crypto.NewInMemorySecp256K1SignerFromKey(key[:])
		require.NoError(t, err)
		signers[i] = s
	}
	return signers
}

func Keys(signers []crypto.Signer) []common.Address {
	keys := make([]common.Address, len(signers))
	for i, s := range signers {
		keys[i] = s.Address()
	}
	return keys
}

func GuardianSet(t testing.TB, index uint32, signers []crypto.Signer, creationTime uint32) *types.GuardianSet {
	t.Helper()
	gs, err := types.NewGuardianSet(index, Keys(signers), creationTime)
	require.NoError(t, err)
	return gs
}

// NewVAA returns unsigned VAA claiming to be signed by the guardian set "gsIndex".
func NewVAA(gsIndex uint32, payload []byte) *types.VAA {
	return &types.VAA{
		Version:          types.SupportedVAAVersion,
		GuardianSetIndex: gsIndex,
		Timestamp:        1_700_000_000,
		Nonce:            1,
		EmitterChain:     types.ChainIDEthereum,
		EmitterAddress:   types.EmitterAddress{31: 0xE},
		Sequence:         1,
		ConsistencyLevel: 1,
		Payload:          payload,
	}
}

/*
Sign adds signatures of the guardians "indices" (in the given order, so
invalid orderings can be created) to the VAA.
*/
func Sign(t testing.TB, v *types.VAA, signers []crypto.Signer, indices ...int) {
	t.Helper()
	for _, i := range indices {
		require.NoError(t, v.AddSignature(signers[i], uint8(i)))
	}
}

// SignQuorum signs the VAA with the first quorum guardians.
func SignQuorum(t testing.TB, v *types.VAA, signers []crypto.Signer) {
	t.Helper()
	q := types.Quorum(len(signers))
	idx := make([]int, q)
	for i := range idx {
		idx[i] = i
	}
	Sign(t, v, signers, idx...)
}

// Marshal returns wire encoding of the VAA.
func Marshal(t testing.TB, v *types.VAA) []byte {
	t.Helper()
	b, err := v.Marshal()
	require.NoError(t, err)
	return b
}

// GuardianSetUpgradeVAA returns governance VAA registering "keys" as guardian set "newIndex".
func GuardianSetUpgradeVAA(currentIndex, newIndex uint32, keys []common.Address) *types.VAA {
	u := &types.GuardianSetUpgrade{
		Module:         types.CoreModule,
		Action:         types.ActionGuardianSetUpgrade,
		TargetChain:    types.ChainIDSolana,
		NewIndex:       newIndex,
		NewGuardianSet: keys,
	}
	v := NewVAA(currentIndex, u.Marshal())
	v.EmitterChain = types.GovernanceChain
	v.EmitterAddress = types.GovernanceEmitter
	return v
}
