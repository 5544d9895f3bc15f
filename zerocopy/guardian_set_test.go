package zerocopy

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/types"
)

func testGuardianSet(index uint32, n int) *types.GuardianSet {
	keys := make([]common.Address, n)
	for i := range keys {
		keys[i] = common.BytesToAddress([]byte{0xEE, byte(i + 1)})
	}
	return &types.GuardianSet{Index: index, Keys: keys, CreationTime: 1_600_000_000 + index, ExpirationTime: 1_700_000_000}
}

func requireSameGuardianSet(t *testing.T, want *types.GuardianSet, got types.GuardianSetReader) {
	t.Helper()
	require.Equal(t, want.Index, got.GetIndex())
	require.Equal(t, len(want.Keys), got.GetNumGuardians())
	for i, k := range want.Keys {
		require.Equal(t, k, got.GetKey(i))
	}
	require.Equal(t, want.CreationTime, got.GetCreationTime())
	require.Equal(t, want.ExpirationTime, got.GetExpirationTime())
	require.Equal(t, want, types.Copy(got))
}

func TestAccountDiscriminator(t *testing.T) {
	require.Equal(t, [8]byte{120, 77, 74, 98, 34, 83, 96, 125}, GuardianSetDiscriminator)
	require.Equal(t, GuardianSetDiscriminator, AccountDiscriminator("GuardianSet"))
}

func TestParseGuardianSet_BothLayouts(t *testing.T) {
	for _, n := range []int{1, 2, 13, 19} {
		gs := testGuardianSet(3, n)

		cur := EncodeGuardianSet(gs)
		require.Len(t, cur, 24+20*n)
		require.Equal(t, GuardianSetDiscriminator[:], cur[:8])
		view, err := ParseGuardianSet(cur)
		require.NoError(t, err)
		require.IsType(t, GuardianSet(nil), view)
		requireSameGuardianSet(t, gs, view)

		legacy := EncodeLegacyGuardianSet(gs)
		require.Len(t, legacy, 16+20*n)
		require.Equal(t, cur[8:], legacy)
		view, err = ParseGuardianSet(legacy)
		require.NoError(t, err)
		require.IsType(t, LegacyGuardianSet(nil), view)
		requireSameGuardianSet(t, gs, view)
	}
}

func TestParseGuardianSet_LittleEndian(t *testing.T) {
	gs := &types.GuardianSet{Index: 0x01020304, Keys: []common.Address{{0xAA}}, CreationTime: 0x0A0B0C0D, ExpirationTime: 5}
	data := EncodeLegacyGuardianSet(gs)
	require.Equal(t, []byte{4, 3, 2, 1, 1, 0, 0, 0, 0xAA}, data[:9])
	require.Equal(t, []byte{0x0D, 0x0C, 0x0B, 0x0A, 5, 0, 0, 0}, data[28:])
}

func TestParseGuardianSet_Malformed(t *testing.T) {
	gs := testGuardianSet(1, 2)
	cur := EncodeGuardianSet(gs)
	legacy := EncodeLegacyGuardianSet(gs)

	tests := []struct {
		name   string
		data   []byte
		errMsg string
	}{
		{name: "nil", data: nil, errMsg: "too short: 0 bytes"},
		{name: "discriminator only", data: GuardianSetDiscriminator[:], errMsg: "too short: 8 bytes"},
		{name: "current with header only", data: cur[:24], errMsg: "guardian set account data is too short: 24 bytes"},
		{name: "current with trailing byte", data: append(cur, 0), errMsg: "must be 64 bytes, got 65"},
		{name: "current truncated", data: cur[:len(cur)-1], errMsg: "must be 64 bytes, got 63"},
		{name: "legacy 15 bytes", data: legacy[:15], errMsg: "legacy guardian set account data is too short: 15 bytes"},
		{name: "legacy 16 bytes", data: legacy[:16], errMsg: "legacy guardian set account data is too short: 16 bytes"},
		{name: "legacy with trailing byte", data: append(legacy, 0), errMsg: "must be 56 bytes, got 57"},
		{name: "legacy truncated", data: legacy[:len(legacy)-1], errMsg: "must be 56 bytes, got 55"},
		{name: "huge guardian count", data: []byte{1, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0}, errMsg: "must be 85899345916 bytes, got 17"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs, err := ParseGuardianSet(tt.data)
			require.ErrorIs(t, err, types.ErrMalformedRecord)
			require.ErrorContains(t, err, tt.errMsg)
			require.Nil(t, gs)
		})
	}

	// any buffer shorter than 16 bytes fails
	for i := 0; i < 16; i++ {
		_, err := ParseGuardianSet(make([]byte, i))
		require.ErrorIs(t, err, types.ErrMalformedRecord)
	}
}

func TestGuardianSetView_IsActive(t *testing.T) {
	gs := &types.GuardianSet{Index: 0, Keys: []common.Address{{1}}, CreationTime: 1628099186}
	for _, data := range [][]byte{EncodeGuardianSet(gs), EncodeLegacyGuardianSet(gs)} {
		view, err := ParseGuardianSet(data)
		require.NoError(t, err)
		require.False(t, types.IsActive(view, 0))
	}

	gs.CreationTime = 1628099187
	cur, err := parseCurrent(EncodeGuardianSet(gs))
	require.NoError(t, err)
	require.True(t, cur.IsActive(2_000_000_000))
	legacy, err := parseLegacy(EncodeLegacyGuardianSet(gs))
	require.NoError(t, err)
	require.True(t, legacy.IsActive(2_000_000_000))
}

func TestSetExpirationTime(t *testing.T) {
	gs := testGuardianSet(4, 3)
	gs.ExpirationTime = 0
	for _, data := range [][]byte{EncodeGuardianSet(gs), EncodeLegacyGuardianSet(gs)} {
		require.NoError(t, SetExpirationTime(data, 1234))
		view, err := ParseGuardianSet(data)
		require.NoError(t, err)
		require.EqualValues(t, 1234, view.GetExpirationTime())
		require.Equal(t, gs.CreationTime, view.GetCreationTime())
		require.Equal(t, gs.Keys[2], view.GetKey(2))
	}
	require.ErrorIs(t, SetExpirationTime([]byte{1, 2}, 1), types.ErrMalformedRecord)
}
