package account

import (
	"bytes"
	"testing"

	"github.com/minio/sha256-simd"
	"github.com/stretchr/testify/require"
)

func TestCreateProgramAddress(t *testing.T) {
	programID := Address{7}
	seeds := [][]byte{[]byte("seed"), {1, 2, 3}}

	addr, bump, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	require.False(t, IsOnCurve(addr[:]))

	// the found address is sha256 of seeds, bump, program and marker
	h := sha256.Sum256(bytes.Join([][]byte{[]byte("seed"), {1, 2, 3}, {bump}, programID[:], []byte("ProgramDerivedAddress")}, nil))
	require.Equal(t, Address(h), addr)

	again, err := CreateProgramAddress(append(seeds, []byte{bump}), programID)
	require.NoError(t, err)
	require.Equal(t, addr, again)

	// derivation is deterministic and depends on program
	addr2, bump2, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	require.Equal(t, addr, addr2)
	require.Equal(t, bump, bump2)
	other, _, err := FindProgramAddress(seeds, Address{8})
	require.NoError(t, err)
	require.NotEqual(t, addr, other)
}

func TestFindProgramAddress_BumpIsHighestOffCurve(t *testing.T) {
	programID := DefaultProgramID
	for i := 0; i < 20; i++ {
		seeds := [][]byte{[]byte("test"), {byte(i)}}
		addr, bump, err := FindProgramAddress(seeds, programID)
		require.NoError(t, err)
		// every higher bump must produce point on curve
		for b := 255; b > int(bump); b-- {
			_, err := CreateProgramAddress(append(seeds, []byte{byte(b)}), programID)
			require.ErrorIs(t, err, ErrInvalidSeeds)
		}
		require.False(t, IsOnCurve(addr[:]))
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLength+1)}, DefaultProgramID)
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, err = CreateProgramAddress(make([][]byte, MaxSeeds+1), DefaultProgramID)
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), DefaultProgramID)
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	_, _, err = FindProgramAddress([][]byte{make([]byte, MaxSeedLength)}, DefaultProgramID)
	require.NoError(t, err)
}

func TestIsOnCurve(t *testing.T) {
	// ed25519 base point
	base := []byte{
		0x58, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	}
	require.True(t, IsOnCurve(base))
	require.False(t, IsOnCurve([]byte{1, 2, 3}))
}

func TestRecordAddresses(t *testing.T) {
	gs0, err := GuardianSetAddress(DefaultProgramID, 0)
	require.NoError(t, err)
	gs1, err := GuardianSetAddress(DefaultProgramID, 1)
	require.NoError(t, err)
	require.NotEqual(t, gs0, gs1)

	// guardian set index is big-endian seed
	want, _, err := FindProgramAddress([][]byte{[]byte("GuardianSet"), {0, 0, 0, 1}}, DefaultProgramID)
	require.NoError(t, err)
	require.Equal(t, want, gs1)

	cfg, err := ConfigAddress(DefaultProgramID)
	require.NoError(t, err)
	want, _, err = FindProgramAddress([][]byte{[]byte("Bridge")}, DefaultProgramID)
	require.NoError(t, err)
	require.Equal(t, want, cfg)

	hash := [32]byte{1, 2, 3}
	posted, err := PostedVAAAddress(DefaultProgramID, hash)
	require.NoError(t, err)
	want, _, err = FindProgramAddress([][]byte{[]byte("PostedVAA"), hash[:]}, DefaultProgramID)
	require.NoError(t, err)
	require.Equal(t, want, posted)
}
