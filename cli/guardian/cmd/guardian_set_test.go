package cmd

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/internal/testutils/guardians"
	"github.com/alphabill-org/guardian-core/state"
	"github.com/alphabill-org/guardian-core/types"
)

type guardianSetOutput struct {
	Index          uint32           `json:"index"`
	Keys           []common.Address `json:"keys"`
	CreationTime   uint32           `json:"creationTime"`
	ExpirationTime uint32           `json:"expirationTime"`
	Quorum         int              `json:"quorum"`
	Active         bool             `json:"active"`
}

func showGuardianSet(t *testing.T, homeDir string, args ...string) guardianSetOutput {
	t.Helper()
	out, err := execCommand(t, homeDir, append([]string{"guardian-set", "show"}, args...)...)
	require.NoError(t, err)
	require.Len(t, out.lines, 1)
	var gs guardianSetOutput
	require.NoError(t, json.Unmarshal([]byte(out.lines[0]), &gs))
	return gs
}

func TestGuardianSetInit(t *testing.T) {
	const now = 1_700_000_000
	setUnixNow(t, now)
	homeDir, signers := initBridge(t, 4)

	gs := showGuardianSet(t, homeDir)
	require.Equal(t, guardianSetOutput{
		Index:        0,
		Keys:         guardians.Keys(signers),
		CreationTime: now,
		Quorum:       3,
		Active:       true,
	}, gs)

	_, err := execCommand(t, homeDir, "guardian-set", "init", "--guardians", signers[0].Address().Hex())
	require.ErrorIs(t, err, state.ErrAccountExists)
}

func TestGuardianSetInit_invalid(t *testing.T) {
	homeDir := t.TempDir()

	_, err := execCommand(t, homeDir, "guardian-set", "init")
	require.EqualError(t, err, "either --key-file or --guardians must be set")

	_, err = execCommand(t, homeDir, "guardian-set", "init", "--guardians", "0x01,foo")
	require.EqualError(t, err, `invalid guardian address "0x01"`)

	_, err = execCommand(t, homeDir, "guardian-set", "init", "-k", filepath.Join(homeDir, "missing.json"))
	require.ErrorContains(t, err, "reading keys file")

	_, err = execCommand(t, homeDir, "guardian-set", "show")
	require.ErrorIs(t, err, state.ErrAccountNotFound)
}

func TestGuardianSetUpgrade(t *testing.T) {
	const now = 1_700_000_000
	setUnixNow(t, now)
	homeDir, signers := initBridge(t, 4)
	newSigners := guardians.SignersWithSeed(t, "next", 7)

	v := guardians.GuardianSetUpgradeVAA(0, 1, guardians.Keys(newSigners))
	guardians.SignQuorum(t, v, signers)
	vaaFile := filepath.Join(homeDir, "upgrade.vaa")
	require.NoError(t, os.WriteFile(vaaFile, []byte(hex.EncodeToString(guardians.Marshal(t, v))), 0600))

	out, err := execCommand(t, homeDir, "guardian-set", "upgrade", "@"+vaaFile)
	require.NoError(t, err)
	require.Equal(t, []string{"guardian set 1 of 7 guardians registered"}, out.lines)

	gs := showGuardianSet(t, homeDir)
	require.EqualValues(t, 1, gs.Index)
	require.Equal(t, guardians.Keys(newSigners), gs.Keys)
	require.Equal(t, 5, gs.Quorum)
	require.True(t, gs.Active)

	// previous set stays active for TTL seconds
	gs = showGuardianSet(t, homeDir, "--index", "0")
	require.EqualValues(t, now+100, gs.ExpirationTime)
	require.True(t, gs.Active)
	setUnixNow(t, now+101)
	gs = showGuardianSet(t, homeDir, "--index", "0")
	require.False(t, gs.Active)

	// replay
	_, err = execCommand(t, homeDir, "guardian-set", "upgrade", "@"+vaaFile)
	require.ErrorIs(t, err, types.ErrGuardianSetUnavailable)

	_, err = execCommand(t, homeDir, "guardian-set", "show", "--index", "2")
	require.ErrorIs(t, err, types.ErrGuardianSetUnavailable)
}

func TestGuardianSetUpgrade_invalid(t *testing.T) {
	setUnixNow(t, 1_700_000_000)
	homeDir, signers := initBridge(t, 4)

	_, err := execCommand(t, homeDir, "guardian-set", "upgrade", "xyz")
	require.ErrorContains(t, err, "invalid VAA argument")

	_, err = execCommand(t, homeDir, "guardian-set", "upgrade", "@"+filepath.Join(homeDir, "missing"))
	require.ErrorContains(t, err, "reading VAA file")

	// not signed by quorum
	v := guardians.GuardianSetUpgradeVAA(0, 1, guardians.Keys(guardians.SignersWithSeed(t, "next", 3)))
	guardians.Sign(t, v, signers, 0, 1)
	_, err = execCommand(t, homeDir, "guardian-set", "upgrade", hex.EncodeToString(guardians.Marshal(t, v)))
	require.ErrorIs(t, err, types.ErrInvalidSignatures)

	// regular message is not governance VAA
	v = guardians.NewVAA(0, []byte("payload"))
	guardians.SignQuorum(t, v, signers)
	_, err = execCommand(t, homeDir, "guardian-set", "upgrade", "0x"+hex.EncodeToString(guardians.Marshal(t, v)))
	require.ErrorIs(t, err, types.ErrInvalidGovernance)
}
