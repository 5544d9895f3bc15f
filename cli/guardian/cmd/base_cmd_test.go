package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/crypto"
	"github.com/alphabill-org/guardian-core/internal/testutils/guardians"
	testlogger "github.com/alphabill-org/guardian-core/internal/testutils/logger"
	"github.com/alphabill-org/guardian-core/logger"
)

type testConsoleWriter struct {
	lines []string
}

func (w *testConsoleWriter) Println(a ...any) {
	w.lines = append(w.lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (w *testConsoleWriter) Print(a ...any) {
	w.lines = append(w.lines, fmt.Sprint(a...))
}

func execCommand(t *testing.T, homeDir string, args ...string) (*testConsoleWriter, error) {
	t.Helper()
	return execCommandCtx(context.Background(), t, homeDir, args...)
}

func execCommandCtx(ctx context.Context, t *testing.T, homeDir string, args ...string) (*testConsoleWriter, error) {
	t.Helper()
	outputWriter := &testConsoleWriter{}
	consoleWriter = outputWriter
	t.Cleanup(func() { consoleWriter = &stdoutWrapper{} })

	app := New(func(*logger.LogConfiguration) (*slog.Logger, error) { return testlogger.New(t), nil })
	app.baseCmd.SetArgs(append(args, "--home", homeDir))
	return outputWriter, app.addAndExecuteCommand(ctx)
}

func setUnixNow(t *testing.T, now uint32) {
	orig := unixNow
	unixNow = func() uint32 { return now }
	t.Cleanup(func() { unixNow = orig })
}

func writeKeys(t *testing.T, file string, signers []crypto.Signer) {
	t.Helper()
	kf := &keyFile{}
	for _, s := range signers {
		require.NoError(t, kf.add(s, ""))
	}
	require.NoError(t, kf.WriteTo(file))
}

// initBridge initializes bridge in new home dir with the guardian set of n guardians.
func initBridge(t *testing.T, n int) (string, []crypto.Signer) {
	t.Helper()
	homeDir := t.TempDir()
	signers := guardians.Signers(t, n)
	keysFile := filepath.Join(homeDir, "gs0.json")
	writeKeys(t, keysFile, signers)
	_, err := execCommand(t, homeDir, "guardian-set", "init", "-k", keysFile, "--ttl", "100")
	require.NoError(t, err)
	return homeDir, signers
}

func TestProgramID(t *testing.T) {
	guardian := guardians.Keys(guardians.Signers(t, 1))[0].Hex()

	t.Run("default", func(t *testing.T) {
		out, err := execCommand(t, t.TempDir(), "guardian-set", "init", "--guardians", guardian)
		require.NoError(t, err)
		require.Equal(t, []string{fmt.Sprintf("bridge %s initialized with guardian set 0 of 1 guardians", account.DefaultProgramID)}, out.lines)
	})

	t.Run("from environment", func(t *testing.T) {
		programID := account.Address{1, 2, 3}
		t.Setenv("GUARDIAN_PROGRAM_ID", programID.String())
		out, err := execCommand(t, t.TempDir(), "guardian-set", "init", "--guardians", guardian)
		require.NoError(t, err)
		require.Equal(t, []string{fmt.Sprintf("bridge %s initialized with guardian set 0 of 1 guardians", programID)}, out.lines)
	})

	t.Run("from config file", func(t *testing.T) {
		homeDir := t.TempDir()
		programID := account.Address{4, 5, 6}
		require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultConfigFile), []byte("program-id="+programID.String()+"\n"), 0600))
		out, err := execCommand(t, homeDir, "guardian-set", "init", "--guardians", guardian)
		require.NoError(t, err)
		require.Equal(t, []string{fmt.Sprintf("bridge %s initialized with guardian set 0 of 1 guardians", programID)}, out.lines)
	})

	t.Run("flag overrides config file", func(t *testing.T) {
		homeDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultConfigFile), []byte("program-id="+account.Address{4}.String()+"\n"), 0600))
		programID := account.Address{7}
		out, err := execCommand(t, homeDir, "guardian-set", "init", "--guardians", guardian, "--program-id", programID.String())
		require.NoError(t, err)
		require.Equal(t, []string{fmt.Sprintf("bridge %s initialized with guardian set 0 of 1 guardians", programID)}, out.lines)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := execCommand(t, t.TempDir(), "guardian-set", "init", "--guardians", guardian, "--program-id", "0OIl")
		require.ErrorContains(t, err, `invalid program id "0OIl"`)
	})
}

func TestDatabaseLocation(t *testing.T) {
	homeDir := t.TempDir()
	guardian := guardians.Keys(guardians.Signers(t, 1))[0].Hex()

	_, err := execCommand(t, homeDir, "guardian-set", "init", "--guardians", guardian)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(homeDir, defaultDBFile))

	dbFile := filepath.Join(t.TempDir(), "other", "bridge.db")
	t.Setenv("GUARDIAN_DB", dbFile)
	_, err = execCommand(t, homeDir, "guardian-set", "init", "--guardians", guardian)
	require.NoError(t, err)
	require.FileExists(t, dbFile)
}

func TestLoggerConfigFile(t *testing.T) {
	homeDir := t.TempDir()
	_, err := execCommand(t, homeDir, "keys", "show", "--logger-config", "missing.yaml")
	require.ErrorContains(t, err, "opening logger configuration file")

	require.NoError(t, os.WriteFile(filepath.Join(homeDir, "bad.yaml"), []byte("defaultLevel: [\n"), 0600))
	_, err = execCommand(t, homeDir, "keys", "show", "--logger-config", "bad.yaml")
	require.ErrorContains(t, err, "decoding logger configuration")
}

func TestCloseAndJoin(t *testing.T) {
	errClose := errors.New("close failed")
	errRun := errors.New("run failed")

	var err error
	closeAndJoin(func() error { return nil }, &err)
	require.NoError(t, err)

	closeAndJoin(func() error { return errClose }, &err)
	require.ErrorIs(t, err, errClose)
	require.EqualError(t, err, "closing accounts database: close failed")

	err = errRun
	closeAndJoin(func() error { return errClose }, &err)
	require.ErrorIs(t, err, errRun)
	require.ErrorIs(t, err, errClose)

	err = errRun
	closeAndJoin(func() error { return nil }, &err)
	require.Equal(t, errRun, err)
}
