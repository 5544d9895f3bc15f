package logger

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/alphabill-org/guardian-core/logger"
)

/*
New returns logger for test t on debug level. Output goes through t.Log so
it is shown only for failed tests (or when running with -v).
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, slog.LevelDebug)
}

// NewLvl returns logger for test t on given level.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	cfg := &logger.LogConfiguration{
		Level:      level.String(),
		Format:     "console",
		TimeFormat: "15:04:05.0000",
	}
	if s, ok := os.LookupEnv("GUARDIAN_TEST_LOG_FORMAT"); ok {
		cfg.Format = s
	}
	h, err := cfg.Handler(testLogWriter{t: t})
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return slog.New(h)
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return logger.NOP()
}

type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
