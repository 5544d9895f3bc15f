package observability

import (
	"testing"

	testlogr "github.com/alphabill-org/guardian-core/internal/testutils/logger"
	"github.com/alphabill-org/guardian-core/observability"
)

/*
Default returns observability with test logger and fresh metrics registry
so tests can run in parallel without metric name collisions.
*/
func Default(t testing.TB) *observability.Observability {
	return observability.New(testlogr.New(t))
}

// NOP returns observability which doesn't log anything.
func NOP() *observability.Observability {
	return observability.New(testlogr.NOP())
}
