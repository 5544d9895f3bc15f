package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alphabill-org/guardian-core/logger"
	"github.com/alphabill-org/guardian-core/observability"
	"github.com/alphabill-org/guardian-core/types"
)

type (
	Observability interface {
		PrometheusRegisterer() prometheus.Registerer
		Logger() *slog.Logger
	}

	/*
		Verifier verifies wire encoded VAAs against guardian sets provided by the
		resolver and counts the results.
	*/
	Verifier struct {
		resolver GuardianSetResolver
		opts     []Option
		log      *slog.Logger
		results  *prometheus.CounterVec
	}
)

func New(resolver GuardianSetResolver, obs Observability, opts ...Option) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("guardian set resolver is nil")
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: observability.Namespace,
		Subsystem: "verifier",
		Name:      "vaa_total",
		Help:      "Number of VAAs verified, by result",
	}, []string{"result"})
	results, err := observability.Register(obs.PrometheusRegisterer(), results)
	if err != nil {
		return nil, fmt.Errorf("registering VAA counter: %w", err)
	}
	return &Verifier{
		resolver: resolver,
		opts:     opts,
		log:      obs.Logger().With(logger.Module("verifier")),
		results:  results,
	}, nil
}

/*
Verify decodes raw VAA, resolves the guardian set it claims to be signed by
and verifies the signatures. Options are applied after the ones given to New.
*/
func (v *Verifier) Verify(ctx context.Context, raw []byte, opts ...Option) (*types.VAA, error) {
	vaa, err := v.verify(ctx, raw, opts)
	v.results.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		v.log.DebugContext(ctx, "VAA rejected", logger.Error(err))
		return nil, err
	}
	digest := vaa.MessageHash()
	v.log.DebugContext(ctx, "VAA verified", logger.GuardianSetIndex(vaa.GuardianSetIndex), logger.Digest(digest[:]))
	return vaa, nil
}

func (v *Verifier) verify(ctx context.Context, raw []byte, opts []Option) (*types.VAA, error) {
	vaa, err := types.UnmarshalVAA(raw)
	if err != nil {
		return nil, err
	}
	opts = append(append([]Option(nil), v.opts...), opts...)
	err = v.resolver.WithGuardianSet(ctx, vaa.GuardianSetIndex, func(gs types.GuardianSetReader) error {
		return VerifyVAA(vaa, gs, opts...)
	})
	if err != nil {
		return nil, err
	}
	return vaa, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "verified"
	}
	return types.ErrorKind(err)
}
