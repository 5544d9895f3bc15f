package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace of all the metrics exported by the service.
const Namespace = "guardian"

/*
Observability bundles the logger and metrics registry passed to the
components. Components declare their own interface with the subset of
methods they need.
*/
type Observability struct {
	log *slog.Logger
	reg *prometheus.Registry
}

/*
New returns Observability which registers metrics in a new Prometheus
registry, Go runtime and process collectors included.
*/
func New(log *slog.Logger) *Observability {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Observability{log: log, reg: reg}
}

func (o *Observability) Logger() *slog.Logger {
	return o.log
}

func (o *Observability) PrometheusRegisterer() prometheus.Registerer {
	return o.reg
}

func (o *Observability) PrometheusGatherer() prometheus.Gatherer {
	return o.reg
}

// MetricsHandler returns HTTP handler serving the metrics in Prometheus exposition format.
func (o *Observability) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(o.reg, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
}

/*
Register registers collector "c" in "reg". When equal collector is already
registered the existing one is returned, so components sharing the registry
may be created more than once.
*/
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if !errors.As(err, &are) {
			return c, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("collector registered with type %T", are.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}
