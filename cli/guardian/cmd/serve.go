package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/guardian-core/bridge"
	"github.com/alphabill-org/guardian-core/logger"
	"github.com/alphabill-org/guardian-core/observability"
	"github.com/alphabill-org/guardian-core/rpc"
	"github.com/alphabill-org/guardian-core/state"
	"github.com/alphabill-org/guardian-core/verifier"
)

type serveConfig struct {
	Base           *baseConfiguration
	Server         rpc.ServerConfiguration
	ReportInterval time.Duration
}

func newServeCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &serveConfig{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the VAA verification REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRunFunc(cmd.Context(), config)
		},
	}
	cmd.Flags().StringVar(&config.Server.Address, "address", "localhost:26080", "address to listen for REST API requests, in the form \"host:port\"")
	cmd.Flags().DurationVar(&config.Server.ReadTimeout, "read-timeout", 3*time.Second, "maximum duration for reading the entire request, including the body")
	cmd.Flags().DurationVar(&config.Server.ReadHeaderTimeout, "read-header-timeout", time.Second, "amount of time allowed to read request headers")
	cmd.Flags().DurationVar(&config.Server.WriteTimeout, "write-timeout", 5*time.Second, "maximum duration before timing out writes of the response")
	cmd.Flags().DurationVar(&config.Server.IdleTimeout, "idle-timeout", 30*time.Second, "maximum amount of time to wait for the next request when keep-alive is enabled")
	cmd.Flags().Int64Var(&config.Server.MaxBodyBytes, "max-body-bytes", rpc.DefaultMaxBodyBytes, "maximum number of bytes the server will read parsing the request body")
	cmd.Flags().DurationVar(&config.ReportInterval, "report-interval", 30*time.Second, "how often the current guardian set metrics are refreshed")
	return cmd
}

func serveRunFunc(ctx context.Context, config *serveConfig) error {
	if config.Server.IsAddressEmpty() {
		return errors.New("REST API address is not set")
	}
	obs := config.Base.observe
	log := obs.Logger()

	proc, closeDB, err := config.Base.openBridge()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDB(); err != nil {
			log.WarnContext(ctx, "closing accounts database", logger.Error(err))
		}
	}()

	vaaVerifier, err := verifier.New(proc.Resolver(), obs)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}
	server, err := rpc.NewHTTPServer(&config.Server, obs, rpc.BridgeEndpoints(vaaVerifier, proc, log))
	if err != nil {
		return fmt.Errorf("creating REST server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(ctx, fmt.Sprintf("REST API starting on %s, bridge program %s", server.Addr, proc.ProgramID()))
		return httpsrv.Run(ctx, *server, httpsrv.ShutdownTimeout(5*time.Second))
	})

	g.Go(func() error {
		return reportGuardianSet(ctx, proc, obs, config.ReportInterval)
	})

	return g.Wait()
}

/*
reportGuardianSet refreshes the current guardian set gauges until ctx is cancelled.
*/
func reportGuardianSet(ctx context.Context, proc *bridge.Processor, obs *observability.Observability, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	gsIndex := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: observability.Namespace,
		Subsystem: "bridge",
		Name:      "guardian_set_index",
		Help:      "Index of the current guardian set",
	})
	gsSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: observability.Namespace,
		Subsystem: "bridge",
		Name:      "guardian_set_size",
		Help:      "Number of guardians in the current guardian set",
	})
	var err error
	if gsIndex, err = observability.Register(obs.PrometheusRegisterer(), gsIndex); err != nil {
		return fmt.Errorf("registering guardian set index gauge: %w", err)
	}
	if gsSize, err = observability.Register(obs.PrometheusRegisterer(), gsSize); err != nil {
		return fmt.Errorf("registering guardian set size gauge: %w", err)
	}

	log := obs.Logger()
	lastIndex := int64(-1)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		gs, err := proc.CurrentGuardianSet(ctx)
		switch {
		case errors.Is(err, state.ErrAccountNotFound):
			log.DebugContext(ctx, "bridge is not initialized")
		case err != nil:
			log.WarnContext(ctx, "reading current guardian set", logger.Error(err))
		default:
			gsIndex.Set(float64(gs.Index))
			gsSize.Set(float64(len(gs.Keys)))
			if int64(gs.Index) != lastIndex {
				lastIndex = int64(gs.Index)
				log.InfoContext(ctx, "current guardian set", logger.GuardianSetIndex(gs.Index), logger.Data(gs))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
