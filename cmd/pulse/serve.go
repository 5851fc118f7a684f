package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/internal/server"
	"github.com/pulseboard/pulse/internal/telemetry"
	"github.com/pulseboard/pulse/internal/version"
	"github.com/pulseboard/pulse/registry"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Discover providers once and serve /status, /healthz and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []config.Option
			if addr != "" {
				extra = append(extra, config.WithAddress(addr))
			}
			cfg, err := root.loadConfig(extra...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides PULSE_HTTP_ADDRESS)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := newLogger(cfg, out)

	tracing, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.ServiceName, version.Version, out)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	metrics := telemetry.NewMetrics()
	reg, err := discover(ctx, cfg, logger,
		registry.WithObserver(metrics),
		registry.WithTracer(tracing.Tracer("github.com/pulseboard/pulse/registry")),
	)
	if err != nil {
		return err
	}
	defer closeProviders(reg, logger)
	metrics.RecordStatus(reg.Status())

	srv := server.New(cfg.HTTP, cfg.ServiceName, reg, metrics.Handler(), logger.With("http", nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	return g.Wait()
}

// closeProviders releases providers that hold connections.
func closeProviders(reg *registry.Registry, logger *logging.Logger) {
	var errs []error
	for _, domain := range reg.Domains() {
		for _, p := range reg.GetAll(domain) {
			if c, ok := p.(io.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Provider shutdown reported errors", map[string]interface{}{"error": err.Error()})
	}
}
