package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/internal/version"
	"github.com/pulseboard/pulse/providers"
	_ "github.com/pulseboard/pulse/providers/all"
	"github.com/pulseboard/pulse/registry"
)

type rootOptions struct {
	configFile string
	envFiles   []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pulse",
		Short:         "Discover configured data providers and report their status",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (JSON or YAML)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newServeCmd(opts),
		newProvidersCmd(opts),
		newNotifyCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig applies .env files, then the config file and environment, then
// flag overrides.
func (o *rootOptions) loadConfig(extra ...config.Option) (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		extra = append(extra, config.WithLogLevel(o.logLevel))
	}
	return config.Load(o.configFile, extra...)
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	logger := logging.New(cfg.ServiceName, logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})
	logging.SetDefault(logger)
	return logger
}

// discover builds the registry for the bundled domain table and runs
// discovery once.
func discover(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...registry.Option) (*registry.Registry, error) {
	opts = append([]registry.Option{
		registry.WithLogger(logger.With("registry", nil)),
		registry.WithCandidateTimeout(cfg.Discovery.CandidateTimeout),
	}, opts...)

	r, err := registry.New(providers.Table(), opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Discover(ctx); err != nil {
		return nil, err
	}
	return r, nil
}
