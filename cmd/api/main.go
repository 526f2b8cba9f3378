package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/api"
	"github.com/Project-Sylos/Citrus/internal/config"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/sdk"
)

type options struct {
	configPath string
	host       string
	port       int
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "citrus-api",
		Short:         "Citrus document library API server",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (JSON); CITRUS_* environment variables override it")
	flags.StringVar(&opts.host, "host", "", "Listen host, overrides api.host")
	flags.IntVarP(&opts.port, "port", "p", 0, "Listen port, overrides api.port")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level, overrides logging.level")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.API.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.API.Port = opts.port
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}

	if err := logging.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	logging.Info("initializing library",
		zap.String("config", opts.configPath),
		zap.String("store", cfg.Store.Driver),
		zap.String("remote", cfg.Remote.BaseURL),
	)
	lib, err := sdk.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize library: %w", err)
	}

	server := api.NewServer(lib, &cfg.API)
	runErr := server.Run(ctx)

	// Close the library after the listener is gone so in-flight writes finish
	if err := server.Stop(); err != nil {
		logging.Error("failed to close library", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	logging.Info("server shutdown complete")
	return nil
}
