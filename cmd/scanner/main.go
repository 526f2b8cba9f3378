package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/config"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/scanner"
)

func main() {
	var (
		configPath string
		port       int
		storageDir string
	)

	cmd := &cobra.Command{
		Use:          "citrus-scanner",
		Short:        "Document scan and storage service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Scanner.Port = port
			}
			if cmd.Flags().Changed("storage") {
				cfg.Scanner.StorageDir = storageDir
			}

			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer logging.Sync()

			svc, err := scanner.NewOS(cfg.Scanner, cfg.API.AllowedOrigins)
			if err != nil {
				return fmt.Errorf("failed to initialize scanner: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("%s:%d", cfg.Scanner.Host, cfg.Scanner.Port)
			return serve(ctx, &http.Server{
				Addr:              addr,
				Handler:           svc.Router(),
				ReadHeaderTimeout: 15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}, cfg.Scanner.StorageDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path (JSON)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port, overrides scanner.port")
	cmd.Flags().StringVar(&storageDir, "storage", "", "Storage directory, overrides scanner.storage_dir")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, srv *http.Server, storageDir string) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting scan service", zap.String("addr", srv.Addr), zap.String("storage", storageDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down scan service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
