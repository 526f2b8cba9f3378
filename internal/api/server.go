package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/sdk"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP API server
type Server struct {
	router *chi.Mux
	lib    *sdk.Library
	config *types.APIConfig
}

// NewServer creates a new API server
func NewServer(lib *sdk.Library, config *types.APIConfig) *Server {
	router := NewRouter(lib, config.AllowedOrigins)

	return &Server{
		router: router.SetupRoutes(),
		lib:    lib,
		config: config,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log := logging.Named("api")
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api/v1/", addr)),
			zap.String("health", fmt.Sprintf("http://%s/health", addr)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// GetRouter returns the configured router
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}

// Stop closes the library behind the server
func (s *Server) Stop() error {
	return s.lib.Close()
}
