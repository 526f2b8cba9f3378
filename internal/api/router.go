package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Project-Sylos/Citrus/internal/api/handlers"
	apimiddleware "github.com/Project-Sylos/Citrus/internal/api/middleware"
	"github.com/Project-Sylos/Citrus/internal/blobs"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/metrics"
	"github.com/Project-Sylos/Citrus/sdk"
)

// Router represents the HTTP API router
type Router struct {
	lib     *sdk.Library
	origins []string
}

// NewRouter creates a new API router
func NewRouter(lib *sdk.Library, origins []string) *Router {
	return &Router{lib: lib, origins: origins}
}

// SetupRoutes configures all API routes using modular handlers
func (r *Router) SetupRoutes() *chi.Mux {
	router := chi.NewRouter()

	// Standard middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.Middleware)
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Custom middleware
	router.Use(apimiddleware.CORS(r.origins))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(r.lib)
	fileHandler := handlers.NewFileHandler(r.lib)
	folderHandler := handlers.NewFolderHandler(r.lib)
	uploadHandler := handlers.NewUploadHandler(r.lib)
	systemHandler := handlers.NewSystemHandler(r.lib)

	// Health check and metrics
	router.Get("/health", healthHandler.HealthCheck)
	router.Get("/health/remote", healthHandler.RemoteHealth)
	router.Handle("/metrics", metrics.Handler())

	// Uploaded and captured content
	router.Handle(blobs.RefPrefix+"*", r.lib.Blobs().Handler())

	// API routes
	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/files", func(files chi.Router) {
			files.Get("/", fileHandler.ListFiles)
			files.Post("/", fileHandler.AddOrUpdate)
			files.Get("/{id}", fileHandler.GetFile)
			files.Patch("/{id}", fileHandler.RenameFile)
			files.Delete("/{id}", fileHandler.DeleteFile)
			files.Post("/{id}/move", fileHandler.MoveFile)
			files.Get("/{id}/route", fileHandler.Route)
			files.Get("/{id}/download", fileHandler.Download)
		})

		api.Route("/folders", func(folders chi.Router) {
			folders.Get("/", folderHandler.ListFolders)
			folders.Post("/", folderHandler.CreateFolder)
			folders.Delete("/{name}", folderHandler.DeleteFolder)
		})

		api.Route("/uploads", func(uploads chi.Router) {
			uploads.Post("/explorer", uploadHandler.Explorer)
			uploads.Post("/camera", uploadHandler.Camera)
			uploads.Get("/pending", uploadHandler.Pending)
			uploads.Post("/confirm", uploadHandler.Confirm)
			uploads.Post("/cancel", uploadHandler.Cancel)
			uploads.Post("/scan", uploadHandler.Scan)
		})

		// System operations
		api.Post("/refresh", systemHandler.Refresh)
		api.Post("/reset", systemHandler.Reset)
		api.Get("/config", systemHandler.GetConfig)
	})

	return router
}
