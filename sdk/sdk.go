package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/blobs"
	"github.com/Project-Sylos/Citrus/internal/config"
	"github.com/Project-Sylos/Citrus/internal/db"
	"github.com/Project-Sylos/Citrus/internal/dispatch"
	"github.com/Project-Sylos/Citrus/internal/library"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/remote"
	"github.com/Project-Sylos/Citrus/internal/types"
)

// ErrNotFound is returned when an entry id matches nothing
var ErrNotFound = errors.New("entry not found")

// Library is the public SDK interface for the document library.
// It wires the persistent store, the remote scan service and the state manager together.
type Library struct {
	config  *types.Config
	repo    *db.Repository
	remote  *remote.Client
	blobs   *blobs.Store
	manager *library.Manager
}

// New creates a Library from a JSON config file. An empty path uses defaults
// plus CITRUS_* environment overrides. The library is activated before returning.
func New(ctx context.Context, configPath string) (*Library, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Library from an already validated config
func NewWithConfig(ctx context.Context, cfg *types.Config) (*Library, error) {
	kv, err := db.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		kv.Close()
		return nil, err
	}

	return build(ctx, cfg, kv, blobStore)
}

// NewWithStore creates a Library over an existing KV and blob store, for tests and embedding
func NewWithStore(ctx context.Context, cfg *types.Config, kv db.KV, blobStore *blobs.Store) (*Library, error) {
	return build(ctx, cfg, kv, blobStore)
}

func build(ctx context.Context, cfg *types.Config, kv db.KV, blobStore *blobs.Store) (*Library, error) {
	requestTimeout, err := config.ParseDuration(cfg.Remote.RequestTimeout)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("invalid remote request timeout: %w", err)
	}
	reconcileTimeout, err := config.ParseDuration(cfg.Library.ReconcileTimeout)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("invalid reconcile timeout: %w", err)
	}

	client := remote.New(remote.Config{BaseURL: cfg.Remote.BaseURL, Timeout: requestTimeout})
	repo := db.NewRepository(kv)
	manager := library.New(repo, client,
		library.WithReconcileTimeout(reconcileTimeout),
		library.WithReconcileOnActivate(cfg.Library.ReconcileOnActivate),
		library.WithScanner(client, blobStore),
	)

	if err := manager.Activate(ctx); err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to activate library: %w", err)
	}

	return &Library{
		config:  cfg,
		repo:    repo,
		remote:  client,
		blobs:   blobStore,
		manager: manager,
	}, nil
}

func newBlobStore(cfg *types.Config) (*blobs.Store, error) {
	if cfg.Store.Driver == types.DriverMemory {
		return blobs.NewMemory(), nil
	}
	store, err := blobs.NewOS(cfg.Library.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return store, nil
}

// Close stops any in-flight reconciliation and closes the store.
// Always call this during shutdown so pending writes reach disk.
func (l *Library) Close() error {
	l.manager.Close()
	return l.repo.Close()
}

// GetConfig returns the current configuration
func (l *Library) GetConfig() *types.Config {
	return l.config
}

// Manager exposes the library state manager
func (l *Library) Manager() *library.Manager {
	return l.manager
}

// Blobs exposes the content store behind uploaded and captured files
func (l *Library) Blobs() *blobs.Store {
	return l.blobs
}

// Remote exposes the scan service client
func (l *Library) Remote() *remote.Client {
	return l.remote
}

// UploadFile stores picked content and opens the naming prompt for it
func (l *Library) UploadFile(r io.Reader, originalName string) (types.PendingUpload, error) {
	ref, err := l.blobs.Save(r, originalName)
	if err != nil {
		return types.PendingUpload{}, fmt.Errorf("failed to store upload: %w", err)
	}
	return l.manager.AcceptExplorerFile(ref, originalName), nil
}

// CaptureCamera stores a camera capture given as a data URL and opens the naming prompt
func (l *Library) CaptureCamera(dataURL string) (types.PendingUpload, error) {
	ref, err := l.blobs.SaveDataURL(dataURL)
	if err != nil {
		return types.PendingUpload{}, fmt.Errorf("failed to store capture: %w", err)
	}
	return l.manager.AcceptCameraCapture(ref), nil
}

// CancelUpload discards the pending upload and releases its stored content
func (l *Library) CancelUpload() bool {
	p, ok := l.manager.CancelPending()
	if ok {
		l.releaseBlob(p.ContentRef)
	}
	return ok
}

// DeleteFile removes an entry and, when nothing else points at it, its stored content
func (l *Library) DeleteFile(ctx context.Context, id string) (bool, error) {
	e, ok := l.manager.Get(id)
	if !ok {
		return false, nil
	}
	changed, err := l.manager.DeleteFile(ctx, id)
	if err != nil || !changed {
		return changed, err
	}
	for _, f := range l.manager.Files() {
		if f.Path == e.Path {
			return true, nil
		}
	}
	l.releaseBlob(e.Path)
	return true, nil
}

// releaseBlob removes local content. Remote paths are left alone, and a failed
// removal only leaks the blob.
func (l *Library) releaseBlob(ref string) {
	if !blobs.IsRef(ref) {
		return
	}
	if err := l.blobs.Remove(ref); err != nil {
		logging.Named("sdk").Warn("failed to remove blob", zap.String("ref", ref), zap.Error(err))
	}
}

// Route picks the viewer for an entry
func (l *Library) Route(id string) (dispatch.Route, error) {
	e, ok := l.manager.Get(id)
	if !ok {
		return dispatch.Route{}, ErrNotFound
	}
	return dispatch.RouteFor(e), nil
}

// DownloadLink describes how to download an entry
func (l *Library) DownloadLink(id string) (dispatch.Link, error) {
	e, ok := l.manager.Get(id)
	if !ok {
		return dispatch.Link{}, ErrNotFound
	}
	return dispatch.DownloadLink(e), nil
}

// Reset clears the store and reseeds the library
func (l *Library) Reset(ctx context.Context) error {
	return l.manager.Reset(ctx)
}

// Re-export types for convenience
type (
	Config        = types.Config
	FileEntry     = types.FileEntry
	Folder        = types.Folder
	Origin        = types.Origin
	PendingUpload = types.PendingUpload
	View          = types.View
	APIResponse   = types.APIResponse
	Route         = dispatch.Route
	Link          = dispatch.Link
)

// Re-export constants
const (
	RootFolder = types.RootFolder

	OriginSeed          = types.OriginSeed
	OriginCamera        = types.OriginCamera
	OriginExplorer      = types.OriginExplorer
	OriginRemoteStorage = types.OriginRemoteStorage
	OriginRemoteScan    = types.OriginRemoteScan
)
