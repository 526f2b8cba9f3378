package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Project-Sylos/Citrus/internal/metrics"
	"github.com/Project-Sylos/Citrus/internal/types"
)

// ErrCorrupt is returned when a stored value cannot be decoded
var ErrCorrupt = errors.New("stored value is corrupt")

// Repository persists the two library collections under fixed keys
type Repository struct {
	kv KV
}

// NewRepository creates a repository over a KV backend
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// LoadFiles returns the stored file collection.
// ErrNotFound means it was never written; ErrCorrupt wraps a decode failure.
func (r *Repository) LoadFiles(ctx context.Context) ([]types.FileEntry, error) {
	var files []types.FileEntry
	if err := r.load(ctx, types.KeyLibraryFiles, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// SaveFiles writes the whole file collection in one Put
func (r *Repository) SaveFiles(ctx context.Context, files []types.FileEntry) error {
	if files == nil {
		files = []types.FileEntry{}
	}
	return r.save(ctx, types.KeyLibraryFiles, files)
}

// LoadFolders returns the stored folder collection
func (r *Repository) LoadFolders(ctx context.Context) ([]types.Folder, error) {
	var folders []types.Folder
	if err := r.load(ctx, types.KeyFolders, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// SaveFolders writes the whole folder collection in one Put
func (r *Repository) SaveFolders(ctx context.Context, folders []types.Folder) error {
	if folders == nil {
		folders = []types.Folder{}
	}
	return r.save(ctx, types.KeyFolders, folders)
}

// Clear destroys both collections
func (r *Repository) Clear(ctx context.Context) error {
	for _, key := range []string{types.KeyLibraryFiles, types.KeyFolders} {
		if err := r.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

// Close closes the underlying KV
func (r *Repository) Close() error {
	return r.kv.Close()
}

func (r *Repository) load(ctx context.Context, key string, dst any) error {
	data, err := r.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	err = r.kv.Put(ctx, key, data)
	metrics.RecordStoreWrite(key, err == nil)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
