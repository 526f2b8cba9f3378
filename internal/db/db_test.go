package db

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-Sylos/Citrus/internal/types"
)

// fakeS3 is an in-memory stand-in for the S3 client
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

// backends returns one fresh instance of every KV implementation
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	duck, err := New(filepath.Join(dir, "citrus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { duck.Close() })

	bolt, err := NewBoltStore(filepath.Join(dir, "citrus.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]KV{
		"duckdb": duck,
		"bolt":   bolt,
		"s3":     NewS3StoreWithClient(newFakeS3(), "library", "citrus"),
		"memory": NewMemoryStore(),
	}
}

// TestKVBackends runs the same contract against every backend
func TestKVBackends(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

			require.NoError(t, kv.Put(ctx, "k", []byte(`[1,2]`)))
			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))

			// Put replaces the whole value
			require.NoError(t, kv.Put(ctx, "k", []byte(`[3]`)))
			got, err = kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, `[3]`, string(got))

			require.NoError(t, kv.Delete(ctx, "k"))
			_, err = kv.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting twice is fine
			assert.NoError(t, kv.Delete(ctx, "k"))
		})
	}
}

func TestDuckDBPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, types.KeyFolders, []byte(`[{"name":"Root"}]`)))
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, types.KeyFolders)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Root"}]`, string(got))
}

func TestBoltBucketsExist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "b.bolt")

	store, err := NewBoltStore(path)
	require.NoError(t, err)
	assert.NoError(t, VerifyBucketsExist(store.db))
	require.NoError(t, store.Put(ctx, types.KeyLibraryFiles, []byte(`[]`)))
	require.NoError(t, store.Close())

	// Reopening an existing file passes verification and keeps the data
	reopened, err := NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, types.KeyLibraryFiles)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestBoltRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.bolt")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 8192), 0600))

	_, err := NewBoltStore(path)
	assert.Error(t, err)
}

func TestS3StoreObjectLayout(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "bucket", "tenant-a")

	require.NoError(t, store.Put(context.Background(), types.KeyLibraryFiles, []byte(`[]`)))
	_, ok := fake.objects["bucket/tenant-a/libraryFiles.json"]
	assert.True(t, ok, "expected object under prefix, have %v", fake.objects)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name        string
		cfg         types.StoreConfig
		expectError bool
	}{
		{name: "memory", cfg: types.StoreConfig{Driver: types.DriverMemory}},
		{name: "duckdb", cfg: types.StoreConfig{Driver: types.DriverDuckDB, DBPath: filepath.Join(dir, "open.db")}},
		{name: "bolt", cfg: types.StoreConfig{Driver: types.DriverBolt, DBPath: filepath.Join(dir, "open.bolt")}},
		{name: "unknown", cfg: types.StoreConfig{Driver: "tape"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := Open(ctx, tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, kv.Close())
		})
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	repo := NewRepository(kv)

	_, err := repo.LoadFiles(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.LoadFolders(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	files := []types.FileEntry{
		{ID: "a", Name: "fakefile.png", Path: "./images/fakefile.png", Folder: "Root", Origin: types.OriginSeed},
		{ID: "b", Name: "scan.JPG", Path: "http://localhost:5001/files/scan.JPG", Folder: "Root", Origin: types.OriginRemoteScan, IsFromStorage: true, IsScanned: true},
	}
	require.NoError(t, repo.SaveFiles(ctx, files))
	require.NoError(t, repo.SaveFolders(ctx, []types.Folder{{Name: "Root"}, {Name: "Work"}}))
	assert.Equal(t, 2, kv.Writes(), "each save is a single write")

	loadedFiles, err := repo.LoadFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, files, loadedFiles)

	loadedFolders, err := repo.LoadFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Folder{{Name: "Root"}, {Name: "Work"}}, loadedFolders)

	// The persisted form keeps the browser store's field names
	raw, err := kv.Get(ctx, types.KeyLibraryFiles)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"isScanned":true`)
	assert.Contains(t, string(raw), `"folder":"Root"`)

	require.NoError(t, repo.Clear(ctx))
	_, err = repo.LoadFiles(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryCorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	require.NoError(t, kv.Put(ctx, types.KeyLibraryFiles, []byte(`{not json`)))

	_, err := NewRepository(kv).LoadFiles(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRepositorySaveNilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	repo := NewRepository(kv)

	require.NoError(t, repo.SaveFiles(ctx, nil))
	raw, err := kv.Get(ctx, types.KeyLibraryFiles)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
