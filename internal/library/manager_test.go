package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-Sylos/Citrus/internal/db"
	"github.com/Project-Sylos/Citrus/internal/dispatch"
	"github.com/Project-Sylos/Citrus/internal/types"
)

// fakeLister serves a fixed snapshot. When gate is set, ListFiles waits for it or the context.
type fakeLister struct {
	mu    sync.Mutex
	snap  *types.Snapshot
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeLister) ListFiles(ctx context.Context) (*types.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	gate, snap, err := f.gate, f.snap, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return &types.Snapshot{}, nil
	}
	return snap, nil
}

func (f *fakeLister) FileURL(kind string, rf types.RemoteFile) string {
	return "http://scanner.test/" + kind + "/" + rf.Filename
}

func (f *fakeLister) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyRepo fails saves on demand
type flakyRepo struct {
	*db.Repository
	failSaves       bool
	failFolderSaves bool
	loadErr         error
}

func (r *flakyRepo) LoadFiles(ctx context.Context) ([]types.FileEntry, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.Repository.LoadFiles(ctx)
}

func (r *flakyRepo) SaveFiles(ctx context.Context, files []types.FileEntry) error {
	if r.failSaves {
		return errors.New("disk full")
	}
	return r.Repository.SaveFiles(ctx, files)
}

func (r *flakyRepo) SaveFolders(ctx context.Context, folders []types.Folder) error {
	if r.failSaves || r.failFolderSaves {
		return errors.New("disk full")
	}
	return r.Repository.SaveFolders(ctx, folders)
}

// newTestManager returns an activated manager over an empty memory store with
// the activation reconciliation turned off
func newTestManager(t *testing.T, lister Lister, opts ...Option) (*Manager, *db.MemoryStore) {
	t.Helper()
	kv := db.NewMemoryStore()
	opts = append([]Option{WithReconcileOnActivate(false)}, opts...)
	m := New(db.NewRepository(kv), lister, opts...)
	require.NoError(t, m.Activate(context.Background()))
	t.Cleanup(m.Close)
	return m, kv
}

func names(files []types.FileEntry) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func entryNamed(t *testing.T, m *Manager, name string) types.FileEntry {
	t.Helper()
	for _, f := range m.Files() {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no entry named %q", name)
	return types.FileEntry{}
}

func TestActivateSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestManager(t, &fakeLister{})

	files := m.Files()
	require.Len(t, files, 1)
	assert.Equal(t, types.DefaultFileName, files[0].Name)
	assert.Equal(t, types.DefaultFilePath, files[0].Path)
	assert.Equal(t, types.RootFolder, files[0].Folder)
	assert.Equal(t, types.OriginSeed, files[0].Origin)
	assert.NotEmpty(t, files[0].ID)
	assert.Equal(t, []types.Folder{{Name: types.RootFolder}}, m.Folders())

	// The seed is written back immediately
	repo := db.NewRepository(kv)
	stored, err := repo.LoadFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, files, stored)
	folders, err := repo.LoadFolders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Folder{{Name: types.RootFolder}}, folders)
}

func TestActivateRepairsLegacyState(t *testing.T) {
	ctx := context.Background()
	kv := db.NewMemoryStore()
	require.NoError(t, kv.Put(ctx, types.KeyLibraryFiles, []byte(`[
		{"name":"fakefile.png","path":"./images/fakefile.png","folder":"Root"},
		{"name":"selfie.png","path":"blob:http://localhost/1","folder":"Trips","isFromCamera":true},
		{"name":"scan.JPG","path":"http://localhost:5001/files/scan.JPG","folder":"Gone","isFromStorage":true,"isScanned":true},
		{"name":"notes.pdf","path":"blob:http://localhost/2"}
	]`)))
	require.NoError(t, kv.Put(ctx, types.KeyFolders, []byte(`[{"name":"Trips"},{"name":""},{"name":"Trips"}]`)))

	m := New(db.NewRepository(kv), &fakeLister{}, WithReconcileOnActivate(false))
	require.NoError(t, m.Activate(ctx))
	defer m.Close()

	assert.Equal(t, []types.Folder{{Name: types.RootFolder}, {Name: "Trips"}}, m.Folders())

	tests := []struct {
		name   string
		folder string
		origin types.Origin
	}{
		{name: "fakefile.png", folder: types.RootFolder, origin: types.OriginSeed},
		{name: "selfie.png", folder: "Trips", origin: types.OriginCamera},
		{name: "scan.JPG", folder: types.RootFolder, origin: types.OriginRemoteScan},
		{name: "notes.pdf", folder: types.RootFolder, origin: types.OriginExplorer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entryNamed(t, m, tt.name)
			assert.NotEmpty(t, e.ID)
			assert.Equal(t, tt.folder, e.Folder)
			assert.Equal(t, tt.origin, e.Origin)
		})
	}

	// The repaired state was persisted
	stored, err := db.NewRepository(kv).LoadFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.Files(), stored)
}

func TestActivateCorruptValueFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	kv := db.NewMemoryStore()
	require.NoError(t, kv.Put(ctx, types.KeyLibraryFiles, []byte(`not json`)))
	require.NoError(t, kv.Put(ctx, types.KeyFolders, []byte(`{`)))

	m := New(db.NewRepository(kv), &fakeLister{}, WithReconcileOnActivate(false))
	require.NoError(t, m.Activate(ctx))
	defer m.Close()

	assert.Equal(t, []string{types.DefaultFileName}, names(m.Files()))
	assert.Equal(t, []types.Folder{{Name: types.RootFolder}}, m.Folders())
}

func TestActivateStoreFailure(t *testing.T) {
	repo := &flakyRepo{Repository: db.NewRepository(db.NewMemoryStore()), loadErr: errors.New("connection refused")}
	m := New(repo, &fakeLister{}, WithReconcileOnActivate(false))
	defer m.Close()

	err := m.Activate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestActivateStartsReconciliation(t *testing.T) {
	lister := &fakeLister{snap: &types.Snapshot{
		ProcessedFiles: []types.RemoteFile{{Filename: "receipt.JPG"}},
	}}
	m := New(db.NewRepository(db.NewMemoryStore()), lister)
	require.NoError(t, m.Activate(context.Background()))
	defer m.Close()

	assert.Eventually(t, func() bool { return len(m.Files()) == 2 }, time.Second, 5*time.Millisecond)

	// A second activation does not reconcile again
	require.NoError(t, m.Activate(context.Background()))
	m.Close()
	assert.Equal(t, 1, lister.Calls())
}

func TestAddOrUpdateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestManager(t, &fakeLister{})
	a := types.FileEntry{Name: "a.png", Path: "/blobs/a.png", Origin: types.OriginExplorer}

	changed, err := m.AddOrUpdate(ctx, []types.FileEntry{a})
	require.NoError(t, err)
	assert.True(t, changed)
	after := m.Files()
	writes := kv.Writes()

	changed, err = m.AddOrUpdate(ctx, []types.FileEntry{a})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, after, m.Files())
	assert.Equal(t, writes, kv.Writes(), "a no-op merge does not write")
}

func TestAddOrUpdateUpdatesPathInPlace(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})

	_, err := m.AddOrUpdate(ctx, []types.FileEntry{{Name: "x.png", Path: "P1", Origin: types.OriginExplorer}})
	require.NoError(t, err)
	before := entryNamed(t, m, "x.png")
	size := len(m.Files())

	changed, err := m.AddOrUpdate(ctx, []types.FileEntry{{Name: "x.png", Path: "P2", IsScanned: true}})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, m.Files(), size)

	after := entryNamed(t, m, "x.png")
	assert.Equal(t, "P2", after.Path)
	assert.True(t, after.IsScanned)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Folder, after.Folder)
	assert.Equal(t, types.OriginRemoteScan, after.Origin, "origin follows the scanned flag")
}

func TestUpdateKeepsOriginInStepWithFlags(t *testing.T) {
	ctx := context.Background()
	kv := db.NewMemoryStore()
	lister := &fakeLister{snap: &types.Snapshot{ProcessedFiles: []types.RemoteFile{{Filename: "x.png"}}}}
	m := New(db.NewRepository(kv), lister, WithReconcileOnActivate(false))
	require.NoError(t, m.Activate(ctx))
	defer m.Close()

	_, err := m.ReconcileWithRemote(ctx)
	require.NoError(t, err)
	require.Equal(t, dispatch.ViewerMarkup, dispatch.Dispatch(entryNamed(t, m, "x.png")))

	// The same name saved again from the explorer is no longer scanned
	m.AcceptExplorerFile("/blobs/abc.png", "x.png")
	_, err = m.ConfirmPending(ctx, "")
	require.NoError(t, err)

	updated := entryNamed(t, m, "x.png")
	assert.False(t, updated.IsScanned)
	assert.Equal(t, types.OriginRemoteStorage, updated.Origin)
	assert.Equal(t, dispatch.ViewerUploaded, dispatch.Dispatch(updated))

	reloaded := New(db.NewRepository(kv), lister, WithReconcileOnActivate(false))
	require.NoError(t, reloaded.Activate(ctx))
	defer reloaded.Close()

	after := entryNamed(t, reloaded, "x.png")
	assert.False(t, after.IsScanned, "reload keeps the flag the update gave it")
	assert.Equal(t, updated.Origin, after.Origin)
	assert.Equal(t, dispatch.ViewerUploaded, dispatch.Dispatch(after))
}

func TestAddOrUpdateWritesOnce(t *testing.T) {
	m, kv := newTestManager(t, &fakeLister{})
	writes := kv.Writes()

	changed, err := m.AddOrUpdate(context.Background(), []types.FileEntry{
		{Name: "one.png", Path: "/blobs/1.png"},
		{Name: "two.png", Path: "/blobs/2.png"},
		{Name: "", Path: "/blobs/blank.png"},
		{Name: "three.pdf", Path: "/blobs/3.pdf", Folder: "Nowhere"},
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, writes+1, kv.Writes())
	assert.Equal(t, []string{types.DefaultFileName, "one.png", "two.png", "three.pdf"}, names(m.Files()))
	assert.Equal(t, types.RootFolder, entryNamed(t, m, "three.pdf").Folder)
}

func TestReconcileWithRemote(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{snap: &types.Snapshot{
		StorageFiles:   []types.RemoteFile{{Filename: "a.JPG"}, {Filename: "b.JPG"}},
		ProcessedFiles: []types.RemoteFile{{Filename: "b.JPG"}, {Filename: "c.JPG"}, {Filename: ""}},
	}}
	m, _ := newTestManager(t, lister)

	changed, err := m.ReconcileWithRemote(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{types.DefaultFileName, "a.JPG", "b.JPG", "c.JPG"}, names(m.Files()))

	b := entryNamed(t, m, "b.JPG")
	assert.Equal(t, "http://scanner.test/storage/b.JPG", b.Path, "first occurrence wins")
	assert.Equal(t, types.RootFolder, b.Folder)
	assert.Equal(t, types.OriginRemoteScan, b.Origin)
	assert.True(t, b.IsFromStorage)
	assert.True(t, b.IsScanned)
	assert.Equal(t, "http://scanner.test/processed/c.JPG", entryNamed(t, m, "c.JPG").Path)

	// Repeating the same listing never duplicates
	changed, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, m.Files(), 4)
}

func TestReconcileToleratesMissingArrays(t *testing.T) {
	m, _ := newTestManager(t, &fakeLister{snap: &types.Snapshot{}})

	changed, err := m.ReconcileWithRemote(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, m.Files(), 1)
}

func TestReconcileFailureLeavesStateUnchanged(t *testing.T) {
	m, kv := newTestManager(t, &fakeLister{err: errors.New("connection refused")})
	before := m.Files()
	writes := kv.Writes()

	changed, err := m.ReconcileWithRemote(context.Background())
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, m.Files())
	assert.Equal(t, writes, kv.Writes())
}

func TestReconcileTimesOut(t *testing.T) {
	lister := &fakeLister{gate: make(chan struct{})}
	m, _ := newTestManager(t, lister, WithReconcileTimeout(30*time.Millisecond))

	_, err := m.ReconcileWithRemote(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, m.Files(), 1)
}

func TestCloseCancelsReconciliation(t *testing.T) {
	lister := &fakeLister{gate: make(chan struct{})}
	m := New(db.NewRepository(db.NewMemoryStore()), lister, WithReconcileTimeout(0))
	require.NoError(t, m.Activate(context.Background()))
	require.Eventually(t, func() bool { return lister.Calls() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the in-flight reconciliation")
	}
	assert.Len(t, m.Files(), 1)
}

func TestLocalMutationsDuringReconcileAreKept(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	lister := &fakeLister{gate: gate, snap: &types.Snapshot{
		StorageFiles: []types.RemoteFile{{Filename: "remote.JPG"}},
	}}
	m, _ := newTestManager(t, lister, WithReconcileTimeout(0))

	type result struct {
		changed bool
		err     error
	}
	out := make(chan result, 1)
	go func() {
		changed, err := m.ReconcileWithRemote(ctx)
		out <- result{changed, err}
	}()
	require.Eventually(t, func() bool { return lister.Calls() == 1 }, time.Second, 5*time.Millisecond)

	// The fetch is in flight; local edits go through meanwhile
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	_, err = m.AddOrUpdate(ctx, []types.FileEntry{{Name: "local.png", Path: "/blobs/l.png"}})
	require.NoError(t, err)
	_, err = m.DeleteFile(ctx, entryNamed(t, m, types.DefaultFileName).ID)
	require.NoError(t, err)

	close(gate)
	res := <-out
	require.NoError(t, res.err)
	assert.True(t, res.changed)

	assert.Equal(t, []string{"local.png", "remote.JPG"}, names(m.Files()))
	assert.Len(t, m.Folders(), 2)
}

func TestReconcileWithoutLister(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.ReconcileWithRemote(context.Background())
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestCreateFolder(t *testing.T) {
	tests := []struct {
		name        string
		folder      string
		wantChanged bool
		wantFolders int
	}{
		{name: "new folder", folder: "Work", wantChanged: true, wantFolders: 2},
		{name: "trimmed", folder: "  Work  ", wantChanged: true, wantFolders: 2},
		{name: "blank", folder: "", wantFolders: 1},
		{name: "whitespace", folder: "   ", wantFolders: 1},
		{name: "root is permanent", folder: "Root", wantFolders: 1},
		{name: "case sensitive", folder: "root", wantChanged: true, wantFolders: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, &fakeLister{})

			changed, err := m.CreateFolder(context.Background(), tt.folder)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Len(t, m.Folders(), tt.wantFolders)
		})
	}
}

func TestCreateFolderDuplicate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})

	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	changed, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, m.Folders(), 2)
}

func TestDeleteFolder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	_, err = m.AddOrUpdate(ctx, []types.FileEntry{{Name: "report.pdf", Path: "/blobs/r.pdf"}})
	require.NoError(t, err)
	_, err = m.MoveFile(ctx, entryNamed(t, m, "report.pdf").ID, "Work")
	require.NoError(t, err)
	m.SelectFolder("Work")

	_, err = m.DeleteFolder(ctx, types.RootFolder)
	assert.ErrorIs(t, err, ErrRootFolder)

	changed, err := m.DeleteFolder(ctx, "Nope")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = m.DeleteFolder(ctx, "Work")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []types.Folder{{Name: types.RootFolder}}, m.Folders())
	assert.Equal(t, types.RootFolder, entryNamed(t, m, "report.pdf").Folder)
	assert.Len(t, m.Files(), 2, "files are never deleted with their folder")
	assert.Equal(t, types.RootFolder, m.View().Folder)
}

func TestDeleteFolderRestoresFilesWhenFolderWriteFails(t *testing.T) {
	ctx := context.Background()
	kv := db.NewMemoryStore()
	repo := &flakyRepo{Repository: db.NewRepository(kv)}
	m := New(repo, &fakeLister{}, WithReconcileOnActivate(false))
	require.NoError(t, m.Activate(ctx))
	defer m.Close()

	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	id := entryNamed(t, m, types.DefaultFileName).ID
	_, err = m.MoveFile(ctx, id, "Work")
	require.NoError(t, err)

	repo.failFolderSaves = true
	changed, err := m.DeleteFolder(ctx, "Work")
	require.Error(t, err)
	assert.False(t, changed)

	assert.Equal(t, []types.Folder{{Name: types.RootFolder}, {Name: "Work"}}, m.Folders())
	assert.Equal(t, "Work", entryNamed(t, m, types.DefaultFileName).Folder)

	stored, err := db.NewRepository(kv).LoadFiles(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Work", stored[0].Folder)
}

func TestMoveFile(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	id := entryNamed(t, m, types.DefaultFileName).ID

	require.True(t, m.OpenMove(id))
	_, err = m.MoveFile(ctx, id, "Elsewhere")
	assert.ErrorIs(t, err, ErrUnknownFolder)
	_, open := m.MoveTarget()
	assert.False(t, open, "a rejected target still closes the affordance")

	require.True(t, m.OpenMove(id))
	changed, err := m.MoveFile(ctx, id, "Work")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Work", entryNamed(t, m, types.DefaultFileName).Folder)
	_, open = m.MoveTarget()
	assert.False(t, open, "moving closes the affordance")

	// Root is always a valid target
	changed, err = m.MoveFile(ctx, id, types.RootFolder)
	require.NoError(t, err)
	assert.True(t, changed)

	// Same folder and stale ids are no-ops
	changed, err = m.MoveFile(ctx, id, types.RootFolder)
	require.NoError(t, err)
	assert.False(t, changed)
	changed, err = m.MoveFile(ctx, "stale", "Work")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMoveAffordance(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	_, err = m.CreateFolder(ctx, "Home")
	require.NoError(t, err)
	id := entryNamed(t, m, types.DefaultFileName).ID

	assert.False(t, m.OpenMove("stale"))
	require.True(t, m.OpenMove(id))
	target, ok := m.MoveTarget()
	require.True(t, ok)
	assert.Equal(t, id, target.ID)

	assert.Equal(t, []types.Folder{{Name: "Root"}, {Name: "Work"}, {Name: "Home"}}, m.MoveTargets())

	m.CancelMove()
	_, ok = m.MoveTarget()
	assert.False(t, ok)
	assert.Equal(t, types.RootFolder, entryNamed(t, m, types.DefaultFileName).Folder)
}

func TestRenameFile(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.AddOrUpdate(ctx, []types.FileEntry{{Name: "a.png", Path: "/blobs/a.png"}})
	require.NoError(t, err)
	id := entryNamed(t, m, "a.png").ID

	tests := []struct {
		name        string
		id          string
		newName     string
		wantChanged bool
		wantErr     error
	}{
		{name: "blank", id: id, newName: " "},
		{name: "stale id", id: "stale", newName: "b.png"},
		{name: "same name", id: id, newName: "a.png"},
		{name: "taken", id: id, newName: types.DefaultFileName, wantErr: ErrDuplicateName},
		{name: "renamed", id: id, newName: " holiday.png ", wantChanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := m.RenameFile(ctx, tt.id, tt.newName)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}

	e, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, "holiday.png", e.Name)
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()
	m, kv := newTestManager(t, &fakeLister{})
	id := entryNamed(t, m, types.DefaultFileName).ID

	changed, err := m.DeleteFile(ctx, id)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, m.Files())

	stored, err := db.NewRepository(kv).LoadFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Deleting again matches nothing
	changed, err = m.DeleteFile(ctx, id)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSearchIsScopedToFolder(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	_, err = m.AddOrUpdate(ctx, []types.FileEntry{
		{Name: "Invoice-March.pdf", Path: "/blobs/1.pdf", Folder: "Work"},
		{Name: "invoice-april.pdf", Path: "/blobs/2.pdf", Folder: "Work"},
		{Name: "contract.pdf", Path: "/blobs/3.pdf", Folder: "Work"},
		{Name: "invoice-root.pdf", Path: "/blobs/4.pdf"},
	})
	require.NoError(t, err)

	view := m.SelectFolder("Work")
	assert.Len(t, view.Files, 3)
	for _, f := range m.Search("") {
		assert.Equal(t, "Work", f.Folder)
	}

	assert.Equal(t, []string{"Invoice-March.pdf", "invoice-april.pdf"}, names(m.Search("INVOICE")))
	assert.Empty(t, m.Search("zzz"))

	// The query carries over when switching folders
	assert.Equal(t, []string{"invoice-root.pdf"}, names(m.SelectFolder(types.RootFolder).Files))
}

func TestViewEmptyState(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)

	view := m.SelectFolder("Work")
	assert.True(t, view.Empty)
	assert.NotNil(t, view.Files)

	_, err = m.DeleteFile(ctx, entryNamed(t, m, types.DefaultFileName).ID)
	require.NoError(t, err)
	view = m.SelectFolder(types.RootFolder)
	assert.Empty(t, view.Files)
	assert.False(t, view.Empty, "Root never shows the empty state")

	assert.Equal(t, types.RootFolder, m.SelectFolder("").Folder)
}

func TestFailedWriteLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Repository: db.NewRepository(db.NewMemoryStore())}
	m := New(repo, &fakeLister{}, WithReconcileOnActivate(false))
	require.NoError(t, m.Activate(ctx))
	defer m.Close()

	repo.failSaves = true
	id := entryNamed(t, m, types.DefaultFileName).ID

	_, err := m.CreateFolder(ctx, "Work")
	assert.Error(t, err)
	assert.Len(t, m.Folders(), 1)

	_, err = m.DeleteFile(ctx, id)
	assert.Error(t, err)
	assert.Len(t, m.Files(), 1)

	_, err = m.AddOrUpdate(ctx, []types.FileEntry{{Name: "new.png", Path: "/blobs/n.png"}})
	assert.Error(t, err)
	assert.Len(t, m.Files(), 1)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})
	_, err := m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	_, err = m.AddOrUpdate(ctx, []types.FileEntry{{Name: "a.png", Path: "/blobs/a.png"}})
	require.NoError(t, err)
	m.AcceptExplorerFile("/blobs/b.png", "b.png")
	m.SelectFolder("Work")

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, []string{types.DefaultFileName}, names(m.Files()))
	assert.Equal(t, []types.Folder{{Name: types.RootFolder}}, m.Folders())
	assert.Equal(t, types.RootFolder, m.View().Folder)
	_, pending := m.Pending()
	assert.False(t, pending)
}

// TestEndToEnd walks the upload, folder and move flow from a freshly seeded store
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &fakeLister{})

	assert.Equal(t, []string{types.DefaultFileName}, names(m.Files()))
	assert.Equal(t, []types.Folder{{Name: types.RootFolder}}, m.Folders())

	pending := m.AcceptExplorerFile("/blobs/5f1c.pdf", "report.pdf")
	assert.Equal(t, "report.pdf", pending.SuggestedName)
	assert.Equal(t, types.SourceExplorer, pending.Source)

	report, err := m.ConfirmPending(ctx, pending.SuggestedName)
	require.NoError(t, err)
	assert.Len(t, m.Files(), 2)
	assert.Equal(t, types.RootFolder, report.Folder)
	assert.False(t, report.IsFromCamera)

	_, err = m.CreateFolder(ctx, "Work")
	require.NoError(t, err)
	assert.Len(t, m.Folders(), 2)

	_, err = m.MoveFile(ctx, report.ID, "Work")
	require.NoError(t, err)
	moved, ok := m.Get(report.ID)
	require.True(t, ok)
	assert.Equal(t, "Work", moved.Folder)

	assert.Equal(t, []string{types.DefaultFileName}, names(m.SelectFolder(types.RootFolder).Files))
}
