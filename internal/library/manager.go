// Package library owns the in-memory file and folder collections, the filtered
// view over them, and their reconciliation with the remote file listing.
package library

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/db"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/metrics"
	"github.com/Project-Sylos/Citrus/internal/remote"
	"github.com/Project-Sylos/Citrus/internal/types"
)

var (
	ErrBlankName     = errors.New("name is blank")
	ErrRootFolder    = errors.New("the Root folder cannot be removed")
	ErrUnknownFolder = errors.New("folder does not exist")
	ErrDuplicateName = errors.New("another entry already uses that name")
	ErrNoPending     = errors.New("no pending upload")
	ErrNoRemote      = errors.New("no remote lister configured")
	ErrNoScanner     = errors.New("no scan service configured")
)

// Repository is the persistent store the manager reads and writes whole collections through
type Repository interface {
	LoadFiles(ctx context.Context) ([]types.FileEntry, error)
	SaveFiles(ctx context.Context, files []types.FileEntry) error
	LoadFolders(ctx context.Context) ([]types.Folder, error)
	SaveFolders(ctx context.Context, folders []types.Folder) error
	Clear(ctx context.Context) error
}

// Lister reports the files held by the remote service
type Lister interface {
	ListFiles(ctx context.Context) (*types.Snapshot, error)
	FileURL(kind string, f types.RemoteFile) string
}

// Option configures a Manager
type Option func(*Manager)

// WithReconcileTimeout bounds each remote fetch. Zero disables the bound.
func WithReconcileTimeout(d time.Duration) Option {
	return func(m *Manager) { m.reconcileTimeout = d }
}

// WithReconcileOnActivate controls the background reconciliation started by Activate
func WithReconcileOnActivate(enabled bool) Option {
	return func(m *Manager) { m.reconcileOnActivate = enabled }
}

// WithScanner enables ScanPending
func WithScanner(s Scanner, content ContentSource) Option {
	return func(m *Manager) {
		m.scanner = s
		m.content = content
	}
}

// WithClock overrides time.Now for entry timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is the library state machine. Every exported method runs to completion,
// including its store write, before the next one starts.
type Manager struct {
	mu sync.Mutex

	repo   Repository
	lister Lister
	log    *zap.Logger
	now    func() time.Time

	scanner Scanner
	content ContentSource

	reconcileTimeout    time.Duration
	reconcileOnActivate bool

	files   []types.FileEntry
	folders []types.Folder
	current string
	query   string
	view    []types.FileEntry
	moving  string
	pending *types.PendingUpload

	activated bool

	// lifetime is cancelled by Close and bounds every reconciliation
	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a manager. Call Activate before use.
func New(repo Repository, lister Lister, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		repo:                repo,
		lister:              lister,
		log:                 logging.Named("library"),
		now:                 time.Now,
		reconcileTimeout:    10 * time.Second,
		reconcileOnActivate: true,
		current:             types.RootFolder,
		lifetime:            ctx,
		cancel:              cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate loads both collections, seeding and writing back the defaults when a
// collection is missing or unreadable, then starts one background reconciliation.
// Calling it again is a no-op.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	if m.activated {
		m.mu.Unlock()
		return nil
	}
	if err := m.load(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.activated = true
	m.mu.Unlock()

	if m.reconcileOnActivate && m.lister != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			// failures are logged inside
			_, _ = m.ReconcileWithRemote(m.lifetime)
		}()
	}
	return nil
}

// load must be called with mu held
func (m *Manager) load(ctx context.Context) error {
	files, filesDirty, err := m.loadFiles(ctx)
	if err != nil {
		return err
	}
	folders, foldersDirty, err := m.loadFolders(ctx)
	if err != nil {
		return err
	}

	// Entries must point at an existing folder
	known := lo.SliceToMap(folders, func(f types.Folder) (string, struct{}) { return f.Name, struct{}{} })
	for i := range files {
		if _, ok := known[files[i].Folder]; !ok {
			m.log.Warn("entry references a missing folder, moving to Root",
				zap.String("name", files[i].Name),
				zap.String("folder", files[i].Folder),
			)
			files[i].Folder = types.RootFolder
			filesDirty = true
		}
	}

	if foldersDirty {
		if err := m.repo.SaveFolders(ctx, folders); err != nil {
			return fmt.Errorf("failed to write back folders: %w", err)
		}
	}
	if filesDirty {
		if err := m.repo.SaveFiles(ctx, files); err != nil {
			return fmt.Errorf("failed to write back library files: %w", err)
		}
	}

	m.files = files
	m.folders = folders
	m.current = types.RootFolder
	m.query = ""
	m.moving = ""
	m.refreshView()

	m.log.Info("library loaded",
		zap.Int("files", len(files)),
		zap.Int("folders", len(folders)),
	)
	return nil
}

func (m *Manager) loadFiles(ctx context.Context) ([]types.FileEntry, bool, error) {
	files, err := m.repo.LoadFiles(ctx)
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrCorrupt):
		if errors.Is(err, db.ErrCorrupt) {
			m.log.Warn("stored library files unreadable, reseeding", zap.Error(err))
		}
		return []types.FileEntry{m.seedEntry()}, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to load library files: %w", err)
	}

	dirty := false
	for i := range files {
		if normalize(&files[i], m.now) {
			dirty = true
		}
	}
	return files, dirty, nil
}

func (m *Manager) loadFolders(ctx context.Context) ([]types.Folder, bool, error) {
	folders, err := m.repo.LoadFolders(ctx)
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrCorrupt):
		if errors.Is(err, db.ErrCorrupt) {
			m.log.Warn("stored folders unreadable, reseeding", zap.Error(err))
		}
		return []types.Folder{{Name: types.RootFolder}}, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to load folders: %w", err)
	}

	cleaned := lo.UniqBy(lo.Filter(folders, func(f types.Folder, _ int) bool {
		return strings.TrimSpace(f.Name) != ""
	}), func(f types.Folder) string { return f.Name })
	dirty := len(cleaned) != len(folders)

	if !lo.ContainsBy(cleaned, func(f types.Folder) bool { return f.Name == types.RootFolder }) {
		cleaned = append([]types.Folder{{Name: types.RootFolder}}, cleaned...)
		dirty = true
	}
	return cleaned, dirty, nil
}

func (m *Manager) seedEntry() types.FileEntry {
	e := types.FileEntry{
		Name:   types.DefaultFileName,
		Path:   types.DefaultFilePath,
		Folder: types.RootFolder,
		Origin: types.OriginSeed,
	}
	normalize(&e, m.now)
	return e
}

// Close cancels an in-flight reconciliation and waits for it to return
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// AddOrUpdate merges candidates by name: unknown names are appended, a known name
// with a different path gets the new path and scanned flag, an identical path is
// left alone. The collection is written once when anything changed.
func (m *Manager) AddOrUpdate(ctx context.Context, candidates []types.FileEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed, err := m.addOrUpdate(ctx, candidates)
	metrics.RecordMutation("add_or_update", changed)
	return changed, err
}

// addOrUpdate must be called with mu held
func (m *Manager) addOrUpdate(ctx context.Context, candidates []types.FileEntry) (bool, error) {
	next := slices.Clone(m.files)
	changed := false

	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}

		idx := slices.IndexFunc(next, func(f types.FileEntry) bool { return f.Name == c.Name })
		switch {
		case idx < 0:
			c.ID = ""
			if !m.hasFolder(c.Folder) {
				c.Folder = types.RootFolder
			}
			normalize(&c, m.now)
			next = append(next, c)
			changed = true
		case next[idx].Path != c.Path:
			next[idx].Path = c.Path
			next[idx].IsScanned = c.IsScanned
			syncOrigin(&next[idx])
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	if err := m.saveFiles(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// ReconcileWithRemote fetches the remote listing and merges it into the library.
// A failed fetch is logged and leaves the library untouched. The fetch runs
// without holding the state lock, so local edits made meanwhile are kept.
func (m *Manager) ReconcileWithRemote(ctx context.Context) (bool, error) {
	if m.lister == nil {
		return false, ErrNoRemote
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.lifetime, cancel)
	defer stop()

	if m.reconcileTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, m.reconcileTimeout)
		defer cancelTimeout()
	}

	start := time.Now()
	snap, err := m.lister.ListFiles(ctx)
	if err != nil {
		metrics.RecordReconcile("failed", time.Since(start))
		m.log.Warn("remote reconciliation failed", zap.Error(err))
		return false, fmt.Errorf("failed to reconcile with remote: %w", err)
	}

	candidates := m.remoteEntries(snap)

	m.mu.Lock()
	changed, err := m.addOrUpdate(ctx, candidates)
	m.mu.Unlock()

	if err != nil {
		metrics.RecordReconcile("failed", time.Since(start))
		m.log.Warn("failed to persist reconciled files", zap.Error(err))
		return false, err
	}

	outcome := "unchanged"
	if changed {
		outcome = "changed"
	}
	metrics.RecordReconcile(outcome, time.Since(start))
	metrics.RecordMutation("reconcile", changed)
	m.log.Info("remote reconciliation finished",
		zap.Int("listed", len(candidates)),
		zap.Bool("changed", changed),
	)
	return changed, nil
}

// Refresh is the manual re-run of the reconciliation
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	return m.ReconcileWithRemote(ctx)
}

type listed struct {
	kind string
	file types.RemoteFile
}

// remoteEntries merges storage then processed listings, first filename wins
func (m *Manager) remoteEntries(snap *types.Snapshot) []types.FileEntry {
	all := make([]listed, 0, len(snap.StorageFiles)+len(snap.ProcessedFiles))
	for _, f := range snap.StorageFiles {
		all = append(all, listed{kind: remote.KindStorage, file: f})
	}
	for _, f := range snap.ProcessedFiles {
		all = append(all, listed{kind: remote.KindProcessed, file: f})
	}

	all = lo.Filter(all, func(l listed, _ int) bool { return strings.TrimSpace(l.file.Filename) != "" })
	all = lo.UniqBy(all, func(l listed) string { return l.file.Filename })

	return lo.Map(all, func(l listed, _ int) types.FileEntry {
		return types.FileEntry{
			Name:          l.file.Filename,
			Path:          m.lister.FileURL(l.kind, l.file),
			Folder:        types.RootFolder,
			Origin:        types.OriginRemoteScan,
			IsFromStorage: true,
			IsScanned:     true,
		}
	})
}

// CreateFolder appends a folder. Blank and existing names are a no-op.
func (m *Manager) CreateFolder(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" || m.hasFolder(name) {
		metrics.RecordMutation("create_folder", false)
		return false, nil
	}

	next := append(slices.Clone(m.folders), types.Folder{Name: name})
	if err := m.saveFolders(ctx, next); err != nil {
		return false, err
	}
	metrics.RecordMutation("create_folder", true)
	return true, nil
}

// DeleteFolder removes a folder and moves its entries to Root. Files are never deleted.
func (m *Manager) DeleteFolder(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == types.RootFolder {
		return false, ErrRootFolder
	}
	if !m.hasFolder(name) {
		metrics.RecordMutation("delete_folder", false)
		return false, nil
	}

	original := m.files
	files := slices.Clone(m.files)
	moved := 0
	for i := range files {
		if files[i].Folder == name {
			files[i].Folder = types.RootFolder
			moved++
		}
	}
	if moved > 0 {
		if err := m.saveFiles(ctx, files); err != nil {
			return false, err
		}
	}

	folders := slices.DeleteFunc(slices.Clone(m.folders), func(f types.Folder) bool { return f.Name == name })
	if err := m.saveFolders(ctx, folders); err != nil {
		if moved > 0 {
			// Put the entries back in the folder that still exists
			if rbErr := m.saveFiles(ctx, original); rbErr != nil {
				m.log.Error("failed to restore files after folder write failure",
					zap.String("folder", name), zap.Error(rbErr))
			}
		}
		return false, err
	}
	if m.current == name {
		m.current = types.RootFolder
		m.refreshView()
	}

	m.log.Info("folder deleted", zap.String("folder", name), zap.Int("moved_to_root", moved))
	metrics.RecordMutation("delete_folder", true)
	return true, nil
}

// MoveFile reassigns an entry to target, which must be Root or an existing folder.
// A stale id is a no-op. The move affordance is closed either way.
func (m *Manager) MoveFile(ctx context.Context, id, target string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.moving = ""
	target = strings.TrimSpace(target)
	if target != types.RootFolder && !m.hasFolder(target) {
		return false, fmt.Errorf("%w: %q", ErrUnknownFolder, target)
	}

	idx := m.indexOf(id)
	if idx < 0 || m.files[idx].Folder == target {
		metrics.RecordMutation("move", false)
		return false, nil
	}

	next := slices.Clone(m.files)
	next[idx].Folder = target
	if err := m.saveFiles(ctx, next); err != nil {
		return false, err
	}
	metrics.RecordMutation("move", true)
	return true, nil
}

// OpenMove opens the move affordance for an entry
func (m *Manager) OpenMove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(id) < 0 {
		return false
	}
	m.moving = id
	return true
}

// CancelMove closes the move affordance without moving anything
func (m *Manager) CancelMove() {
	m.mu.Lock()
	m.moving = ""
	m.mu.Unlock()
}

// MoveTarget returns the entry whose move affordance is open
func (m *Manager) MoveTarget() (types.FileEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(m.moving)
	if idx < 0 {
		return types.FileEntry{}, false
	}
	return m.files[idx], true
}

// MoveTargets lists the folders an entry can be moved to, Root first
func (m *Manager) MoveTargets() []types.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []types.Folder{{Name: types.RootFolder}}
	for _, f := range m.folders {
		if f.Name != types.RootFolder {
			out = append(out, f)
		}
	}
	return out
}

// RenameFile renames an entry. Blank names and stale ids are a no-op.
func (m *Manager) RenameFile(ctx context.Context, id, newName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newName = strings.TrimSpace(newName)
	idx := m.indexOf(id)
	if newName == "" || idx < 0 || m.files[idx].Name == newName {
		metrics.RecordMutation("rename", false)
		return false, nil
	}
	if lo.ContainsBy(m.files, func(f types.FileEntry) bool { return f.Name == newName }) {
		return false, fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}

	next := slices.Clone(m.files)
	next[idx].Name = newName
	if err := m.saveFiles(ctx, next); err != nil {
		return false, err
	}
	metrics.RecordMutation("rename", true)
	return true, nil
}

// DeleteFile removes an entry. A stale id is a no-op.
func (m *Manager) DeleteFile(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		metrics.RecordMutation("delete", false)
		return false, nil
	}

	next := slices.Delete(slices.Clone(m.files), idx, idx+1)
	if err := m.saveFiles(ctx, next); err != nil {
		return false, err
	}
	if m.moving == id {
		m.moving = ""
	}
	metrics.RecordMutation("delete", true)
	return true, nil
}

// Search sets the query and returns the matching entries of the current folder
func (m *Manager) Search(query string) []types.FileEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.query = query
	m.refreshView()
	return slices.Clone(m.view)
}

// SelectFolder switches the current folder. Blank selects Root.
func (m *Manager) SelectFolder(name string) types.View {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = types.RootFolder
	}
	m.current = name
	m.refreshView()
	return m.snapshotView()
}

// View returns the current filtered view
func (m *Manager) View() types.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotView()
}

// Files returns every entry
func (m *Manager) Files() []types.FileEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.files)
}

// Folders returns every folder, Root included
func (m *Manager) Folders() []types.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.folders)
}

// Get looks an entry up by id
func (m *Manager) Get(id string) (types.FileEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return types.FileEntry{}, false
	}
	return m.files[idx], true
}

// Reset clears the persistent store and reseeds the library
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear library: %w", err)
	}
	m.pending = nil
	if err := m.load(ctx); err != nil {
		return err
	}
	m.log.Info("library reset")
	return nil
}

func (m *Manager) snapshotView() types.View {
	files := slices.Clone(m.view)
	if files == nil {
		files = []types.FileEntry{}
	}
	return types.View{
		Folder: m.current,
		Query:  m.query,
		Files:  files,
		Empty:  m.current != types.RootFolder && len(files) == 0,
	}
}

func (m *Manager) refreshView() {
	q := strings.ToLower(m.query)
	m.view = lo.Filter(m.files, func(f types.FileEntry, _ int) bool {
		return f.Folder == m.current && strings.Contains(strings.ToLower(f.Name), q)
	})
	metrics.SetLibrarySize(len(m.files), len(m.folders))
}

func (m *Manager) saveFiles(ctx context.Context, next []types.FileEntry) error {
	if err := m.repo.SaveFiles(ctx, next); err != nil {
		return fmt.Errorf("failed to persist library files: %w", err)
	}
	m.files = next
	m.refreshView()
	return nil
}

func (m *Manager) saveFolders(ctx context.Context, next []types.Folder) error {
	if err := m.repo.SaveFolders(ctx, next); err != nil {
		return fmt.Errorf("failed to persist folders: %w", err)
	}
	m.folders = next
	m.refreshView()
	return nil
}

func (m *Manager) hasFolder(name string) bool {
	return lo.ContainsBy(m.folders, func(f types.Folder) bool { return f.Name == name })
}

func (m *Manager) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(m.files, func(f types.FileEntry) bool { return f.ID == id })
}

// normalize fills the fields older stores lack and keeps the origin flags in step
// with Origin. It reports whether anything changed.
func normalize(e *types.FileEntry, now func() time.Time) bool {
	before := *e

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Folder == "" {
		e.Folder = types.RootFolder
	}
	if e.Origin == "" {
		e.Origin = inferOrigin(*e)
	}
	switch e.Origin {
	case types.OriginCamera:
		e.IsFromCamera = true
	case types.OriginRemoteStorage:
		e.IsFromStorage = true
	case types.OriginRemoteScan:
		e.IsFromStorage = true
		e.IsScanned = true
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now().UTC()
	}

	return *e != before
}

// syncOrigin re-derives Origin after an update changed IsScanned, so the tag and
// the flags agree and a reload does not flip the flag back
func syncOrigin(e *types.FileEntry) {
	switch {
	case e.Origin == types.OriginCamera:
	case e.IsScanned:
		e.Origin = types.OriginRemoteScan
		e.IsFromStorage = true
	case e.Origin == types.OriginRemoteScan:
		e.Origin = types.OriginRemoteStorage
	}
}

func inferOrigin(e types.FileEntry) types.Origin {
	switch {
	case e.IsFromCamera:
		return types.OriginCamera
	case e.IsFromStorage && e.IsScanned:
		return types.OriginRemoteScan
	case e.IsFromStorage:
		return types.OriginRemoteStorage
	case e.Name == types.DefaultFileName:
		return types.OriginSeed
	default:
		return types.OriginExplorer
	}
}
