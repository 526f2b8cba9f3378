package library

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/blobs"
	"github.com/Project-Sylos/Citrus/internal/metrics"
	"github.com/Project-Sylos/Citrus/internal/types"
)

// Scanner turns an image into a processed document on the remote service
type Scanner interface {
	Scan(ctx context.Context, filename, contentType string, image io.Reader, outputName string) (*types.ScanResult, error)
	ResultURL(r *types.ScanResult) string
}

// ContentSource opens the content behind a pending upload's reference
type ContentSource interface {
	Open(ref string) (io.ReadCloser, error)
}

// AcceptExplorerFile holds a picked file for naming; the suggested name is its original name
func (m *Manager) AcceptExplorerFile(ref, originalName string) types.PendingUpload {
	return m.setPending(types.PendingUpload{
		Source:        types.SourceExplorer,
		ContentRef:    ref,
		SuggestedName: originalName,
		OriginalName:  originalName,
	})
}

// AcceptCameraCapture holds a capture for naming with no suggested name
func (m *Manager) AcceptCameraCapture(ref string) types.PendingUpload {
	return m.setPending(types.PendingUpload{
		Source:     types.SourceCamera,
		ContentRef: ref,
	})
}

func (m *Manager) setPending(p types.PendingUpload) types.PendingUpload {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		m.log.Debug("replacing pending upload", zap.String("previous", m.pending.ContentRef))
	}
	m.pending = &p
	return p
}

// Pending returns the upload waiting for a name
func (m *Manager) Pending() (types.PendingUpload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return types.PendingUpload{}, false
	}
	return *m.pending, true
}

// SetPendingName edits the name shown in the naming prompt
func (m *Manager) SetPendingName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return ErrNoPending
	}
	m.pending.SuggestedName = name
	return nil
}

// ConfirmPending saves the pending upload under name, or the suggested name when
// name is blank. A blank result keeps the prompt open and returns ErrBlankName.
func (m *Manager) ConfirmPending(ctx context.Context, name string) (*types.FileEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return nil, ErrNoPending
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(m.pending.SuggestedName)
	}
	if name == "" {
		return nil, ErrBlankName
	}

	origin := types.OriginExplorer
	if m.pending.Source == types.SourceCamera {
		origin = types.OriginCamera
	}
	candidate := types.FileEntry{
		Name:         name,
		Path:         m.pending.ContentRef,
		Folder:       types.RootFolder,
		Origin:       origin,
		IsFromCamera: origin == types.OriginCamera,
	}

	changed, err := m.addOrUpdate(ctx, []types.FileEntry{candidate})
	metrics.RecordMutation("confirm_upload", changed)
	if err != nil {
		return nil, err
	}
	m.pending = nil

	entry := m.byName(name)
	m.log.Info("upload saved",
		zap.String("name", entry.Name),
		zap.String("origin", string(entry.Origin)),
		zap.Bool("changed", changed),
	)
	return &entry, nil
}

// CancelPending discards the pending upload without touching the library and
// returns what was discarded, so the caller can release its content
func (m *Manager) CancelPending() (types.PendingUpload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return types.PendingUpload{}, false
	}
	p := *m.pending
	m.pending = nil
	return p, true
}

// ScanPending sends the pending content to the scan service and saves the
// returned document as a scanned entry. On failure the pending upload stays.
func (m *Manager) ScanPending(ctx context.Context, outputName string) (*types.FileEntry, error) {
	if m.scanner == nil || m.content == nil {
		return nil, ErrNoScanner
	}

	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return nil, ErrNoPending
	}
	p := *m.pending
	m.mu.Unlock()

	outputName = strings.TrimSpace(outputName)
	if outputName == "" {
		outputName = strings.TrimSpace(p.SuggestedName)
	}
	if outputName == "" {
		return nil, ErrBlankName
	}

	content, err := m.content.Open(p.ContentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to open pending content: %w", err)
	}
	defer content.Close()

	filename := p.OriginalName
	if filename == "" {
		filename = path.Base(p.ContentRef)
	}

	res, err := m.scanner.Scan(ctx, filename, blobs.ContentType(p.ContentRef), content, outputName)
	metrics.RecordScan(err == nil)
	if err != nil {
		m.log.Warn("scan failed", zap.String("output", outputName), zap.Error(err))
		return nil, err
	}

	candidate := types.FileEntry{
		Name:          res.Filename,
		Path:          m.scanner.ResultURL(res),
		Folder:        types.RootFolder,
		Origin:        types.OriginRemoteScan,
		IsFromStorage: true,
		IsScanned:     true,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	changed, err := m.addOrUpdate(ctx, []types.FileEntry{candidate})
	metrics.RecordMutation("scan_upload", changed)
	if err != nil {
		return nil, err
	}
	if m.pending != nil && m.pending.ContentRef == p.ContentRef {
		m.pending = nil
	}

	entry := m.byName(res.Filename)
	return &entry, nil
}

// byName must be called with mu held
func (m *Manager) byName(name string) types.FileEntry {
	idx := slices.IndexFunc(m.files, func(f types.FileEntry) bool { return f.Name == name })
	if idx < 0 {
		return types.FileEntry{}
	}
	return m.files[idx]
}
