// Package blobs stores uploaded and captured content and hands out references to it.
package blobs

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// RefPrefix is the URL path under which blobs are served
const RefPrefix = "/blobs/"

const sniffLen = 3072

var (
	// ErrInvalidRef is returned for references that do not name a blob
	ErrInvalidRef = errors.New("invalid blob reference")
	// ErrInvalidDataURL is returned for malformed camera captures
	ErrInvalidDataURL = errors.New("invalid data URL")
)

var extByType = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/bmp":       ".bmp",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// Store keeps blobs on an afero filesystem
type Store struct {
	fs afero.Fs
}

// New wraps fs. Blobs are written at its root.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewMemory keeps blobs in memory
func NewMemory() *Store {
	return New(afero.NewMemMapFs())
}

// NewOS stores blobs under dir on the local disk
func NewOS(dir string) (*Store, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return New(afero.NewBasePathFs(osfs, dir)), nil
}

// Save writes r as a new blob and returns its reference.
// The original name only contributes its extension; without one the content is sniffed.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(path.Ext(originalName))
	if ext == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(r, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read blob: %w", err)
		}
		head = head[:n]
		ext = mimetype.Detect(head).Extension()
		r = io.MultiReader(bytes.NewReader(head), r)
	}

	name := uuid.NewString() + ext
	f, err := s.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(name)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob: %w", err)
	}
	return RefPrefix + name, nil
}

// SaveDataURL decodes a base64 data URL (as produced by a camera capture) and saves it
func (s *Store) SaveDataURL(dataURL string) (string, error) {
	contentType, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return s.Save(bytes.NewReader(payload), "capture"+ExtensionFor(contentType))
}

// Open opens the blob named by ref
func (s *Store) Open(ref string) (io.ReadCloser, error) {
	name, err := nameOf(ref)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(name)
}

// Remove deletes the blob named by ref
func (s *Store) Remove(ref string) error {
	name, err := nameOf(ref)
	if err != nil {
		return err
	}
	return s.fs.Remove(name)
}

// Handler serves blobs; mount it at RefPrefix
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(RefPrefix, http.FileServer(afero.NewHttpFs(s.fs)))
}

// IsRef reports whether ref points into this store
func IsRef(ref string) bool {
	_, err := nameOf(ref)
	return err == nil
}

// ContentType guesses a blob's content type from its extension
func ContentType(ref string) string {
	ext := strings.ToLower(path.Ext(ref))
	for t, e := range extByType {
		if e == ext {
			return t
		}
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ExtensionFor maps a content type to a file extension, with the dot
func ExtensionFor(contentType string) string {
	if ext, ok := extByType[contentType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ParseDataURL splits "data:<type>;base64,<payload>" into type and decoded bytes
func ParseDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return contentType, payload, nil
}

func nameOf(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrInvalidRef
	}
	return name, nil
}
