// Package scanner is the scan/storage service: it turns uploaded photos into
// processed document pages and lists and serves the files it holds.
package scanner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/maruel/natural"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	apimiddleware "github.com/Project-Sylos/Citrus/internal/api/middleware"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/metrics"
	"github.com/Project-Sylos/Citrus/internal/types"
)

// Directory layout inside the storage root
const (
	uploadsDir   = "/uploads"
	processedDir = "/processed"
)

const maxUploadBytes = 32 << 20

// Service holds the storage directories and the scan pipeline
type Service struct {
	fs      afero.Fs
	root    string // reported in listings only
	page    Page
	origins []string
	log     *zap.Logger
}

// New creates a service over fs, whose root is the storage directory.
// root is the path reported to clients.
func New(fs afero.Fs, root string, page Page, origins []string) (*Service, error) {
	for _, dir := range []string{uploadsDir, processedDir} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s dir: %w", dir, err)
		}
	}
	if page.Width <= 0 || page.Height <= 0 {
		return nil, fmt.Errorf("invalid page size %dx%d", page.Width, page.Height)
	}

	return &Service{
		fs:      fs,
		root:    root,
		page:    page,
		origins: origins,
		log:     logging.Named("scanner"),
	}, nil
}

// NewOS creates a service storing files under cfg.StorageDir on the local disk
func NewOS(cfg types.ScannerConfig, origins []string) (*Service, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return New(afero.NewBasePathFs(osfs, cfg.StorageDir), cfg.StorageDir,
		Page{Width: cfg.PageWidth, Height: cfg.PageHeight}, origins)
}

// Router builds the service's HTTP routes
func (s *Service) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.CORS(s.origins))

	httpFs := afero.NewHttpFs(s.fs)

	r.Get("/", s.welcome)
	r.Get("/health-check", s.healthCheck)
	r.Get("/health", s.healthCheck)
	r.Get("/debug-files", s.debugFiles)
	r.Get("/list-files", s.listFiles)
	r.Get("/file-info/{filename}", s.fileInfo)
	r.Get("/get-file/{fileType}/{filename}", s.getFile)
	r.Post("/upload-and-scan", s.uploadAndScan)
	r.Post("/upload-and-scan/", s.uploadAndScan)
	r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(httpFs.Dir(processedDir))))
	r.Handle("/storage/*", http.StripPrefix("/storage/", http.FileServer(httpFs.Dir("/"))))
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (s *Service) welcome(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Document Scanner API"})
}

// uploadAndScan accepts multipart "image" and "outputName" and writes {base}.JPG into processed
func (s *Service) uploadAndScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		sendDetail(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	file, hdr, err := r.FormFile("image")
	if err != nil {
		sendDetail(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	outputName := r.FormValue("outputName")
	base := strings.TrimSuffix(path.Base(outputName), path.Ext(outputName))
	if strings.TrimSpace(outputName) == "" || base == "" || base == "." || base == "/" {
		sendDetail(w, http.StatusBadRequest, "outputName is required")
		return
	}

	log := logging.WithContext(r.Context()).With(
		zap.String("filename", hdr.Filename),
		zap.String("output", outputName),
	)
	log.Info("received upload")

	if !strings.HasPrefix(hdr.Header.Get("Content-Type"), "image/") {
		log.Warn("invalid file type", zap.String("content_type", hdr.Header.Get("Content-Type")))
		sendDetail(w, http.StatusBadRequest, "File must be an image")
		return
	}

	// Keep the upload around while it is processed
	tempName := path.Join(uploadsDir, uuid.NewString()+strings.ToLower(path.Ext(hdr.Filename)))
	if err := afero.WriteReader(s.fs, tempName, file); err != nil {
		log.Error("failed to save upload", zap.Error(err))
		sendDetail(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer func() {
		if err := s.fs.Remove(tempName); err != nil {
			log.Warn("failed to remove temporary file", zap.String("path", tempName), zap.Error(err))
		}
	}()

	filename, err := s.process(tempName, base)
	metrics.RecordScan(err == nil)
	if err != nil {
		log.Error("failed to process image", zap.Error(err))
		sendDetail(w, http.StatusInternalServerError, fmt.Sprintf("Error processing image: %v", err))
		return
	}

	// A same-named file in the storage root would shadow the processed one
	if dup := path.Join("/", filename); fileExists(s.fs, dup) {
		if err := s.fs.Remove(dup); err != nil {
			log.Warn("failed to remove duplicate from storage root", zap.Error(err))
		}
	}

	log.Info("scan complete", zap.String("result", filename))
	sendJSON(w, http.StatusOK, types.ScanResult{
		Success:    true,
		Filename:   filename,
		PDFURL:     "/files/" + filename,
		StorageURL: "/storage/" + filename,
		DirectURL:  "/get-file/processed/" + filename,
		FilePath:   filepath.Join(s.root, processedDir, filename),
	})
}

// process scans the upload at src into processed/{base}.JPG and returns the file name
func (s *Service) process(src, base string) (string, error) {
	in, err := s.fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer in.Close()

	page, err := ScanImage(in, s.page)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, page); err != nil {
		return "", fmt.Errorf("failed to encode page: %w", err)
	}

	filename := base + ".JPG"
	if err := afero.WriteFile(s.fs, path.Join(processedDir, filename), buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write page: %w", err)
	}
	return filename, nil
}

// debugFiles reports the files held in every directory
func (s *Service) debugFiles(w http.ResponseWriter, r *http.Request) {
	processed, err := s.describe(processedDir, "/files/")
	if err != nil {
		sendDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	storage, err := s.describe("", "/storage/")
	if err != nil {
		sendDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	uploads, err := s.names(uploadsDir)
	if err != nil {
		sendDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, types.Snapshot{
		ProcessedDir:   filepath.Join(s.root, processedDir),
		UploadsDir:     filepath.Join(s.root, uploadsDir),
		StorageDir:     s.root,
		ProcessedFiles: processed,
		StorageFiles:   storage,
		UploadsFiles:   uploads,
	})
}

func (s *Service) listFiles(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.names(uploadsDir)
	if err != nil {
		sendDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	processed, err := s.names(processedDir)
	if err != nil {
		sendDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"uploads_directory":   filepath.Join(s.root, uploadsDir),
		"processed_directory": filepath.Join(s.root, processedDir),
		"uploads_files":       uploads,
		"processed_files":     processed,
	})
}

// describe lists the regular files directly under dir, in natural order
func (s *Service) describe(dir, urlPrefix string) ([]types.RemoteFile, error) {
	infos, err := afero.ReadDir(s.fs, dirOrRoot(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.RemoteFile{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dirOrRoot(dir), err)
	}

	files := make([]types.RemoteFile, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		files = append(files, types.RemoteFile{
			Filename: fi.Name(),
			Path:     filepath.Join(s.root, dir, fi.Name()),
			Size:     fi.Size(),
			Exists:   true,
			URL:      urlPrefix + fi.Name(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return natural.Less(files[i].Filename, files[j].Filename) })
	return files, nil
}

// names lists every entry name under dir, in natural order
func (s *Service) names(dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, dirOrRoot(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dirOrRoot(dir), err)
	}

	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		out = append(out, fi.Name())
	}
	sort.Sort(natural.StringSlice(out))
	return out, nil
}

// getFile serves one file from processed, uploads or the storage root
func (s *Service) getFile(w http.ResponseWriter, r *http.Request) {
	var dir string
	switch chi.URLParam(r, "fileType") {
	case "processed":
		dir = processedDir
	case "uploads":
		dir = uploadsDir
	case "root":
		dir = ""
	default:
		sendDetail(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	filename := chi.URLParam(r, "filename")
	if !validName(filename) {
		sendDetail(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	name := path.Join(dirOrRoot(dir), filename)
	f, err := s.fs.Open(name)
	if err != nil {
		logging.WithContext(r.Context()).Warn("file not found", zap.String("path", name))
		sendDetail(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		sendDetail(w, http.StatusNotFound, "File not found")
		return
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// fileInfo reports where a file name can be found
func (s *Service) fileInfo(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !validName(filename) {
		sendDetail(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	locations := []struct {
		name, dir, url string
	}{
		{"processed", processedDir, "/files/"},
		{"storage_root", "", "/storage/"},
		{"uploads", uploadsDir, "/get-file/uploads/"},
	}

	results := make([]map[string]any, 0, len(locations))
	access := []string{}
	for _, loc := range locations {
		entry := map[string]any{
			"location": loc.name,
			"path":     filepath.Join(s.root, loc.dir, filename),
			"exists":   false,
			"size":     int64(0),
			"url":      nil,
		}
		if fi, err := s.fs.Stat(path.Join(dirOrRoot(loc.dir), filename)); err == nil && !fi.IsDir() {
			entry["exists"] = true
			entry["size"] = fi.Size()
			entry["url"] = loc.url + filename
			access = append(access, loc.url+filename)
		}
		results = append(results, entry)
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"filename":    filename,
		"locations":   results,
		"access_urls": access,
	})
}

// healthCheck reports directory presence and writability
func (s *Service) healthCheck(w http.ResponseWriter, r *http.Request) {
	exists := func(dir string) bool {
		ok, _ := afero.DirExists(s.fs, dirOrRoot(dir))
		return ok
	}
	writable := func(dir string) bool {
		marker := path.Join(dir, "test_permission.txt")
		if err := afero.WriteFile(s.fs, marker, []byte("test"), 0644); err != nil {
			s.log.Warn("directory not writable", zap.String("dir", dir), zap.Error(err))
			return false
		}
		return s.fs.Remove(marker) == nil
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"directories": map[string]string{
			"storage_dir":   s.root,
			"uploads_dir":   filepath.Join(s.root, uploadsDir),
			"processed_dir": filepath.Join(s.root, processedDir),
		},
		"directory_exists": map[string]bool{
			"storage":   exists(""),
			"uploads":   exists(uploadsDir),
			"processed": exists(processedDir),
		},
		"write_permissions": map[string]bool{
			"uploads":   writable(uploadsDir),
			"processed": writable(processedDir),
		},
	})
}

func fileExists(fs afero.Fs, name string) bool {
	fi, err := fs.Stat(name)
	return err == nil && !fi.IsDir()
}

func dirOrRoot(dir string) string {
	if dir == "" {
		return "/"
	}
	return dir
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendDetail writes an error body in the {"detail": ...} shape clients expect from this service
func sendDetail(w http.ResponseWriter, statusCode int, detail string) {
	sendJSON(w, statusCode, map[string]string{"detail": detail})
}
