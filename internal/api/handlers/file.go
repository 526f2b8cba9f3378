package handlers

import (
	"net/http"
	"strings"

	"github.com/Project-Sylos/Citrus/internal/api/models"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/sdk"
	"github.com/go-chi/chi/v5"
)

// FileHandler handles file-related endpoints
type FileHandler struct {
	BaseHandler
	lib *sdk.Library
}

// NewFileHandler creates a new file handler
func NewFileHandler(lib *sdk.Library) *FileHandler {
	return &FileHandler{
		lib: lib,
	}
}

// ListFiles returns the current view. The folder and q query parameters
// change the selected folder and the search query before the view is built.
func (h *FileHandler) ListFiles(w http.ResponseWriter, req *http.Request) {
	m := h.lib.Manager()
	query := req.URL.Query()

	if query.Has("folder") {
		m.SelectFolder(query.Get("folder"))
	}
	if query.Has("q") {
		m.Search(query.Get("q"))
	}

	h.sendSuccess(w, "Files retrieved successfully", m.View())
}

// AddOrUpdate merges a batch of candidate entries into the library
func (h *FileHandler) AddOrUpdate(w http.ResponseWriter, req *http.Request) {
	var request models.AddFilesRequest
	if err := h.decode(req.Body, &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	changed, err := h.lib.Manager().AddOrUpdate(req.Context(), request.Files)
	if err != nil {
		h.sendFailure(w, req, "Failed to add files", err)
		return
	}

	h.sendSuccess(w, "Files merged successfully", models.ChangedResponse{Changed: changed})
}

// GetFile handles the get file endpoint
func (h *FileHandler) GetFile(w http.ResponseWriter, req *http.Request) {
	entry, ok := h.entry(w, req)
	if !ok {
		return
	}
	h.sendSuccess(w, "File retrieved successfully", entry)
}

// RenameFile handles the rename endpoint
func (h *FileHandler) RenameFile(w http.ResponseWriter, req *http.Request) {
	entry, ok := h.entry(w, req)
	if !ok {
		return
	}

	var request models.RenameFileRequest
	if err := h.decode(req.Body, &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		h.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := h.lib.Manager().RenameFile(req.Context(), entry.ID, request.Name); err != nil {
		h.sendFailure(w, req, "Failed to rename file", err)
		return
	}

	renamed, _ := h.lib.Manager().Get(entry.ID)
	h.sendSuccess(w, "File renamed successfully", renamed)
}

// MoveFile moves an entry to another folder
func (h *FileHandler) MoveFile(w http.ResponseWriter, req *http.Request) {
	entry, ok := h.entry(w, req)
	if !ok {
		return
	}

	var request models.MoveFileRequest
	if err := h.decode(req.Body, &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.Folder == "" {
		h.sendError(w, http.StatusBadRequest, "folder is required")
		return
	}

	m := h.lib.Manager()
	if _, err := m.MoveFile(req.Context(), entry.ID, request.Folder); err != nil {
		h.sendFailure(w, req, "Failed to move file", err)
		return
	}

	moved, _ := m.Get(entry.ID)
	h.sendSuccess(w, "File moved successfully", moved)
}

// DeleteFile handles the delete file endpoint
func (h *FileHandler) DeleteFile(w http.ResponseWriter, req *http.Request) {
	entry, ok := h.entry(w, req)
	if !ok {
		return
	}

	if _, err := h.lib.DeleteFile(req.Context(), entry.ID); err != nil {
		h.sendFailure(w, req, "Failed to delete file", err)
		return
	}

	h.sendSuccess(w, "File deleted successfully", nil)
}

// Route picks the viewer an entry opens in
func (h *FileHandler) Route(w http.ResponseWriter, req *http.Request) {
	route, err := h.lib.Route(chi.URLParam(req, "id"))
	if err != nil {
		h.sendFailure(w, req, "Failed to route file", err)
		return
	}
	h.sendSuccess(w, "Route resolved successfully", route)
}

// Download returns the client-side download descriptor for an entry
func (h *FileHandler) Download(w http.ResponseWriter, req *http.Request) {
	link, err := h.lib.DownloadLink(chi.URLParam(req, "id"))
	if err != nil {
		h.sendFailure(w, req, "Failed to build download link", err)
		return
	}
	h.sendSuccess(w, "Download link built successfully", link)
}

// entry resolves the {id} URL parameter, answering 400 or 404 when it cannot
func (h *FileHandler) entry(w http.ResponseWriter, req *http.Request) (types.FileEntry, bool) {
	id := chi.URLParam(req, "id")
	if id == "" {
		h.sendError(w, http.StatusBadRequest, "file id is required")
		return types.FileEntry{}, false
	}

	entry, ok := h.lib.Manager().Get(id)
	if !ok {
		h.sendError(w, http.StatusNotFound, "File not found: "+id)
		return types.FileEntry{}, false
	}
	return entry, true
}
