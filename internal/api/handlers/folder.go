package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Project-Sylos/Citrus/internal/api/models"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/sdk"
	"github.com/go-chi/chi/v5"
)

// FolderHandler handles folder-related endpoints
type FolderHandler struct {
	BaseHandler
	lib *sdk.Library
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(lib *sdk.Library) *FolderHandler {
	return &FolderHandler{
		lib: lib,
	}
}

// ListFolders handles the list folders endpoint
func (h *FolderHandler) ListFolders(w http.ResponseWriter, req *http.Request) {
	h.sendSuccess(w, "Folders retrieved successfully", h.lib.Manager().Folders())
}

// CreateFolder handles the create folder endpoint
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, req *http.Request) {
	var request models.CreateFolderRequest
	if err := h.decode(req.Body, &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		h.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	changed, err := h.lib.Manager().CreateFolder(req.Context(), request.Name)
	if err != nil {
		h.sendFailure(w, req, "Failed to create folder", err)
		return
	}
	if !changed {
		h.sendSuccess(w, "Folder already exists", models.ChangedResponse{Changed: false})
		return
	}

	h.sendJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Message: "Folder created successfully",
		Data:    models.ChangedResponse{Changed: true},
	})
}

// DeleteFolder removes a folder. Its files move to Root.
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, req *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(req, "name"))
	if err != nil || name == "" {
		h.sendError(w, http.StatusBadRequest, "folder name is required")
		return
	}

	changed, err := h.lib.Manager().DeleteFolder(req.Context(), name)
	if err != nil {
		h.sendFailure(w, req, "Failed to delete folder", err)
		return
	}

	h.sendSuccess(w, "Folder deleted successfully", models.ChangedResponse{Changed: changed})
}
