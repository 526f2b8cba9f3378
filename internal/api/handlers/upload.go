package handlers

import (
	"fmt"
	"net/http"

	"github.com/Project-Sylos/Citrus/internal/api/models"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/sdk"
)

const maxUploadBytes = 32 << 20

// UploadHandler handles the upload and capture intake endpoints
type UploadHandler struct {
	BaseHandler
	lib *sdk.Library
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(lib *sdk.Library) *UploadHandler {
	return &UploadHandler{
		lib: lib,
	}
}

// Explorer accepts a picked file as multipart field "file" and opens the naming prompt
func (h *UploadHandler) Explorer(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	file, hdr, err := req.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	pending, err := h.lib.UploadFile(file, hdr.Filename)
	if err != nil {
		h.sendFailure(w, req, "Failed to accept upload", err)
		return
	}

	h.sendJSON(w, http.StatusAccepted, types.APIResponse{
		Success: true,
		Message: "Upload waiting for a name",
		Data:    pending,
	})
}

// Camera accepts a capture as a data URL and opens the naming prompt
func (h *UploadHandler) Camera(w http.ResponseWriter, req *http.Request) {
	var request models.CameraCaptureRequest
	if err := h.decode(http.MaxBytesReader(w, req.Body, maxUploadBytes), &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.DataURL == "" {
		h.sendError(w, http.StatusBadRequest, "data_url is required")
		return
	}

	pending, err := h.lib.CaptureCamera(request.DataURL)
	if err != nil {
		h.sendFailure(w, req, "Failed to accept capture", err)
		return
	}

	h.sendJSON(w, http.StatusAccepted, types.APIResponse{
		Success: true,
		Message: "Capture waiting for a name",
		Data:    pending,
	})
}

// Pending returns the upload waiting for a name
func (h *UploadHandler) Pending(w http.ResponseWriter, req *http.Request) {
	pending, ok := h.lib.Manager().Pending()
	if !ok {
		h.sendError(w, http.StatusNotFound, "No pending upload")
		return
	}
	h.sendSuccess(w, "Pending upload retrieved successfully", pending)
}

// Confirm saves the pending upload into the library
func (h *UploadHandler) Confirm(w http.ResponseWriter, req *http.Request) {
	var request models.ConfirmUploadRequest
	if err := h.decode(req.Body, &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.lib.Manager().ConfirmPending(req.Context(), request.Name)
	if err != nil {
		h.sendFailure(w, req, "Failed to save upload", err)
		return
	}

	h.sendJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Message: "Upload saved successfully",
		Data:    entry,
	})
}

// Cancel discards the pending upload
func (h *UploadHandler) Cancel(w http.ResponseWriter, req *http.Request) {
	cancelled := h.lib.CancelUpload()
	h.sendSuccess(w, "Upload cancelled", models.ChangedResponse{Changed: cancelled})
}

// Scan sends the pending upload through the scan service and saves the result
func (h *UploadHandler) Scan(w http.ResponseWriter, req *http.Request) {
	var request models.ScanUploadRequest
	if err := h.decode(req.Body, &request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.lib.Manager().ScanPending(req.Context(), request.OutputName)
	if err != nil {
		h.sendFailure(w, req, fmt.Sprintf("Failed to scan %q", request.OutputName), err)
		return
	}

	h.sendJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Message: "Document scanned successfully",
		Data:    entry,
	})
}
