package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Project-Sylos/Citrus/internal/blobs"
	"github.com/Project-Sylos/Citrus/internal/library"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/remote"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/sdk"
	"go.uber.org/zap"
)

// BaseHandler provides common functionality for all API handlers
type BaseHandler struct{}

// sendJSON sends a JSON response with the given status code and data
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response with the given status code and message
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, types.APIResponse{
		Success: false,
		Message: message,
	})
}

// sendSuccess sends a success response with the given data
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, message string, data any) {
	h.sendJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// sendFailure maps err to a status code and logs server-side failures
func (h *BaseHandler) sendFailure(w http.ResponseWriter, req *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(req.Context()).Error(message, zap.Error(err))
	}
	h.sendError(w, status, message+": "+err.Error())
}

// decode reads a JSON request body into dst. An empty body leaves dst zeroed.
func (h *BaseHandler) decode(body io.Reader, dst any) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func statusFor(err error) int {
	var apiErr *remote.APIError
	switch {
	case errors.Is(err, sdk.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrBlankName),
		errors.Is(err, library.ErrUnknownFolder),
		errors.Is(err, library.ErrRootFolder),
		errors.Is(err, blobs.ErrInvalidDataURL):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrDuplicateName),
		errors.Is(err, library.ErrNoPending):
		return http.StatusConflict
	case errors.Is(err, library.ErrNoScanner),
		errors.Is(err, library.ErrNoRemote):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
