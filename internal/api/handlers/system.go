package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/api/models"
	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/sdk"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	BaseHandler
	lib *sdk.Library
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(lib *sdk.Library) *SystemHandler {
	return &SystemHandler{
		lib: lib,
	}
}

// Refresh reconciles the library with the scan service listing. An unreachable
// service leaves the library as it was and reports changed=false.
func (h *SystemHandler) Refresh(w http.ResponseWriter, req *http.Request) {
	changed, err := h.lib.Manager().Refresh(req.Context())
	if err != nil {
		logging.WithContext(req.Context()).Warn("refresh failed, library unchanged", zap.Error(err))
		h.sendSuccess(w, "Scan service unavailable, library unchanged", models.ChangedResponse{Changed: false})
		return
	}

	h.sendSuccess(w, "Library refreshed successfully", models.ChangedResponse{Changed: changed})
}

// Reset handles the reset endpoint
func (h *SystemHandler) Reset(w http.ResponseWriter, req *http.Request) {
	if err := h.lib.Reset(req.Context()); err != nil {
		h.sendFailure(w, req, "Failed to reset library", err)
		return
	}

	h.sendSuccess(w, "Library reset successfully", nil)
}

// GetConfig handles the get config endpoint. Store credentials are redacted.
func (h *SystemHandler) GetConfig(w http.ResponseWriter, req *http.Request) {
	config := *h.lib.GetConfig()
	if config.Store.S3SecretKey != "" {
		config.Store.S3SecretKey = "REDACTED"
	}
	h.sendSuccess(w, "Config retrieved successfully", config)
}
