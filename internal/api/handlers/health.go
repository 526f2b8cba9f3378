package handlers

import (
	"fmt"
	"net/http"

	"github.com/Project-Sylos/Citrus/sdk"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	BaseHandler
	lib *sdk.Library
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(lib *sdk.Library) *HealthHandler {
	return &HealthHandler{lib: lib}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, req *http.Request) {
	h.sendSuccess(w, "Citrus API is healthy", nil)
}

// RemoteHealth reports whether the scan service answers its health check
func (h *HealthHandler) RemoteHealth(w http.ResponseWriter, req *http.Request) {
	status, err := h.lib.Remote().Health(req.Context())
	if err != nil {
		h.sendError(w, http.StatusBadGateway, fmt.Sprintf("Scan service unreachable: %v", err))
		return
	}
	h.sendSuccess(w, "Scan service is healthy", status)
}
