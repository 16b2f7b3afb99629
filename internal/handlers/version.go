package handlers

import (
	"net/http"

	"upscale-viewer/internal/startup"
)

// GetVersion returns the build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, startup.GetBuildInfo())
}
