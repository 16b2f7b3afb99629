package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"upscale-viewer/internal/logging"
)

// respond writes v as a JSON body with the given status. HEAD requests get
// the headers only.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if r != nil && r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// status line already sent
		logging.Error("failed to encode %T response: %v", v, err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	respond(w, r, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}
