package handlers

import (
	"net/http"
	"runtime"
	"time"

	"upscale-viewer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`

	// Queue info
	Sequential bool `json:"sequential"`
	Active     int  `json:"active"`
	Pending    int  `json:"pending"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Cache summary
	CacheEntries int64 `json:"cacheEntries"`
	CacheBytes   int64 `json:"cacheBytes"`
}

// HealthCheck returns the health status of the process. A failing stats
// provider makes the status degraded but still answers 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()
	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if h.queue != nil {
		response.Sequential = h.queue.Sequential()
		response.Active = h.queue.Active()
		response.Pending = len(h.queue.Pending())
	}

	if h.stats != nil {
		stats, err := h.stats.CacheStats()
		if err != nil {
			response.Status = statusDegraded
			response.Error = err.Error()
		} else {
			response.CacheEntries = stats.DiskEntries
			response.CacheBytes = stats.DiskBytes
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	respond(w, r, status, response)
}

// LivenessCheck is a simple liveness check (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only once the cache and upscaler are set up
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		respond(w, r, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
