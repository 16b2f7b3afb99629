package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"upscale-viewer/internal/database"
	"upscale-viewer/internal/metrics"
)

// StatsResponse is returned by GetStats.
type StatsResponse struct {
	DiskBytes       int64            `json:"diskBytes"`
	DiskEntries     int64            `json:"diskEntries"`
	ManifestEntries int64            `json:"manifestEntries"`
	ManifestHits    int64            `json:"manifestHits"`
	Latencies       []LatencyPayload `json:"latencies"`
}

// LatencyPayload is one operation's quantiles in milliseconds.
type LatencyPayload struct {
	Operation string  `json:"operation"`
	Count     int64   `json:"count"`
	P50       float64 `json:"p50"`
	P90       float64 `json:"p90"`
	P99       float64 `json:"p99"`
	Max       float64 `json:"max"`
}

// EntryResponse describes one manifest entry.
type EntryResponse struct {
	Key        string    `json:"key"`
	SourcePath string    `json:"sourcePath"`
	EntryPath  string    `json:"entryPath"`
	EntrySize  int64     `json:"entrySize"`
	CreatedAt  time.Time `json:"createdAt"`
	LastHitAt  time.Time `json:"lastHitAt"`
	Hits       int64     `json:"hits"`
}

// GetStats returns the cache footprint and operation latencies.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	var response StatsResponse
	if h.stats != nil {
		stats, err := h.stats.CacheStats()
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, "failed to collect stats: %v", err)
			return
		}
		response.DiskBytes = stats.DiskBytes
		response.DiskEntries = stats.DiskEntries
		response.ManifestEntries = stats.ManifestEntries
		response.ManifestHits = stats.ManifestHits
	}

	response.Latencies = []LatencyPayload{}
	for _, s := range metrics.Latencies.Summaries() {
		response.Latencies = append(response.Latencies, LatencyPayload{
			Operation: s.Operation,
			Count:     s.Count,
			P50:       s.P50,
			P90:       s.P90,
			P99:       s.P99,
			Max:       s.Max,
		})
	}

	respond(w, r, http.StatusOK, response)
}

// GetEntry looks up a manifest entry by cache key.
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	if h.manifest == nil {
		respondError(w, r, http.StatusNotFound, "manifest disabled")
		return
	}

	key := mux.Vars(r)["key"]
	entry, err := h.manifest.Entry(r.Context(), key)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "no manifest entry for %q", key)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "%v", err)
		return
	}

	respond(w, r, http.StatusOK, EntryResponse{
		Key:        entry.Key,
		SourcePath: entry.SourcePath,
		EntryPath:  entry.EntryPath,
		EntrySize:  entry.EntrySize,
		CreatedAt:  entry.CreatedAt,
		LastHitAt:  entry.LastHitAt,
		Hits:       entry.Hits,
	})
}
