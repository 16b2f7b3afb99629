package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"upscale-viewer/internal/database"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/startup"
)

type fakeQueue struct {
	sequential bool
	active     int
	pending    []string
}

func (q *fakeQueue) Sequential() bool  { return q.sequential }
func (q *fakeQueue) Active() int       { return q.active }
func (q *fakeQueue) Pending() []string { return q.pending }

type fakeManifest map[string]*database.Entry

func (m fakeManifest) Entry(_ context.Context, key string) (*database.Entry, error) {
	if e, ok := m[key]; ok {
		return e, nil
	}
	return nil, database.ErrNotFound
}

func staticStats(s metrics.Stats, err error) metrics.StatsProvider {
	return metrics.StatsProviderFunc(func() (metrics.Stats, error) { return s, err })
}

func serve(t *testing.T, h *Handlers, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		statsErr   error
		wantCode   int
		wantStatus string
	}{
		{"starting", false, nil, http.StatusServiceUnavailable, statusStarting},
		{"healthy", true, nil, http.StatusOK, statusHealthy},
		{"degraded", true, errors.New("disk gone"), http.StatusOK, statusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Options{
				Stats: staticStats(metrics.Stats{DiskBytes: 2048, DiskEntries: 3}, tt.statsErr),
				Queue: &fakeQueue{sequential: true, active: 1, pending: []string{"a", "b"}},
			})
			h.SetReady(tt.ready)

			w := serve(t, h, http.MethodGet, "/healthz")
			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}

			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if !resp.Sequential || resp.Active != 1 || resp.Pending != 2 {
				t.Errorf("queue = %+v", resp)
			}
			if tt.statsErr == nil && (resp.CacheEntries != 3 || resp.CacheBytes != 2048) {
				t.Errorf("cache = %d entries, %d bytes", resp.CacheEntries, resp.CacheBytes)
			}
			if tt.statsErr != nil && !strings.Contains(resp.Error, "disk gone") {
				t.Errorf("Error = %q", resp.Error)
			}
			if resp.Version != startup.Version {
				t.Errorf("Version = %q", resp.Version)
			}
		})
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	h := New(Options{})

	if w := serve(t, h, http.MethodGet, "/livez"); w.Code != http.StatusOK {
		t.Errorf("/livez = %d", w.Code)
	}
	if w := serve(t, h, http.MethodHead, "/livez"); w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", w.Code, w.Body.Len())
	}

	if w := serve(t, h, http.MethodGet, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before ready = %d", w.Code)
	}
	h.SetReady(true)
	if w := serve(t, h, http.MethodGet, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("/readyz after ready = %d", w.Code)
	}
}

func TestGetVersion(t *testing.T) {
	w := serve(t, New(Options{}), http.MethodGet, "/version")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	info := decode[startup.BuildInfo](t, w)
	if info.Version != startup.Version || info.GoVersion == "" {
		t.Errorf("build info = %+v", info)
	}
}

func TestGetStats(t *testing.T) {
	metrics.Latencies.Record("handlers-test", 5*time.Millisecond)

	h := New(Options{Stats: staticStats(metrics.Stats{DiskBytes: 10, DiskEntries: 1, ManifestEntries: 1, ManifestHits: 4}, nil)})
	w := serve(t, h, http.MethodGet, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}

	resp := decode[StatsResponse](t, w)
	if resp.DiskBytes != 10 || resp.ManifestHits != 4 {
		t.Errorf("stats = %+v", resp)
	}
	found := false
	for _, l := range resp.Latencies {
		if l.Operation == "handlers-test" && l.Count >= 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("latency summary missing: %+v", resp.Latencies)
	}
}

func TestGetStatsError(t *testing.T) {
	h := New(Options{Stats: staticStats(metrics.Stats{}, errors.New("boom"))})
	if w := serve(t, h, http.MethodGet, "/api/stats"); w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", w.Code)
	}
}

func TestGetEntry(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	h := New(Options{Manifest: fakeManifest{
		"abc": {Key: "abc", SourcePath: "/photos/a.png", EntryPath: "/cache/abc.png", EntrySize: 99, CreatedAt: created, Hits: 2},
	}})

	w := serve(t, h, http.MethodGet, "/api/entries/abc")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	entry := decode[EntryResponse](t, w)
	if entry.SourcePath != "/photos/a.png" || entry.Hits != 2 || !entry.CreatedAt.Equal(created) {
		t.Errorf("entry = %+v", entry)
	}

	w = serve(t, h, http.MethodGet, "/api/entries/missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing entry = %d", w.Code)
	}
	if resp := decode[errorResponse](t, w); !strings.Contains(resp.Error, `"missing"`) {
		t.Errorf("error = %q, want the key quoted", resp.Error)
	}
}

func TestGetEntryWithoutManifest(t *testing.T) {
	w := serve(t, New(Options{}), http.MethodGet, "/api/entries/abc")
	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want 404", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	w := serve(t, New(Options{}), http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "upscale_viewer_") {
		t.Error("metrics output has no upscale_viewer_ series")
	}
}
