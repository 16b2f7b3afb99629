package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"DiskCacheRequests", DiskCacheRequests},
		{"DiskCacheWrites", DiskCacheWrites},
		{"DiskCacheReadDuration", DiskCacheReadDuration},
		{"DiskCacheSizeBytes", DiskCacheSizeBytes},
		{"DiskCacheEntries", DiskCacheEntries},
		{"ThumbnailCacheRequests", ThumbnailCacheRequests},
		{"ThumbnailCacheEvictions", ThumbnailCacheEvictions},
		{"ThumbnailCacheEntries", ThumbnailCacheEntries},
		{"ThumbnailLoadDuration", ThumbnailLoadDuration},
		{"InferenceDuration", InferenceDuration},
		{"InferenceTotal", InferenceTotal},
		{"TasksTotal", TasksTotal},
		{"TasksRunning", TasksRunning},
		{"QueueDepth", QueueDepth},
		{"StaleResultsDiscarded", StaleResultsDiscarded},
		{"MemoryUsageRatio", MemoryUsageRatio},
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics([]string{"lanczos", "realesrgan"})

	if got := testutil.CollectAndCount(InferenceTotal); got < 4 {
		t.Errorf("InferenceTotal series = %d, want at least 4", got)
	}
	if got := testutil.CollectAndCount(DiskCacheRequests); got < 4 {
		t.Errorf("DiskCacheRequests series = %d, want at least 4", got)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("cache", "read"))
	obs.ObserveOperation("cache", "read", 0.01, errors.New("boom"))
	obs.ObserveOperation("cache", "read", 0.01, nil)
	after := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("cache", "read"))
	if after-before != 1 {
		t.Errorf("operation errors increased by %v, want 1", after-before)
	}

	beforeStale := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "cache"))
	obs.ObserveStaleError("open", "cache")
	obs.ObserveRetryAttempt("open", "cache")
	obs.ObserveRetrySuccess("open", "cache")
	obs.ObserveRetryFailure("open", "cache")
	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "cache")) - beforeStale; got != 1 {
		t.Errorf("stale errors increased by %v, want 1", got)
	}
}

func TestFilesystemObserverRecordsCacheWrites(t *testing.T) {
	tracker := NewLatencyTracker(0.01)
	obs := newFilesystemObserver(tracker)

	obs.ObserveOperation("cache", "write", 0.004, nil)
	obs.ObserveOperation("cache", "write", 0.004, errors.New("disk full"))
	obs.ObserveOperation("source", "write", 0.004, nil)
	obs.ObserveOperation("cache", "read", 0.004, nil)

	all := tracker.Summaries()
	if len(all) != 1 || all[0].Operation != "cache_write" {
		t.Fatalf("Summaries() = %+v, want only cache_write", all)
	}
	if all[0].Count != 1 {
		t.Errorf("cache_write count = %d, want 1", all[0].Count)
	}
}

func TestLatencyTracker(t *testing.T) {
	tracker := NewLatencyTracker(0.01)

	for _, d := range []time.Duration{1, 5, 10, 50, 100} {
		tracker.Record("inference", d*time.Millisecond)
	}
	tracker.Record("cache_read", 2*time.Millisecond)

	s, err := tracker.Summary("inference")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Count != 5 {
		t.Errorf("Count = %d, want 5", s.Count)
	}
	if s.Min < 0.9 || s.Min > 1.1 {
		t.Errorf("Min = %.2f, want ~1ms", s.Min)
	}
	if s.Max < 99 || s.Max > 101 {
		t.Errorf("Max = %.2f, want ~100ms", s.Max)
	}
	if s.P50 < 5 || s.P50 > 15 {
		t.Errorf("P50 = %.2f, want ~10ms", s.P50)
	}

	all := tracker.Summaries()
	if len(all) != 2 {
		t.Fatalf("Summaries() returned %d entries, want 2", len(all))
	}
	if all[0].Operation != "cache_read" || all[1].Operation != "inference" {
		t.Errorf("Summaries() not sorted: %v, %v", all[0].Operation, all[1].Operation)
	}
	if !strings.Contains(all[1].String(), "n=5") {
		t.Errorf("String() = %q, want count", all[1].String())
	}

	if _, err := tracker.Summary("missing"); err == nil {
		t.Error("Summary of an unknown operation should fail")
	}
}
