package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorPublishesStats(t *testing.T) {
	provider := StatsProviderFunc(func() (Stats, error) {
		return Stats{DiskBytes: 4096, DiskEntries: 3, ManifestEntries: 2, ManifestHits: 7}, nil
	})

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(DiskCacheSizeBytes); got != 4096 {
		t.Errorf("DiskCacheSizeBytes = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(DiskCacheEntries); got != 3 {
		t.Errorf("DiskCacheEntries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(ManifestEntries); got != 2 {
		t.Errorf("ManifestEntries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ManifestHits); got != 7 {
		t.Errorf("ManifestHits = %v, want 7", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	DiskCacheEntries.Set(11)
	c := NewCollector(StatsProviderFunc(func() (Stats, error) {
		return Stats{}, errors.New("walk failed")
	}), time.Hour)
	c.collect()

	if got := testutil.ToFloat64(DiskCacheEntries); got != 11 {
		t.Errorf("DiskCacheEntries = %v, want unchanged 11", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	calls := make(chan struct{}, 10)
	c := NewCollector(StatsProviderFunc(func() (Stats, error) {
		calls <- struct{}{}
		return Stats{}, nil
	}), 5*time.Millisecond)

	c.Start()
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("collector did not collect on start")
	}
	c.Stop()
	c.Stop()

	// A nil provider is a no-op.
	NewCollector(nil, time.Hour).collect()
}
