package metrics

import (
	"sync"
	"time"

	"upscale-viewer/internal/logging"
)

// StatsProvider reports the on-disk state of the upscale cache.
type StatsProvider interface {
	CacheStats() (Stats, error)
}

// StatsProviderFunc adapts a function to StatsProvider.
type StatsProviderFunc func() (Stats, error)

// CacheStats calls f.
func (f StatsProviderFunc) CacheStats() (Stats, error) { return f() }

// Stats holds a snapshot of the cache footprint.
type Stats struct {
	DiskBytes       int64
	DiskEntries     int64
	ManifestEntries int64
	ManifestHits    int64
}

// Collector periodically polls a StatsProvider and publishes the gauges
// that cannot be maintained incrementally.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the collection loop. The first collection runs immediately.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	stats, err := c.provider.CacheStats()
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	DiskCacheSizeBytes.Set(float64(stats.DiskBytes))
	DiskCacheEntries.Set(float64(stats.DiskEntries))
	ManifestEntries.Set(float64(stats.ManifestEntries))
	ManifestHits.Set(float64(stats.ManifestHits))

	logging.Debug("Metrics collected: disk=%d bytes in %d entries, manifest=%d entries, %d hits",
		stats.DiskBytes, stats.DiskEntries, stats.ManifestEntries, stats.ManifestHits)
}
