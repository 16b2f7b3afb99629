package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"upscale-viewer/internal/database"
	"upscale-viewer/internal/metrics"
)

// QueueStatus reports the upscale queue. *queue.Queue implements it.
type QueueStatus interface {
	Sequential() bool
	Active() int
	Pending() []string
}

// EntryLookup finds manifest entries. *database.Database implements it.
type EntryLookup interface {
	Entry(ctx context.Context, key string) (*database.Entry, error)
}

// Options wires Handlers. Every field is optional.
type Options struct {
	Stats    metrics.StatsProvider
	Queue    QueueStatus
	Manifest EntryLookup
}

// Handlers serves the status API.
type Handlers struct {
	stats     metrics.StatsProvider
	queue     QueueStatus
	manifest  EntryLookup
	startTime time.Time
	ready     atomic.Bool
}

// New returns handlers that report not ready until SetReady is called.
func New(opts Options) *Handlers {
	return &Handlers{
		stats:     opts.Stats,
		queue:     opts.Queue,
		manifest:  opts.Manifest,
		startTime: time.Now(),
	}
}

// SetReady flips the readiness check.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
