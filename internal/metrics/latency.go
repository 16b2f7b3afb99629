package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// LatencyTracker keeps one DDSketch per operation so quantiles can be
// reported by the CLI without scraping Prometheus.
type LatencyTracker struct {
	mu       sync.Mutex
	sketches map[string]*ddsketch.DDSketch
	accuracy float64
}

// LatencySummary is a point-in-time quantile summary, in milliseconds.
type LatencySummary struct {
	Operation string
	Count     int64
	Min       float64
	P50       float64
	P90       float64
	P99       float64
	Max       float64
}

// Latencies is the process-wide tracker fed by the disk cache and the
// inference adapter.
var Latencies = NewLatencyTracker(0.01)

// NewLatencyTracker creates a tracker with the given relative accuracy
// (0.01 = quantiles within 1%).
func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	return &LatencyTracker{
		sketches: make(map[string]*ddsketch.DDSketch),
		accuracy: relativeAccuracy,
	}
}

// Record adds one observation for operation.
func (lt *LatencyTracker) Record(operation string, d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, ok := lt.sketches[operation]
	if !ok {
		var err error
		sketch, err = ddsketch.LogUnboundedDenseDDSketch(lt.accuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(lt.accuracy)
		}
		lt.sketches[operation] = sketch
	}
	_ = sketch.Add(float64(d.Microseconds()) / 1000.0)
}

// Summary returns quantiles for operation.
func (lt *LatencyTracker) Summary(operation string) (LatencySummary, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.summaryLocked(operation)
}

func (lt *LatencyTracker) summaryLocked(operation string) (LatencySummary, error) {
	sketch, ok := lt.sketches[operation]
	if !ok {
		return LatencySummary{}, fmt.Errorf("no latency data for %s", operation)
	}

	s := LatencySummary{Operation: operation, Count: int64(sketch.GetCount())}
	if s.Count == 0 {
		return s, nil
	}
	s.Min, _ = sketch.GetMinValue()
	s.Max, _ = sketch.GetMaxValue()
	s.P50, _ = sketch.GetValueAtQuantile(0.50)
	s.P90, _ = sketch.GetValueAtQuantile(0.90)
	s.P99, _ = sketch.GetValueAtQuantile(0.99)
	return s, nil
}

// Summaries returns a summary for every tracked operation, sorted by name.
func (lt *LatencyTracker) Summaries() []LatencySummary {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	out := make([]LatencySummary, 0, len(lt.sketches))
	for op := range lt.sketches {
		if s, err := lt.summaryLocked(op); err == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

func (s LatencySummary) String() string {
	if s.Count == 0 {
		return fmt.Sprintf("%s: no data", s.Operation)
	}
	return fmt.Sprintf("%s (n=%d): min=%.1fms p50=%.1fms p90=%.1fms p99=%.1fms max=%.1fms",
		s.Operation, s.Count, s.Min, s.P50, s.P90, s.P99, s.Max)
}
