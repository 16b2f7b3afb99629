package workers

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		maxExpect  int
	}{
		{name: "CPU-bound", multiplier: 1.0, maxExpect: availableCPU},
		{name: "I/O-bound", multiplier: 2.0, maxExpect: availableCPU * 2},
		{name: "Mixed", multiplier: 1.5, maxExpect: max(1, int(float64(availableCPU)*1.5))},
		{name: "Limit lower than calculated", multiplier: 2.0, limit: 2, maxExpect: 2},
		{name: "Very low multiplier", multiplier: 0.1, maxExpect: max(1, int(float64(availableCPU)*0.1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < 1 {
				t.Errorf("Count(%v, %d) = %d, should never return less than 1", tt.multiplier, tt.limit, got)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int // 0 means fall back to the computed value
	}{
		{name: "Valid override", envValue: "8", expected: 8},
		{name: "Override capped by limit", envValue: "20", limit: 10, expected: 10},
		{name: "Override below limit", envValue: "5", limit: 10, expected: 5},
		{name: "Non-numeric", envValue: "invalid"},
		{name: "Zero", envValue: "0"},
		{name: "Negative", envValue: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.envValue)

			got := Count(1.0, tt.limit)
			want := tt.expected
			if want == 0 {
				want = max(1, runtime.GOMAXPROCS(0))
			}
			if got != want {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d", tt.limit, EnvOverride, tt.envValue, got, want)
			}
		})
	}
}

func TestHelpersRespectLimit(t *testing.T) {
	t.Setenv(EnvOverride, "")

	for name, fn := range map[string]func(int) int{"ForCPU": ForCPU, "ForIO": ForIO, "ForMixed": ForMixed} {
		if got := fn(1); got != 1 {
			t.Errorf("%s(1) = %d, want 1", name, got)
		}
	}
	if ForIO(0) < ForCPU(0) {
		t.Errorf("ForIO(0) = %d < ForCPU(0) = %d", ForIO(0), ForCPU(0))
	}
}

func TestRunProcessesEveryItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	var mu sync.Mutex
	var seen []int
	var running, peak int32

	err := Run(context.Background(), 3, items, func(_ context.Context, n int) {
		cur := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)

		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sort.Ints(seen)
	if len(seen) != len(items) {
		t.Fatalf("processed %d items, want %d", len(seen), len(items))
	}
	for i, n := range seen {
		if n != items[i] {
			t.Errorf("seen[%d] = %d, want %d", i, n, items[i])
		}
	}
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := Run(ctx, 2, []string{"a", "b", "c"}, func(context.Context, string) {
		atomic.AddInt32(&calls, 1)
	})
	if err == nil {
		t.Fatal("Run() with cancelled context returned nil error")
	}
	if calls != 0 {
		t.Errorf("fn called %d times after cancellation", calls)
	}
}

func TestRunSkipsItemsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	err := Run(ctx, 1, []int{1, 2, 3, 4}, func(context.Context, int) {
		atomic.AddInt32(&calls, 1)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRunEmpty(t *testing.T) {
	if err := Run(context.Background(), 4, []int(nil), func(context.Context, int) {
		t.Error("fn called for empty input")
	}); err != nil {
		t.Errorf("Run(empty) error = %v", err)
	}
}

func BenchmarkCount(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Count(1.5, 8)
	}
}
