package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testMonitor() *Monitor {
	return NewMonitor(Config{
		MemoryLimitBytes:  100 * 1024 * 1024,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
}

func TestMonitorPauseAndResume(t *testing.T) {
	m := testMonitor()
	limit := uint64(m.limit)

	m.observe(limit / 2)
	if m.IsPaused() {
		t.Fatal("paused at 50% usage")
	}

	m.observe(limit * 9 / 10)
	if !m.IsPaused() {
		t.Fatal("not paused at 90% usage")
	}
	if !m.ShouldThrottle() {
		t.Error("ShouldThrottle() = false at 90% usage")
	}

	// Between the watermarks the paused state is kept.
	m.observe(limit * 8 / 10)
	if !m.IsPaused() {
		t.Error("resumed between watermarks")
	}

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	m.observe(limit / 10)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after memory recovered")
	}
}

func TestMonitorWaitHonoursContext(t *testing.T) {
	m := testMonitor()
	m.observe(uint64(m.limit))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	m := testMonitor()
	m.observe(uint64(m.limit))

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() after Stop error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not release waiter")
	}
}

func TestMonitorGetStats(t *testing.T) {
	m := testMonitor()
	m.observe(uint64(m.limit / 4))

	current, limit, usage := m.GetStats()
	if limit != 100*1024*1024 {
		t.Errorf("limit = %d", limit)
	}
	if current != limit/4 {
		t.Errorf("current = %d, want %d", current, limit/4)
	}
	if usage != 0.25 {
		t.Errorf("usage = %v, want 0.25", usage)
	}
}

func TestMonitorStartStop(t *testing.T) {
	m := testMonitor()
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if current, _, _ := m.GetStats(); current == 0 {
		t.Error("monitor loop never sampled memory")
	}
}

func TestMonitorNoLimitNeverBlocks(t *testing.T) {
	m := &Monitor{stopChan: make(chan struct{}), pauseChan: make(chan struct{})}
	m.observe(1 << 40)
	if m.IsPaused() || m.ShouldThrottle() {
		t.Error("monitor without a limit should never pause or throttle")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}
