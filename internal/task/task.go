package task

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"upscale-viewer/internal/diskcache"
	"upscale-viewer/internal/filesystem"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/upscaler"
)

// ErrSourceUnreadable reports a source image that could not be read or
// decoded.
var ErrSourceUnreadable = errors.New("source image unreadable")

// State is the lifecycle position of a Task.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Request identifies the image to upscale. Generation is opaque to the
// runner and copied into the Result so callers can discard stale results.
type Request struct {
	Path       string
	Generation uint64
}

// Result is the single terminal outcome of a Task.
type Result struct {
	TaskID     uint64
	Generation uint64
	Path       string

	// CachePath is the disk cache entry for Path, when it could be derived.
	CachePath string
	Image     image.Image
	Outcome   diskcache.Outcome

	// Persisted is false when the image was produced but not cached.
	// PersistErr then holds the *diskcache.PersistError.
	Persisted  bool
	PersistErr error

	Err      error
	Duration time.Duration
}

// OK reports whether the task produced an image.
func (r Result) OK() bool { return r.Err == nil && r.Image != nil }

// Gate delays inference while resources are short. *memory.Monitor
// implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Task is one upscale job. It runs exactly once and delivers one Result.
type Task struct {
	id    uint64
	req   Request
	state atomic.Int32
	done  chan struct{}

	result Result
}

// ID returns the task id, unique within its Runner.
func (t *Task) ID() uint64 { return t.id }

// Request returns the request the task was started with.
func (t *Task) Request() Request { return t.req }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Done is closed once the result is available.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the terminal result and true, or false while running.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}

// Runner starts tasks against a shared disk cache and enhancer.
type Runner struct {
	cache *diskcache.Cache
	gate  Gate

	mu       sync.RWMutex
	enhancer upscaler.Enhancer

	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// NewRunner returns a Runner. gate may be nil.
func NewRunner(cache *diskcache.Cache, enhancer upscaler.Enhancer, gate Gate) *Runner {
	return &Runner{cache: cache, enhancer: enhancer, gate: gate}
}

// SetEnhancer replaces the enhancer used by tasks started afterwards.
// Running tasks keep the enhancer they started with.
func (r *Runner) SetEnhancer(e upscaler.Enhancer) {
	r.mu.Lock()
	r.enhancer = e
	r.mu.Unlock()
}

// Enhancer returns the current enhancer.
func (r *Runner) Enhancer() upscaler.Enhancer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enhancer
}

// Start launches a task for req on its own goroutine. deliver is called
// exactly once, from that goroutine, with the terminal result.
func (r *Runner) Start(req Request, deliver func(Result)) *Task {
	t := &Task{
		id:   r.nextID.Add(1),
		req:  req,
		done: make(chan struct{}),
	}
	enhancer := r.Enhancer()

	r.wg.Add(1)
	go r.run(t, enhancer, deliver)
	return t
}

// Wait blocks until every started task has delivered its result.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(t *Task, enhancer upscaler.Enhancer, deliver func(Result)) {
	defer r.wg.Done()

	t.state.Store(int32(StateRunning))
	metrics.TasksRunning.Inc()
	start := time.Now()

	res := r.execute(t, enhancer)
	res.TaskID = t.id
	res.Generation = t.req.Generation
	res.Path = t.req.Path
	res.Duration = time.Since(start)

	metrics.TasksRunning.Dec()
	if res.Err != nil {
		t.state.Store(int32(StateFailed))
		metrics.TasksTotal.WithLabelValues("failed").Inc()
		logging.Warn("Upscale task %d for %s failed after %v: %v", t.id, t.req.Path, res.Duration.Round(time.Millisecond), res.Err)
	} else {
		t.state.Store(int32(StateSucceeded))
		metrics.TasksTotal.WithLabelValues("succeeded").Inc()
		logging.Debug("Upscale task %d for %s finished (%s) in %v", t.id, t.req.Path, res.Outcome, res.Duration.Round(time.Millisecond))
	}

	t.result = res
	close(t.done)

	if deliver != nil {
		safeDeliver(t.id, deliver, res)
	}
}

func safeDeliver(id uint64, deliver func(Result), res Result) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error("Result callback for task %d panicked: %v", id, p)
		}
	}()
	deliver(res)
}

// execute converts every failure, including panics, into Result.Err.
func (r *Runner) execute(t *Task, enhancer upscaler.Enhancer) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error("Upscale task %d panicked: %v\n%s", t.id, p, debug.Stack())
			res = Result{Err: fmt.Errorf("upscale task panicked: %v", p)}
		}
	}()

	if enhancer == nil {
		return Result{Err: errors.New("no upscaler configured")}
	}

	path := t.req.Path
	ctx := context.Background()

	// A cached entry is not served for a source that is gone.
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", ErrSourceUnreadable, err)}
	}
	if info.IsDir() {
		return Result{Err: fmt.Errorf("%w: %s is a directory", ErrSourceUnreadable, path)}
	}

	cachePath, err := r.cache.Path(path)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", ErrSourceUnreadable, err)}
	}

	cached, err := r.cache.GetOrCompute(ctx, path, func(ctx context.Context) (image.Image, error) {
		src, err := media.Decode(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
		}
		if r.gate != nil {
			if err := r.gate.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return enhance(ctx, enhancer, src)
	})
	if err != nil {
		return Result{CachePath: cachePath, Err: err}
	}

	return Result{
		CachePath:  cached.Path,
		Image:      cached.Image,
		Outcome:    cached.Outcome,
		Persisted:  cached.Persisted,
		PersistErr: cached.PersistErr,
	}
}

// enhance runs the enhancer, turning a panic into an InferenceError so
// tasks sharing the computation see the same failure.
func enhance(ctx context.Context, e upscaler.Enhancer, src image.Image) (out image.Image, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = &upscaler.InferenceError{Err: fmt.Errorf("enhancer panicked: %v", p)}
		}
	}()
	out, _, err = e.Enhance(ctx, src)
	return out, err
}
