package queue

import (
	"sync"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/task"
)

// Starter launches tasks. *task.Runner implements it.
type Starter interface {
	Start(req task.Request, deliver func(task.Result)) *task.Task
}

// Queue orders upscale requests. In sequential mode at most one task runs
// and pending requests start in FIFO order, one per completion. Otherwise
// every request starts immediately.
type Queue struct {
	starter Starter
	deliver func(task.Result)

	mu         sync.Mutex
	idle       *sync.Cond
	sequential bool
	pending    []task.Request
	active     map[uint64]task.Request
	delivering int
}

// New returns a queue that hands every result to deliver. deliver runs on
// the task goroutine and must not block for long.
func New(starter Starter, sequential bool, deliver func(task.Result)) *Queue {
	q := &Queue{
		starter:    starter,
		deliver:    deliver,
		sequential: sequential,
		active:     make(map[uint64]task.Request),
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Request asks for path to be upscaled. In sequential mode a path that is
// already pending or running is not queued twice; its generation is
// refreshed instead, and a running task's result is delivered under the
// newer generation. It reports whether a new request was accepted.
func (q *Queue) Request(req task.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.sequential {
		q.startLocked(req)
		return true
	}

	for id, running := range q.active {
		if running.Path == req.Path {
			running.Generation = req.Generation
			q.active[id] = running
			logging.Debug("Upscale already running for %s", req.Path)
			return false
		}
	}
	for i := range q.pending {
		if q.pending[i].Path == req.Path {
			q.pending[i].Generation = req.Generation
			logging.Debug("Upscale already queued for %s", req.Path)
			return false
		}
	}
	q.pending = append(q.pending, req)
	logging.Debug("Queued upscale for %s (%d pending)", req.Path, len(q.pending))
	q.advanceLocked()
	return true
}

// SetSequential switches modes. Leaving sequential mode starts everything
// pending; entering it lets running tasks finish before the next starts.
func (q *Queue) SetSequential(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sequential == on {
		return
	}
	q.sequential = on
	if on {
		logging.Info("Sequential upscaling enabled")
	} else {
		logging.Info("Sequential upscaling disabled")
		pending := q.pending
		q.pending = nil
		for _, req := range pending {
			q.startLocked(req)
		}
		q.updateDepthLocked()
	}
}

// Sequential reports the current mode.
func (q *Queue) Sequential() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sequential
}

// Pending returns the queued paths in start order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	paths := make([]string, len(q.pending))
	for i, req := range q.pending {
		paths[i] = req.Path
	}
	return paths
}

// Active returns the number of running tasks.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Idle reports whether nothing is running, pending or being delivered.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idleLocked()
}

// Wait blocks until the queue is idle.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.idleLocked() {
		q.idle.Wait()
	}
}

func (q *Queue) idleLocked() bool {
	return len(q.active) == 0 && len(q.pending) == 0 && q.delivering == 0
}

func (q *Queue) advanceLocked() {
	if len(q.active) == 0 && len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.startLocked(next)
	}
	q.updateDepthLocked()
}

// startLocked registers the task before its completion can be handled.
// The task may finish before Start returns, but Start must not call
// deliver synchronously.
func (q *Queue) startLocked(req task.Request) {
	started := make(chan uint64, 1)
	t := q.starter.Start(req, func(res task.Result) {
		<-started
		q.finished(res)
	})
	q.active[t.ID()] = req
	started <- t.ID()
}

// finished counts as busy until deliver returns, so Wait covers delivery.
func (q *Queue) finished(res task.Result) {
	q.mu.Lock()
	if req, ok := q.active[res.TaskID]; ok {
		res.Generation = req.Generation
	}
	delete(q.active, res.TaskID)
	if q.sequential {
		q.advanceLocked()
	}
	q.delivering++
	q.mu.Unlock()

	if q.deliver != nil {
		q.deliver(res)
	}

	q.mu.Lock()
	q.delivering--
	if q.idleLocked() {
		q.idle.Broadcast()
	}
	q.mu.Unlock()
}

func (q *Queue) updateDepthLocked() {
	metrics.QueueDepth.Set(float64(len(q.pending)))
}
