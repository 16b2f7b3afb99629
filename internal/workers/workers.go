package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "UPSCALE_WORKERS"

// Count returns the number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
//
// Can be overridden with the UPSCALE_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
// Thumbnail decoding falls in this category.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Run calls fn for every item using at most n goroutines and waits for
// them to finish. Items not yet started when ctx is cancelled are skipped.
// It returns ctx.Err() if the context was cancelled before all items ran.
// The group is not derived from ctx, so one item never cancels another.
func Run[T any](ctx context.Context, n int, items []T, fn func(context.Context, T)) error {
	n = min(n, len(items))
	if n < 1 {
		n = 1
	}

	var g errgroup.Group
	g.SetLimit(n)

	var err error
	for _, item := range items {
		if err = ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, item)
			return nil
		})
	}
	if waitErr := g.Wait(); err == nil {
		err = waitErr
	}
	return err
}
