package cli

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"upscale-viewer/internal/diskcache"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/progress"
	"upscale-viewer/internal/queue"
	"upscale-viewer/internal/task"
)

type upscaleOptions struct {
	force      bool
	parallel   bool
	noProgress bool
}

func newUpscaleCmd(root *rootOptions) *cobra.Command {
	opts := &upscaleOptions{}

	cmd := &cobra.Command{
		Use:   "upscale <files...>",
		Short: "Upscale images into the disk cache",
		Long: `Upscale every file and store the result in the disk cache. Files that are
already cached are read back instead of recomputed. Tasks run one at a time
unless sequential_upscale is off or --parallel is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpscale(cmd, root, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.force, "force", false, "Discard cached entries and recompute")
	flags.BoolVar(&opts.parallel, "parallel", false, "Start every task at once")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

// upscaleReport collects task results as they are delivered.
type upscaleReport struct {
	mu       sync.Mutex
	bar      *progress.Bar
	failures []task.Result
	pending  sync.WaitGroup
}

func (r *upscaleReport) deliver(res task.Result) {
	defer r.pending.Done()

	switch {
	case res.Err != nil:
		r.mu.Lock()
		r.failures = append(r.failures, res)
		r.mu.Unlock()
		r.bar.Failed()
	case res.Outcome == diskcache.OutcomeHit:
		r.bar.Cached()
	default:
		r.bar.Computed()
	}
	if res.Err == nil && !res.Persisted {
		r.bar.Printf("warning: %s was upscaled but not cached: %v\n", res.Path, res.PersistErr)
	}
}

func runUpscale(cmd *cobra.Command, root *rootOptions, opts *upscaleOptions, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, root)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	defer a.Close()

	if err := a.withRunner(); err != nil {
		return err
	}

	paths := uniquePaths(args)
	if opts.force {
		for _, p := range paths {
			if err := a.cache.Remove(p); err != nil {
				logging.Warn("Failed to discard cache entry for %s: %v", p, err)
			}
		}
	}

	report := &upscaleReport{
		bar: progress.New(progress.Options{
			Total:       int64(len(paths)),
			Description: "Upscaling",
			Disabled:    opts.noProgress,
			Writer:      cmd.ErrOrStderr(),
		}),
	}

	sequential := a.cfg.Settings.SequentialUpscale && !opts.parallel
	q := queue.New(a.runner, sequential, report.deliver)
	a.serveStatus(q)

	report.pending.Add(len(paths))
	for i, p := range paths {
		if !q.Request(task.Request{Path: p, Generation: uint64(i + 1)}) {
			report.pending.Done()
		}
	}

	// The queue turns idle before the last result is delivered, so wait
	// for the deliveries themselves.
	done := make(chan struct{})
	go func() {
		report.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("interrupted with %d tasks running and %d pending", q.Active(), len(q.Pending()))
	}
	report.bar.Finish()

	out := cmd.OutOrStdout()
	for _, f := range report.failures {
		fmt.Fprintf(out, "FAILED %s: %v\n", f.Path, f.Err)
	}
	fmt.Fprintln(out, report.bar.Summary())
	if root.verbose {
		for _, l := range metrics.Latencies.Summaries() {
			fmt.Fprintf(out, "  %s\n", l)
		}
	}

	if n := len(report.failures); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(paths))
	}
	return nil
}

// uniquePaths makes args absolute and drops repeats, keeping order.
func uniquePaths(args []string) []string {
	seen := make(map[string]bool, len(args))
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		p, err := filepath.Abs(arg)
		if err != nil {
			p = arg
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// since formats an elapsed time for summaries.
func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
