package cli

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"upscale-viewer/internal/diskcache"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/settings"
	"upscale-viewer/internal/thumbcache"
	"upscale-viewer/internal/viewer"
)

type viewOptions struct {
	timeout time.Duration
	noUp    bool
}

func newViewCmd(root *rootOptions) *cobra.Command {
	opts := &viewOptions{}

	cmd := &cobra.Command{
		Use:   "view <files...>",
		Short: "Step through images as the viewer does",
		Long: `Open the files as a playlist in a viewer session. Each image is shown from
its source first and replaced by the upscaled version when it is ready; the
session then moves to the next file. Every render is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, root, opts, args)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Minute, "Give up on an image after this long")
	cmd.Flags().BoolVar(&opts.noUp, "no-upscale", false, "Only show source images")

	return cmd
}

// consoleRenderer prints renders and reports when an image has settled:
// its upscaled version, or its final fallback, has been shown.
type consoleRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	upscale bool
	settled chan string
}

func newConsoleRenderer(out io.Writer, upscale bool) *consoleRenderer {
	return &consoleRenderer{out: out, upscale: upscale, settled: make(chan string, 16)}
}

func (r *consoleRenderer) Render(path string, img image.Image, upscaled bool) {
	kind := "source"
	if upscaled {
		kind = "upscaled"
	}
	b := img.Bounds()
	r.printf("%-8s %dx%d %s\n", kind, b.Dx(), b.Dy(), path)

	if upscaled || !r.upscale {
		r.settle(path)
	}
}

func (r *consoleRenderer) Warn(path string, err error) {
	r.printf("warning  %s: %v\n", path, err)

	// A persist failure is followed by the upscaled render.
	var pe *diskcache.PersistError
	if !errors.As(err, &pe) {
		r.settle(path)
	}
}

func (r *consoleRenderer) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *consoleRenderer) settle(path string) {
	select {
	case r.settled <- path:
	default:
		logging.Debug("Dropping settle notification for %s", path)
	}
}

// await blocks until path settles.
func (r *consoleRenderer) await(ctx context.Context, path string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-r.settled:
			if p == path {
				return nil
			}
		}
	}
}

func runView(cmd *cobra.Command, root *rootOptions, opts *viewOptions, args []string) error {
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

	current := a.cfg.Settings
	if opts.noUp {
		current.EnabledUpscale = false
	}
	// Environment overrides and flags must not leak into the settings file.
	store := settings.NewStore("", current)

	var thumbs *thumbcache.Thumbnails
	if current.EnabledThumbnails {
		thumbs, err = thumbcache.NewThumbnails(current.ThumbnailCacheSize, current.ThumbnailSize, current.ThumbnailSize)
		if err != nil {
			logging.Warn("Thumbnails disabled: %v", err)
		}
	}

	renderer := newConsoleRenderer(cmd.OutOrStdout(), current.EnabledUpscale)
	session, err := viewer.New(viewer.Options{
		Store:      store,
		Runner:     a.runner,
		Renderer:   renderer,
		Thumbnails: thumbs,
	})
	if err != nil {
		return err
	}
	a.serveStatus(session.Queue())

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(runCtx) }()

	paths := uniquePaths(args)
	if thumbs != nil {
		go func() {
			n := thumbs.Prefetch(runCtx, paths)
			logging.Debug("Prefetched %d of %d thumbnails", n, len(paths))
		}()
	}

	if err := session.Open(paths); err != nil {
		return err
	}
	for i, p := range paths {
		waitCtx, cancelWait := context.WithTimeout(ctx, opts.timeout)
		err := renderer.await(waitCtx, p)
		cancelWait()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("timed out waiting for %s", p)
		}
		if i < len(paths)-1 {
			if err := session.Next(); err != nil {
				return err
			}
		}
	}

	stop()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
