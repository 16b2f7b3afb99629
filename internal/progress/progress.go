// Package progress renders a terminal progress bar for batch upscaling.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Bar counts processed, cached and failed items and draws a bar when
// writing to a terminal.
type Bar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar

	total     int64
	computed  int64
	cached    int64
	failed    int64
	startTime time.Time
	writer    io.Writer
}

// Options configures a Bar.
type Options struct {
	Total       int64
	Description string

	// Disabled forces plain output even on a terminal.
	Disabled bool

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a bar. Nothing is drawn unless Writer is a terminal.
func New(opts Options) *Bar {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	b := &Bar{
		total:     opts.Total,
		startTime: time.Now(),
		writer:    writer,
	}

	if opts.Disabled || opts.Total <= 0 || !IsTerminal(writer) {
		return b
	}

	description := opts.Description
	if description == "" {
		description = "Upscaling"
	}
	b.bar = progressbar.NewOptions64(
		opts.Total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("img"),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(writer)
		}),
		progressbar.OptionSetPredictTime(true),
	)
	return b
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Computed counts an image that was upscaled.
func (b *Bar) Computed() { b.add(&b.computed) }

// Cached counts an image served from the disk cache.
func (b *Bar) Cached() { b.add(&b.cached) }

// Failed counts an image that could not be upscaled.
func (b *Bar) Failed() { b.add(&b.failed) }

func (b *Bar) add(counter *int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	*counter++
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

// Finish completes the bar.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// Stats returns the counters.
func (b *Bar) Stats() (computed, cached, failed int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.computed, b.cached, b.failed
}

// Duration returns the time since New.
func (b *Bar) Duration() time.Duration {
	return time.Since(b.startTime)
}

// Enabled reports whether a bar is being drawn.
func (b *Bar) Enabled() bool {
	return b.bar != nil
}

// Printf writes a message, hiding the bar while it does so.
func (b *Bar) Printf(format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Clear()
	}
	fmt.Fprintf(b.writer, format, args...)
	if b.bar != nil {
		_ = b.bar.RenderBlank()
	}
}

// Summary renders the final counters.
func (b *Bar) Summary() string {
	computed, cached, failed := b.Stats()
	return fmt.Sprintf("%d upscaled, %d from cache, %d failed of %d in %v",
		computed, cached, failed, b.total, b.Duration().Round(time.Millisecond))
}
