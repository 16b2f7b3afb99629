package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/queue"
	"upscale-viewer/internal/settings"
	"upscale-viewer/internal/task"
	"upscale-viewer/internal/thumbcache"
	"upscale-viewer/internal/upscaler"
)

// ErrClosed is returned by requests made after the session loop stopped.
var ErrClosed = errors.New("viewer session closed")

// Renderer displays images. All calls are made from the session loop, one
// at a time.
type Renderer interface {
	// Render shows img for path. upscaled is false for the source image.
	Render(path string, img image.Image, upscaled bool)
	// Warn reports a non-fatal problem with path.
	Warn(path string, err error)
}

// Options wires a Session.
type Options struct {
	Store    *settings.Store
	Runner   *task.Runner
	Renderer Renderer

	// Thumbnails is optional; Thumbnail fails without it.
	Thumbnails *thumbcache.Thumbnails

	// NewEnhancer builds an enhancer when settings change. Defaults to
	// upscaler.New.
	NewEnhancer func(upscaler.Config) (upscaler.Enhancer, error)
}

type eventKind int

const (
	eventShow eventKind = iota
	eventResult
	eventSettings
	eventOpen
	eventStep
)

type event struct {
	kind     eventKind
	path     string
	paths    []string
	step     int
	result   task.Result
	settings settings.Settings
}

// Session plays the role of the interactive thread. Its loop goroutine is
// the single owner of the display state; everything else talks to it
// through events.
type Session struct {
	store       *settings.Store
	runner      *task.Runner
	queue       *queue.Queue
	renderer    Renderer
	thumbs      *thumbcache.Thumbnails
	newEnhancer func(upscaler.Config) (upscaler.Enhancer, error)

	events      chan event
	updates     <-chan settings.Settings
	unsubscribe func()
	done        chan struct{}
	once        sync.Once

	// Owned by the loop.
	playlist   []string
	index      int
	generation uint64
	current    string
	source     image.Image
	upscale    bool
}

// New returns a session configured from the store's current settings. Run
// must be called to process events.
func New(opts Options) (*Session, error) {
	if opts.Store == nil || opts.Runner == nil || opts.Renderer == nil {
		return nil, errors.New("viewer: store, runner and renderer are required")
	}

	s := &Session{
		store:       opts.Store,
		runner:      opts.Runner,
		renderer:    opts.Renderer,
		thumbs:      opts.Thumbnails,
		newEnhancer: opts.NewEnhancer,
		events:      make(chan event, 16),
		done:        make(chan struct{}),
	}
	if s.newEnhancer == nil {
		s.newEnhancer = upscaler.New
	}

	s.updates, s.unsubscribe = s.store.Watch()
	current := s.store.Get()
	s.upscale = current.EnabledUpscale
	s.queue = queue.New(s.runner, current.SequentialUpscale, s.deliver)
	if s.runner.Enhancer() == nil {
		s.applyEnhancer(current)
	}
	return s, nil
}

// Run processes events until ctx is cancelled. Results of tasks still
// running at that point are dropped.
func (s *Session) Run(ctx context.Context) error {
	defer s.once.Do(func() {
		s.unsubscribe()
		close(s.done)
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg := <-s.updates:
			s.handle(event{kind: eventSettings, settings: cfg})
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// Show asks the session to display path.
func (s *Session) Show(path string) error {
	return s.send(event{kind: eventShow, path: path})
}

// Open replaces the playlist and shows its first image.
func (s *Session) Open(paths []string) error {
	if len(paths) == 0 {
		return errors.New("viewer: empty playlist")
	}
	return s.send(event{kind: eventOpen, paths: append([]string(nil), paths...)})
}

// Next shows the following playlist image, wrapping at the end.
func (s *Session) Next() error { return s.send(event{kind: eventStep, step: 1}) }

// Prev shows the preceding playlist image, wrapping at the start.
func (s *Session) Prev() error { return s.send(event{kind: eventStep, step: -1}) }

// Queue exposes the upscale queue for inspection.
func (s *Session) Queue() *queue.Queue { return s.queue }

// Thumbnail returns the cached thumbnail for path.
func (s *Session) Thumbnail(path string) (image.Image, error) {
	if s.thumbs == nil || !s.store.Get().EnabledThumbnails {
		return nil, errors.New("thumbnails are disabled")
	}
	return s.thumbs.Get(path)
}

func (s *Session) send(ev event) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case <-s.done:
		return ErrClosed
	case s.events <- ev:
		return nil
	}
}

// deliver runs on task goroutines and hands results to the loop.
func (s *Session) deliver(res task.Result) {
	if err := s.send(event{kind: eventResult, result: res}); err != nil {
		logging.Debug("Dropping result for %s: %v", res.Path, err)
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case eventShow:
		s.show(ev.path)
	case eventResult:
		s.result(ev.result)
	case eventSettings:
		s.settingsChanged(ev.settings)
	case eventOpen:
		s.playlist = ev.paths
		s.index = 0
		s.show(s.playlist[0])
	case eventStep:
		if len(s.playlist) == 0 {
			return
		}
		s.index = (s.index + ev.step + len(s.playlist)) % len(s.playlist)
		s.show(s.playlist[s.index])
	}
}

func (s *Session) show(path string) {
	s.generation++
	s.current = path
	s.source = nil

	src, err := media.Decode(path)
	if err != nil {
		s.renderer.Warn(path, fmt.Errorf("%w: %w", task.ErrSourceUnreadable, err))
		return
	}
	s.source = src
	s.renderer.Render(path, src, false)

	if s.upscale {
		s.queue.Request(task.Request{Path: path, Generation: s.generation})
	}
}

func (s *Session) result(res task.Result) {
	if res.Generation != s.generation || res.Path != s.current {
		metrics.StaleResultsDiscarded.Inc()
		logging.Debug("Discarding stale result for %s (generation %d, current %d)", res.Path, res.Generation, s.generation)
		return
	}

	if res.Err != nil {
		s.renderer.Warn(res.Path, res.Err)
		if s.source != nil {
			s.renderer.Render(res.Path, s.source, false)
		}
		return
	}

	if !res.Persisted && res.PersistErr != nil {
		s.renderer.Warn(res.Path, res.PersistErr)
	}
	s.renderer.Render(res.Path, res.Image, true)
}

func (s *Session) settingsChanged(cfg settings.Settings) {
	s.upscale = cfg.EnabledUpscale
	s.queue.SetSequential(cfg.SequentialUpscale)
	s.applyEnhancer(cfg)
}

func (s *Session) applyEnhancer(cfg settings.Settings) {
	upCfg, err := cfg.UpscalerConfig()
	if err == nil {
		var e upscaler.Enhancer
		if e, err = s.newEnhancer(upCfg); err == nil {
			s.runner.SetEnhancer(e)
			logging.Debug("Upscaler set to %s", upCfg.Backend)
			return
		}
	}
	logging.Warn("Keeping previous upscaler: %v", err)
	s.renderer.Warn(s.current, fmt.Errorf("upscaler not reconfigured: %w", err))
}
