package diskcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"upscale-viewer/internal/filesystem"
	"upscale-viewer/internal/fingerprint"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/mediatypes"
	"upscale-viewer/internal/metrics"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"
)

// Outcome says how GetOrCompute produced its image.
type Outcome int

const (
	// OutcomeHit means the image was read from an existing entry.
	OutcomeHit Outcome = iota
	// OutcomeComputed means there was no entry and compute ran.
	OutcomeComputed
	// OutcomeRecomputed means a corrupt entry was discarded and compute ran.
	OutcomeRecomputed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeComputed:
		return "computed"
	case OutcomeRecomputed:
		return "recomputed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ComputeFunc produces the image to cache on a miss.
type ComputeFunc func(ctx context.Context) (image.Image, error)

// Result is returned by GetOrCompute.
type Result struct {
	Image   image.Image
	Outcome Outcome
	Path    string

	// Persisted is false when the computed image could not be written;
	// PersistErr then holds the *PersistError.
	Persisted  bool
	PersistErr error

	// Shared is true when the image came from another caller's in-flight
	// computation for the same key.
	Shared bool
}

// Recorder is notified of entry lifecycle events. The manifest database
// implements it; errors are logged and never fail a cache operation.
type Recorder interface {
	RecordWrite(key, source, path string, size int64) error
	RecordHit(key string) error
	Forget(key string) error
}

// Options configures a Cache.
type Options struct {
	// Root is the directory entries are stored in. It is created lazily.
	Root     string
	Strategy fingerprint.Strategy
	Retry    filesystem.RetryConfig
	Recorder Recorder
}

// Cache memoizes upscaled images on disk, one file per source, named
// {fingerprint}{source extension}. Entries are never evicted automatically.
type Cache struct {
	root     string
	strategy fingerprint.Strategy
	retry    filesystem.RetryConfig
	recorder Recorder
	inflight singleflight.Group
}

// New returns a cache rooted at opts.Root. Nothing is created on disk
// until the first write.
func New(opts Options) *Cache {
	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = filesystem.DefaultRetryConfig()
	}
	return &Cache{
		root:     opts.Root,
		strategy: opts.Strategy,
		retry:    retry,
		recorder: opts.Recorder,
	}
}

// Root returns the cache directory.
func (c *Cache) Root() string { return c.root }

// Key returns the fingerprint used for src.
func (c *Cache) Key(src string) (string, error) {
	key, err := c.strategy.Key(src)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", src, err)
	}
	return key, nil
}

// Path returns where the entry for src lives. It only fails for the
// content strategy, when src cannot be read.
func (c *Cache) Path(src string) (string, error) {
	key, err := c.Key(src)
	if err != nil {
		return "", err
	}
	return c.pathFor(key, src), nil
}

func (c *Cache) pathFor(key, src string) string {
	return filepath.Join(c.root, key+filepath.Ext(src))
}

// Exists reports whether an entry for src is present.
func (c *Cache) Exists(src string) bool {
	path, err := c.Path(src)
	if err != nil {
		return false
	}
	_, err = filesystem.StatWithRetry(path, c.retry)
	return err == nil
}

// Read decodes the entry for src. It returns ErrNotCached when there is no
// entry and ErrDecode when the entry cannot be decoded.
func (c *Cache) Read(src string) (image.Image, error) {
	path, err := c.Path(src)
	if err != nil {
		return nil, err
	}
	return c.readPath(path)
}

func (c *Cache) readPath(path string) (image.Image, error) {
	start := time.Now()

	f, err := filesystem.OpenWithRetry(path, c.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	elapsed := time.Since(start)
	metrics.DiskCacheReadDuration.Observe(elapsed.Seconds())
	metrics.Latencies.Record("cache_read", elapsed)
	return img, nil
}

// Write stores img as the entry for src in the source's codec family,
// replacing any existing entry. Failures are *PersistError.
func (c *Cache) Write(src string, img image.Image) error {
	key, err := c.Key(src)
	if err != nil {
		return &PersistError{Path: src, Err: err}
	}
	return c.write(key, src, img)
}

func (c *Cache) write(key, src string, img image.Image) error {
	path := c.pathFor(key, src)
	format := mediatypes.FormatForPath(src)

	err := filesystem.WriteFileAtomic(path, func(w io.Writer) error {
		return media.Encode(w, img, format)
	})
	if err != nil {
		metrics.DiskCacheWrites.WithLabelValues("error").Inc()
		return &PersistError{Path: path, Err: err}
	}
	metrics.DiskCacheWrites.WithLabelValues("success").Inc()

	if c.recorder != nil {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		if err := c.recorder.RecordWrite(key, src, path, size); err != nil {
			logging.Warn("Failed to record cache entry for %s: %v", src, err)
		}
	}
	logging.Debug("Cached upscaled image %s -> %s", src, path)
	return nil
}

// GetOrCompute returns the cached image for src, or runs compute, stores
// its output and returns it. compute runs at most once per call, and
// concurrent callers missing on the same key share a single computation;
// the first caller's ctx is the one compute sees.
//
// A corrupt entry is removed and recomputed once. A failed write is not an
// error: the image is returned with Persisted false.
func (c *Cache) GetOrCompute(ctx context.Context, src string, compute ComputeFunc) (Result, error) {
	key, err := c.Key(src)
	if err != nil {
		return Result{}, err
	}
	path := c.pathFor(key, src)

	outcome := OutcomeComputed
	img, err := c.readPath(path)
	switch {
	case err == nil:
		c.recordHit(key)
		return Result{Image: img, Outcome: OutcomeHit, Path: path, Persisted: true}, nil
	case errors.Is(err, ErrDecode):
		logging.Warn("Discarding corrupt cache entry %s: %v", path, err)
		metrics.DiskCacheRequests.WithLabelValues("corrupt").Inc()
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logging.Warn("Failed to remove corrupt cache entry %s: %v", path, rmErr)
		}
		outcome = OutcomeRecomputed
	default:
		metrics.DiskCacheRequests.WithLabelValues("miss").Inc()
	}

	// Entries are keyed by file name: with content keys, identical bytes
	// under different extensions are separate entries.
	v, err, shared := c.inflight.Do(filepath.Base(path), func() (interface{}, error) {
		// Another flight may have finished between our read and Do.
		if outcome == OutcomeComputed {
			if img, err := c.readPath(path); err == nil {
				return Result{Image: img, Outcome: OutcomeHit, Path: path, Persisted: true}, nil
			}
		}

		img, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, errors.New("compute returned no image")
		}

		res := Result{Image: img, Outcome: outcome, Path: path, Persisted: true}
		if err := c.write(key, src, img); err != nil {
			logging.Warn("Upscaled image for %s not cached: %v", src, err)
			res.Persisted = false
			res.PersistErr = err
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}

	res := v.(Result)
	if shared {
		metrics.DiskCacheRequests.WithLabelValues("shared").Inc()
		res.Shared = true
	}
	return res, nil
}

func (c *Cache) recordHit(key string) {
	metrics.DiskCacheRequests.WithLabelValues("hit").Inc()
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordHit(key); err != nil {
		logging.Debug("Failed to record cache hit for %s: %v", key, err)
	}
}

// Remove deletes the entry for src. Removing a missing entry is not an error.
func (c *Cache) Remove(src string) error {
	key, err := c.Key(src)
	if err != nil {
		return err
	}
	if err := os.Remove(c.pathFor(key, src)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	c.forget(key)
	return nil
}

func (c *Cache) forget(key string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Forget(key); err != nil {
		logging.Warn("Failed to forget cache entry %s: %v", key, err)
	}
}

// Entry describes one file in the cache directory.
type Entry struct {
	Key     string
	Path    string
	Size    int64
	ModTime time.Time
}

// Entries lists the cache files. In-progress temporary files are skipped.
// A missing root yields no entries.
func (c *Cache) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue // removed concurrently
		}
		entries = append(entries, Entry{
			Key:     strings.TrimSuffix(name, filepath.Ext(name)),
			Path:    filepath.Join(c.root, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Size returns the total bytes and number of entries in the cache.
func (c *Cache) Size() (int64, int, error) {
	entries, err := c.Entries()
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, len(entries), nil
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	entries, err := c.Entries()
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		c.forget(e.Key)
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("failed to remove %d cache entries: %w", len(errs), errors.Join(errs...))
	}
	logging.Info("Cleared %d cache entries from %s", removed, c.root)
	return removed, nil
}

// VerifyReport summarizes a Verify run.
type VerifyReport struct {
	Checked int
	Corrupt []string
	Removed int
}

// Verify decodes every entry and reports those that fail or whose content
// does not match their extension. With remove set, bad entries are deleted.
func (c *Cache) Verify(ctx context.Context, remove bool) (VerifyReport, error) {
	var report VerifyReport

	entries, err := c.Entries()
	if err != nil {
		return report, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		if c.entryOK(e.Path) {
			continue
		}
		report.Corrupt = append(report.Corrupt, e.Path)
		if !remove {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to remove corrupt cache entry %s: %v", e.Path, err)
			continue
		}
		c.forget(e.Key)
		report.Removed++
	}
	return report, nil
}

func (c *Cache) entryOK(path string) bool {
	format, err := media.DetectFormat(path)
	if err != nil {
		logging.Debug("Cannot sniff %s: %v", path, err)
		return false
	}
	if want := mediatypes.FormatForPath(path); format != want {
		logging.Debug("Cache entry %s holds %s data, expected %s", path, format, want)
		return false
	}
	if _, err := c.readPath(path); err != nil {
		logging.Debug("Cache entry %s failed to decode: %v", path, err)
		return false
	}
	return true
}
