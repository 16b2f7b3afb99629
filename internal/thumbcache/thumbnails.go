package thumbcache

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/workers"
)

// DefaultSize is how many thumbnails a view keeps in memory.
const DefaultSize = 100

// Thumbnails caches decoded thumbnails keyed by source path.
type Thumbnails struct {
	*LRU[image.Image]
	width, height int
}

// NewThumbnails returns a cache of at most maxSize thumbnails, each fit
// into a width x height box.
func NewThumbnails(maxSize, width, height int) (*Thumbnails, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid thumbnail box %dx%d", width, height)
	}
	t := &Thumbnails{width: width, height: height}
	lru, err := New[image.Image](maxSize, t.load)
	if err != nil {
		return nil, err
	}
	t.LRU = lru
	return t, nil
}

func (t *Thumbnails) load(path string) (image.Image, error) {
	start := time.Now()
	img, err := media.LoadThumbnail(path, t.width, t.height)
	if err != nil {
		return nil, err
	}
	metrics.ThumbnailLoadDuration.Observe(time.Since(start).Seconds())
	return img, nil
}

// Box returns the thumbnail bounding box.
func (t *Thumbnails) Box() (int, int) { return t.width, t.height }

// Prefetch loads paths in the background pool and returns how many are
// cached afterwards. Only the first MaxSize paths are loaded, since later
// ones would evict earlier ones. Load failures are logged and skipped.
func (t *Thumbnails) Prefetch(ctx context.Context, paths []string) int {
	if len(paths) > t.MaxSize() {
		paths = paths[:t.MaxSize()]
	}

	var loaded int64
	err := workers.Run(ctx, workers.ForMixed(8), paths, func(_ context.Context, path string) {
		if _, err := t.Get(path); err != nil {
			logging.Debug("Thumbnail prefetch failed for %s: %v", path, err)
			return
		}
		atomic.AddInt64(&loaded, 1)
	})
	if err != nil {
		logging.Debug("Thumbnail prefetch stopped early: %v", err)
	}
	return int(loaded)
}
