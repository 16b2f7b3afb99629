package upscaler

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/metrics"
)

// Enhancer turns an image into its super-resolved version.
type Enhancer interface {
	Enhance(ctx context.Context, img image.Image) (image.Image, Metadata, error)
}

// Metadata describes an Enhance call. Callers may ignore it.
type Metadata struct {
	Backend  Backend
	Input    image.Point
	Output   image.Point
	Duration time.Duration
}

// InferenceError reports a failed Enhance call. It is never retried.
type InferenceError struct {
	Backend Backend
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (%s): %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// New builds the Enhancer for cfg.Backend.
func New(cfg Config) (Enhancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upscaler config: %w", err)
	}

	var e Enhancer
	switch cfg.Backend {
	case BackendRealESRGAN:
		e = newRealESRGAN(cfg)
	case BackendLanczos:
		e = &lanczos{cfg: cfg}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownBackend, int(cfg.Backend))
	}

	logging.Debug("Upscaler configured: backend=%s scale=%d outscale=%.2f tile=%d tile_pad=%d pre_pad=%d half=%v tuning_flags=%v",
		cfg.Backend, cfg.Scale, cfg.EffectiveOutScale(), cfg.Tile, cfg.TilePad, cfg.PrePad, cfg.Half, cfg.TuningFlags)

	return &instrumented{next: e, backend: cfg.Backend, timeout: cfg.Timeout}, nil
}

// instrumented applies the timeout, records metrics and normalizes errors
// into *InferenceError.
type instrumented struct {
	next    Enhancer
	backend Backend
	timeout time.Duration
}

func (i *instrumented) Enhance(ctx context.Context, img image.Image) (image.Image, Metadata, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, Metadata{}, &InferenceError{Backend: i.backend, Err: fmt.Errorf("empty input image")}
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	out, meta, err := i.next.Enhance(ctx, img)
	elapsed := time.Since(start)

	label := i.backend.String()
	metrics.InferenceDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	metrics.Latencies.Record("inference", elapsed)

	if err == nil && out == nil {
		err = fmt.Errorf("backend returned no image")
	}
	if err != nil {
		metrics.InferenceTotal.WithLabelValues(label, "error").Inc()
		if ie, ok := err.(*InferenceError); ok {
			return nil, meta, ie
		}
		return nil, meta, &InferenceError{Backend: i.backend, Err: err}
	}
	metrics.InferenceTotal.WithLabelValues(label, "success").Inc()

	meta.Backend = i.backend
	meta.Input = img.Bounds().Size()
	meta.Output = out.Bounds().Size()
	meta.Duration = elapsed
	logging.Debug("Enhanced %dx%d -> %dx%d with %s in %v",
		meta.Input.X, meta.Input.Y, meta.Output.X, meta.Output.Y, label, elapsed.Round(time.Millisecond))
	return out, meta, nil
}

// targetSize returns the output dimensions for src at scale.
func targetSize(src image.Point, scale float64) image.Point {
	return image.Point{
		X: max(1, int(math.Round(float64(src.X)*scale))),
		Y: max(1, int(math.Round(float64(src.Y)*scale))),
	}
}
