package upscaler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/mediatypes"
)

// realESRGAN runs the model in an external process. The process receives
// the input as a PNG file and writes its result to a second PNG file:
//
//	<command> --input IN --output OUT --model WEIGHTS --scale N [--device cpu|cuda]
//
// A tiling runner also takes the tile edge and input padding, sent when
// TuningFlags is set:
//
//	--tile T --pre_pad P
//
// Runners parse arguments strictly and exit on flags they do not define,
// so nothing else is ever passed.
type realESRGAN struct {
	cfg  Config
	argv []string
}

func newRealESRGAN(cfg Config) *realESRGAN {
	if _, err := os.Stat(cfg.WeightsPath); err != nil {
		logging.Warn("Real-ESRGAN weights not found at %s: %v", cfg.WeightsPath, err)
	}
	return &realESRGAN{cfg: cfg, argv: strings.Fields(cfg.Command)}
}

// args builds the process arguments for one run.
func (r *realESRGAN) args(in, out string) []string {
	args := append([]string{}, r.argv[1:]...)
	args = append(args,
		"--input", in,
		"--output", out,
		"--model", r.cfg.WeightsPath,
		"--scale", strconv.Itoa(r.cfg.Scale),
	)
	if r.cfg.Device != "" {
		args = append(args, "--device", r.cfg.Device)
	}
	if r.cfg.TuningFlags {
		args = append(args,
			"--tile", strconv.Itoa(r.cfg.Tile),
			"--pre_pad", strconv.Itoa(r.cfg.PrePad),
		)
	}
	return args
}

func (r *realESRGAN) Enhance(ctx context.Context, img image.Image) (image.Image, Metadata, error) {
	workDir, err := os.MkdirTemp("", "upscale-*")
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.Warn("Failed to remove work dir %s: %v", workDir, err)
		}
	}()

	in := filepath.Join(workDir, "input.png")
	out := filepath.Join(workDir, "output.png")

	if err := writePNG(in, img); err != nil {
		return nil, Metadata{}, err
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.args(in, out)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Running %s %s", r.argv[0], strings.Join(cmd.Args[1:], " "))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, Metadata{}, fmt.Errorf("%s interrupted: %w", r.argv[0], ctxErr)
		}
		return nil, Metadata{}, fmt.Errorf("%s error: %w - %s", r.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() > 0 {
		logging.Debug("%s: %s", r.argv[0], strings.TrimSpace(stdout.String()))
	}

	result, err := imaging.Open(out)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Metadata{}, fmt.Errorf("%s produced no output", r.argv[0])
		}
		return nil, Metadata{}, fmt.Errorf("failed to decode model output: %w", err)
	}

	// The model always upscales by its native factor; bring the result to
	// the requested output scale.
	want := targetSize(img.Bounds().Size(), r.cfg.EffectiveOutScale())
	if got := result.Bounds().Size(); got != want {
		logging.Debug("Resampling model output %dx%d to %dx%d", got.X, got.Y, want.X, want.Y)
		result = imaging.Resize(result, want.X, want.Y, imaging.Lanczos)
	}

	return result, Metadata{}, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model input: %w", err)
	}
	if err := media.Encode(f, img, mediatypes.FormatPNG); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode model input: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write model input: %w", err)
	}
	return nil
}
