package upscaler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend selects the super-resolution implementation. The set is closed;
// New rejects any value not listed here.
type Backend int

const (
	// BackendRealESRGAN runs an external Real-ESRGAN process.
	BackendRealESRGAN Backend = iota
	// BackendLanczos resamples in-process. It needs no model and is used
	// when no GPU or weights are available.
	BackendLanczos
)

// Backends lists every known backend.
var Backends = []Backend{BackendRealESRGAN, BackendLanczos}

// ErrUnknownBackend is returned for backend names or values outside Backends.
var ErrUnknownBackend = errors.New("unknown upscaler backend")

func (b Backend) String() string {
	switch b {
	case BackendRealESRGAN:
		return "realesrgan"
	case BackendLanczos:
		return "lanczos"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackend maps a settings value onto a Backend. Matching ignores case
// and dashes, so "Real-ESRGAN" and "realesrgan" are the same backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "") {
	case "", "realesrgan":
		return BackendRealESRGAN, nil
	case "lanczos":
		return BackendLanczos, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Limits on the configuration surface.
const (
	MinScale = 1
	MaxScale = 8
	MaxTile  = 1024
)

// DefaultCommand is the executable run by the Real-ESRGAN backend.
const DefaultCommand = "realesrgan-upscale"

// Config is the fixed configuration of an Enhancer.
type Config struct {
	Backend Backend

	// WeightsPath is the model weights file passed to the external process.
	WeightsPath string

	// Scale is the model's native upscale factor.
	Scale int

	// OutScale is the final scale of the output. Zero means Scale. When the
	// model output differs, it is resampled to OutScale.
	OutScale float64

	// Tile is the tile edge in pixels; 0 processes the whole image at once.
	Tile    int
	TilePad int

	// PrePad pads the whole input before inference.
	PrePad int

	// Half requests reduced-precision inference.
	Half bool

	// Device is "cpu", "cuda" or empty to let the model decide.
	Device string

	// TuningFlags passes Tile and PrePad to the external process as
	// --tile and --pre_pad, for runners that tile. The plain runner accepts
	// neither. TilePad and Half have no runner flag: the reference runners
	// fix them at 10 and false.
	TuningFlags bool

	// Command is the executable (and leading arguments) for BackendRealESRGAN.
	Command string

	// Timeout bounds a single Enhance call; 0 means no limit.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used when settings are absent.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendRealESRGAN,
		WeightsPath: "models/RealESRNET_x4plus.pth",
		Scale:       4,
		Tile:        128,
		TilePad:     10,
		Command:     DefaultCommand,
		Timeout:     10 * time.Minute,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	var errs []error

	if c.Backend != BackendRealESRGAN && c.Backend != BackendLanczos {
		errs = append(errs, fmt.Errorf("%w: %d", ErrUnknownBackend, int(c.Backend)))
	}
	if c.Scale < MinScale || c.Scale > MaxScale {
		errs = append(errs, fmt.Errorf("scale %d out of range %d..%d", c.Scale, MinScale, MaxScale))
	}
	if c.OutScale < 0 || c.OutScale > MaxScale {
		errs = append(errs, fmt.Errorf("outscale %.2f out of range 0..%d", c.OutScale, MaxScale))
	}
	if c.Tile < 0 || c.Tile > MaxTile {
		errs = append(errs, fmt.Errorf("tile %d out of range 0..%d", c.Tile, MaxTile))
	}
	if c.TilePad < 0 {
		errs = append(errs, fmt.Errorf("tile_pad %d must not be negative", c.TilePad))
	}
	if c.PrePad < 0 {
		errs = append(errs, fmt.Errorf("pre_pad %d must not be negative", c.PrePad))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %v must not be negative", c.Timeout))
	}
	switch c.Device {
	case "", "cpu", "cuda":
	default:
		errs = append(errs, fmt.Errorf("device %q must be cpu or cuda", c.Device))
	}
	if c.Backend == BackendRealESRGAN {
		if strings.TrimSpace(c.Command) == "" {
			errs = append(errs, errors.New("command is required for the realesrgan backend"))
		}
		if c.WeightsPath == "" {
			errs = append(errs, errors.New("model_path is required for the realesrgan backend"))
		}
	}

	return errors.Join(errs...)
}

// EffectiveOutScale returns OutScale, or Scale when OutScale is unset.
func (c Config) EffectiveOutScale() float64 {
	if c.OutScale > 0 {
		return c.OutScale
	}
	return float64(c.Scale)
}
