package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"upscale-viewer/internal/fingerprint"
	"upscale-viewer/internal/media"
	"upscale-viewer/internal/thumbcache"
	"upscale-viewer/internal/upscaler"
)

// Settings is the persisted application configuration. Field names in the
// file match the keys used by earlier releases of the viewer.
type Settings struct {
	FitToWindow        bool    `json:"fit_to_window" yaml:"fit_to_window"`
	ScaleFactor        float64 `json:"scale_factor" yaml:"scale_factor"`
	EnabledThumbnails  bool    `json:"enabled_thumbnails" yaml:"enabled_thumbnails"`
	EnabledUpscale     bool    `json:"enabled_upscale" yaml:"enabled_upscale"`
	Tile               int     `json:"tile" yaml:"tile"`
	TilePad            int     `json:"tile_pad" yaml:"tile_pad"`
	PrePad             int     `json:"pre_pad" yaml:"pre_pad"`
	Scale              int     `json:"scale" yaml:"scale"`
	ModelPath          string  `json:"model_path" yaml:"model_path"`
	Half               bool    `json:"half" yaml:"half"`
	TuningFlags        bool    `json:"tuning_flags" yaml:"tuning_flags"`
	SequentialUpscale  bool    `json:"sequential_upscale" yaml:"sequential_upscale"`
	Backend            string  `json:"backend" yaml:"backend"`
	Command            string  `json:"command" yaml:"command"`
	Device             string  `json:"device" yaml:"device"`
	PageMode           string  `json:"page_mode" yaml:"page_mode"`
	Language           string  `json:"language" yaml:"language"`
	CacheDir           string  `json:"cache_dir" yaml:"cache_dir"`
	ThumbnailSize      int     `json:"thumbnail_size" yaml:"thumbnail_size"`
	ThumbnailCacheSize int     `json:"thumbnail_cache_size" yaml:"thumbnail_cache_size"`
	KeyStrategy        string  `json:"key_strategy" yaml:"key_strategy"`
}

// Page modes.
const (
	PageSingle = "single"
	PageDouble = "double"
)

// Defaults returns the settings used when no file exists or it is unusable.
func Defaults() Settings {
	up := upscaler.DefaultConfig()
	return Settings{
		FitToWindow:        true,
		ScaleFactor:        0,
		EnabledThumbnails:  true,
		EnabledUpscale:     false,
		Tile:               up.Tile,
		TilePad:            up.TilePad,
		PrePad:             up.PrePad,
		Scale:              up.Scale,
		ModelPath:          up.WeightsPath,
		Half:               false,
		SequentialUpscale:  true,
		Backend:            up.Backend.String(),
		Command:            up.Command,
		PageMode:           PageSingle,
		Language:           "ko",
		ThumbnailSize:      media.DefaultThumbnailSize,
		ThumbnailCacheSize: thumbcache.DefaultSize,
		KeyStrategy:        fingerprint.ByPath.String(),
	}
}

// Validate reports every out-of-range field.
func (s Settings) Validate() error {
	var errs []error
	if _, err := s.UpscalerConfig(); err != nil {
		errs = append(errs, err)
	}
	switch s.PageMode {
	case PageSingle, PageDouble:
	default:
		errs = append(errs, fmt.Errorf("page_mode %q must be %s or %s", s.PageMode, PageSingle, PageDouble))
	}
	if s.ThumbnailSize < 1 {
		errs = append(errs, fmt.Errorf("thumbnail_size %d must be positive", s.ThumbnailSize))
	}
	if s.ThumbnailCacheSize < 1 {
		errs = append(errs, fmt.Errorf("thumbnail_cache_size %d must be positive", s.ThumbnailCacheSize))
	}
	if _, err := fingerprint.ParseStrategy(s.KeyStrategy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// UpscalerConfig maps the settings onto an upscaler configuration.
func (s Settings) UpscalerConfig() (upscaler.Config, error) {
	backend, err := upscaler.ParseBackend(s.Backend)
	if err != nil {
		return upscaler.Config{}, err
	}
	cfg := upscaler.DefaultConfig()
	cfg.Backend = backend
	cfg.WeightsPath = s.ModelPath
	cfg.Scale = s.Scale
	cfg.OutScale = s.ScaleFactor
	cfg.Tile = s.Tile
	cfg.TilePad = s.TilePad
	cfg.PrePad = s.PrePad
	cfg.Half = s.Half
	cfg.TuningFlags = s.TuningFlags
	cfg.Device = s.Device
	if s.Command != "" {
		cfg.Command = s.Command
	}
	if err := cfg.Validate(); err != nil {
		return upscaler.Config{}, err
	}
	return cfg, nil
}

// Strategy returns the cache key strategy, falling back to path keys.
func (s Settings) Strategy() fingerprint.Strategy {
	strategy, err := fingerprint.ParseStrategy(s.KeyStrategy)
	if err != nil {
		return fingerprint.ByPath
	}
	return strategy
}

// ResolveCacheDir returns CacheDir, or a directory under the user cache
// directory when it is unset.
func (s Settings) ResolveCacheDir() (string, error) {
	if s.CacheDir != "" {
		return filepath.Abs(s.CacheDir)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("no cache directory configured: %w", err)
	}
	return filepath.Join(base, "upscale-viewer"), nil
}

// UpscaledDir returns the directory holding upscaled cache entries.
func (s Settings) UpscaledDir() (string, error) {
	dir, err := s.ResolveCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "upscaled"), nil
}

// Keys lists the settable field names in file order.
var Keys = []string{
	"fit_to_window", "scale_factor", "enabled_thumbnails", "enabled_upscale",
	"tile", "tile_pad", "pre_pad", "scale", "model_path", "half", "tuning_flags", "sequential_upscale",
	"backend", "command", "device", "page_mode", "language", "cache_dir",
	"thumbnail_size", "thumbnail_cache_size", "key_strategy",
}

// ErrUnknownKey is returned by Set for names not in Keys.
var ErrUnknownKey = errors.New("unknown setting")

// Set assigns a field from its textual form.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case "fit_to_window":
		s.FitToWindow, err = strconv.ParseBool(value)
	case "scale_factor":
		s.ScaleFactor, err = strconv.ParseFloat(value, 64)
	case "enabled_thumbnails":
		s.EnabledThumbnails, err = strconv.ParseBool(value)
	case "enabled_upscale":
		s.EnabledUpscale, err = strconv.ParseBool(value)
	case "tile":
		s.Tile, err = strconv.Atoi(value)
	case "tile_pad":
		s.TilePad, err = strconv.Atoi(value)
	case "pre_pad":
		s.PrePad, err = strconv.Atoi(value)
	case "scale":
		s.Scale, err = strconv.Atoi(value)
	case "model_path":
		s.ModelPath = value
	case "half":
		s.Half, err = strconv.ParseBool(value)
	case "tuning_flags":
		s.TuningFlags, err = strconv.ParseBool(value)
	case "sequential_upscale":
		s.SequentialUpscale, err = strconv.ParseBool(value)
	case "backend":
		s.Backend = value
	case "command":
		s.Command = value
	case "device":
		s.Device = value
	case "page_mode":
		s.PageMode = value
	case "language":
		s.Language = value
	case "cache_dir":
		s.CacheDir = value
	case "thumbnail_size":
		s.ThumbnailSize, err = strconv.Atoi(value)
	case "thumbnail_cache_size":
		s.ThumbnailCacheSize, err = strconv.Atoi(value)
	case "key_strategy":
		s.KeyStrategy = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return nil
}
