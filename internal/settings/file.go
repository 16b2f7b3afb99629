package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"upscale-viewer/internal/filesystem"
	"upscale-viewer/internal/logging"
)

// DefaultFile is the settings file name looked up when none is given.
const DefaultFile = "settings.json"

// lockTimeout bounds how long Save waits for another writer.
const lockTimeout = 5 * time.Second

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// Load reads settings from path. Keys missing from the file keep their
// defaults. If the file is absent the defaults are returned without an
// error; if it is unreadable, malformed or invalid the defaults are
// returned together with the reason.
func Load(path string) (Settings, error) {
	defaults := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("No settings file at %s, using defaults", path)
			return defaults, nil
		}
		logging.Warn("Failed to read settings from %s, using defaults: %v", path, err)
		return defaults, fmt.Errorf("failed to read settings: %w", err)
	}

	s := defaults
	switch formatFor(path) {
	case formatYAML:
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		logging.Warn("Failed to parse settings %s, using defaults: %v", path, err)
		return defaults, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		logging.Warn("Invalid settings in %s, using defaults: %v", path, err)
		return defaults, fmt.Errorf("invalid settings %s: %w", path, err)
	}

	return s, nil
}

// Save writes s to path atomically while holding an exclusive lock on
// path+".lock", so concurrent viewers never interleave writes.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock settings: %w", err)
	}
	if !locked {
		return fmt.Errorf("settings %s are locked by another process", path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("Failed to unlock settings %s: %v", path, err)
		}
	}()

	err = filesystem.WriteFileAtomic(path, func(w io.Writer) error {
		return encode(w, path, s)
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	logging.Info("Settings saved to %s", path)
	return nil
}

func encode(w io.Writer, path string, s Settings) error {
	if formatFor(path) == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}

// Marshal renders s in the format implied by path's extension.
func Marshal(path string, s Settings) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, path, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
