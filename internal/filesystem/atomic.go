package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteFileAtomic creates path's parent directories, streams write's output
// into a temporary sibling and renames it into place, so readers never see
// a partially written file.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	start := time.Now()
	volume := defaultResolver.Resolve(path)
	defer func() {
		if obs := observe(); obs != nil {
			obs.ObserveOperation(volume, "write", time.Since(start).Seconds(), err)
		}
	}()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Keep the real extension last so tools that sniff by suffix still work.
	tmp, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	writeErr := write(tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write temp file: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}
