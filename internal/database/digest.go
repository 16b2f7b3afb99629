package database

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Digest returns the xxhash64 of the file at path as 16 hex digits.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
