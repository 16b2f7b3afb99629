// Package fingerprint derives stable cache keys from source image paths.
//
// Keys are derived from the absolute path string, not from file contents:
// a file rewritten in place keeps its key, so cached derivatives go stale
// until they are removed explicitly. Content can be used as a key instead
// through the ByContent strategy.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // MD5 used for cache key generation, not security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Strategy selects how a cache key is derived.
type Strategy int

const (
	// ByPath keys entries on the absolute source path.
	ByPath Strategy = iota
	// ByContent keys entries on a SHA-256 digest of the source bytes.
	ByContent
)

// ParseStrategy maps a settings value onto a Strategy. Empty means ByPath.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "path":
		return ByPath, nil
	case "content":
		return ByContent, nil
	default:
		return ByPath, fmt.Errorf("unknown key strategy %q", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case ByPath:
		return "path"
	case ByContent:
		return "content"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Path returns the hex fingerprint of the absolute form of path.
func Path(path string) string {
	sum := md5.Sum([]byte(absolute(path))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Thumbnail returns the key for a thumbnail of path scaled into a w×h box.
func Thumbnail(path string, w, h int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%dx%d", absolute(path), w, h))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Content returns the SHA-256 hex digest of everything read from r.
func Content(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Key derives the key for path using strategy s.
func (s Strategy) Key(path string) (string, error) {
	switch s {
	case ByPath:
		return Path(path), nil
	case ByContent:
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return Content(f)
	default:
		return "", fmt.Errorf("unknown key strategy %d", int(s))
	}
}

func absolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
