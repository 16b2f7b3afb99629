package diskcache

import (
	"errors"
	"fmt"
)

// ErrDecode is returned by Read when an entry exists but cannot be decoded.
var ErrDecode = errors.New("cache entry could not be decoded")

// ErrNotCached is returned by Read when no entry exists for a source.
var ErrNotCached = errors.New("no cache entry")

// PersistError reports that a computed image could not be written to the
// cache. The image itself is still valid.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist cache entry %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
