package database

import "time"

// Entry is the manifest record of one disk cache entry.
type Entry struct {
	Key           string
	SourcePath    string
	Ext           string
	EntryPath     string
	EntrySize     int64
	SourceSize    int64
	SourceModTime time.Time
	SourceDigest  string
	CreatedAt     time.Time
	LastHitAt     time.Time
	Hits          int64
}

// Stats summarizes the manifest.
type Stats struct {
	Entries    int64
	Hits       int64
	EntryBytes int64
}

// StaleReason explains why a cached entry no longer matches its source.
type StaleReason string

const (
	StaleMissing  StaleReason = "missing"
	StaleModified StaleReason = "modified"
)

// StaleEntry is an entry whose source changed after it was cached.
type StaleEntry struct {
	Entry
	Reason StaleReason
}
