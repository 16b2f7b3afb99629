// Package database keeps a SQLite manifest of the upscaled image cache.
//
// Each disk cache entry gets a record of its source path, size,
// modification time and xxhash digest, along with hit counts. The cache
// itself stays authoritative; the manifest only reports which entries have
// gone stale and feeds cache statistics.
//
// The database uses WAL mode so several viewer processes can share it.
package database
