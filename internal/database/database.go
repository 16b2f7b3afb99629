package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when the manifest has no record for a key.
var ErrNotFound = errors.New("manifest entry not found")

// Database is the SQLite manifest of disk cache entries. It records where
// each entry came from so stale entries can be found after their source
// changes. It implements diskcache.Recorder.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens or creates the manifest at dbPath. The parent directory is
// created if needed.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Debug("Manifest database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout lets concurrent viewers share one manifest
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		ext TEXT NOT NULL,
		entry_path TEXT NOT NULL,
		entry_size INTEGER NOT NULL DEFAULT 0,
		source_size INTEGER NOT NULL DEFAULT 0,
		source_mod_time INTEGER NOT NULL DEFAULT 0,
		source_digest TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_hit_at INTEGER NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source_path);
	CREATE INDEX IF NOT EXISTS idx_entries_last_hit ON entries(last_hit_at);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database file.
func (d *Database) Path() string { return d.dbPath }

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// RecordWrite stores or replaces the record for a freshly written entry.
// The source is hashed so later modifications can be detected.
func (d *Database) RecordWrite(key, source, entryPath string, entrySize int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_write", start, err) }()

	var sourceSize, sourceMod int64
	var digest sql.NullString
	if info, statErr := os.Stat(source); statErr == nil {
		sourceSize = info.Size()
		sourceMod = info.ModTime().Unix()
		if sum, hashErr := Digest(source); hashErr == nil {
			digest = sql.NullString{String: sum, Valid: true}
		} else {
			logging.Debug("Manifest: cannot hash %s: %v", source, hashErr)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO entries (key, source_path, ext, entry_path, entry_size, source_size, source_mod_time, source_digest, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(key) DO UPDATE SET
		source_path = excluded.source_path,
		ext = excluded.ext,
		entry_path = excluded.entry_path,
		entry_size = excluded.entry_size,
		source_size = excluded.source_size,
		source_mod_time = excluded.source_mod_time,
		source_digest = excluded.source_digest,
		created_at = excluded.created_at
	`, key, source, filepath.Ext(source), entryPath, entrySize, sourceSize, sourceMod, digest)
	return err
}

// RecordHit counts a cache hit for key. Unknown keys are ignored.
func (d *Database) RecordHit(key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_hit", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"UPDATE entries SET hits = hits + 1, last_hit_at = ? WHERE key = ?",
		time.Now().Unix(), key)
	return err
}

// Forget removes the record for key.
func (d *Database) Forget(key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("forget", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key)
	return err
}

const entryColumns = `key, source_path, ext, entry_path, entry_size, source_size,
	source_mod_time, COALESCE(source_digest, ''), created_at, last_hit_at, hits`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var sourceMod, created, lastHit int64
	err := row.Scan(&e.Key, &e.SourcePath, &e.Ext, &e.EntryPath, &e.EntrySize, &e.SourceSize,
		&sourceMod, &e.SourceDigest, &created, &lastHit, &e.Hits)
	if err != nil {
		return Entry{}, err
	}
	e.SourceModTime = time.Unix(sourceMod, 0)
	e.CreatedAt = time.Unix(created, 0)
	if lastHit > 0 {
		e.LastHitAt = time.Unix(lastHit, 0)
	}
	return e, nil
}

// Entry returns the record for key, or ErrNotFound.
func (d *Database) Entry(ctx context.Context, key string) (*Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_entry", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	e, err := scanEntry(d.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Entries returns every record, most recently hit first.
func (d *Database) Entries(ctx context.Context) ([]Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_entries", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries ORDER BY last_hit_at DESC, created_at DESC, key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if e, err = scanEntry(rows); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	err = rows.Err()
	return entries, err
}

// Stats returns manifest totals.
func (d *Database) Stats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s Stats
	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(hits), 0), COALESCE(SUM(entry_size), 0) FROM entries",
	).Scan(&s.Entries, &s.Hits, &s.EntryBytes)
	return s, err
}

// Stale returns the entries whose source is gone or has changed since it
// was cached. A source whose size and modification time are unchanged is
// assumed unchanged; otherwise its digest decides. Stale entries are only
// reported, never removed.
func (d *Database) Stale(ctx context.Context) ([]StaleEntry, error) {
	entries, err := d.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var stale []StaleEntry
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stale, err
		}

		info, err := os.Stat(e.SourcePath)
		if err != nil {
			stale = append(stale, StaleEntry{Entry: e, Reason: StaleMissing})
			continue
		}
		if info.Size() == e.SourceSize && info.ModTime().Unix() == e.SourceModTime.Unix() {
			continue
		}
		if e.SourceDigest != "" && info.Size() == e.SourceSize {
			if sum, err := Digest(e.SourcePath); err == nil && sum == e.SourceDigest {
				continue
			}
		}
		stale = append(stale, StaleEntry{Entry: e, Reason: StaleModified})
	}
	return stale, nil
}

// Reconcile removes records whose key is not in present and returns how
// many were removed.
func (d *Database) Reconcile(ctx context.Context, present map[string]bool) (int, error) {
	entries, err := d.Entries(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if present[e.Key] {
			continue
		}
		if err := d.Forget(e.Key); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		logging.Info("Manifest: removed %d records without cache files", removed)
	}
	return removed, nil
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil && dbInfo.Mode().Perm()&0o200 == 0 {
		logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
	}

	// A read-only WAL or SHM file makes every write fail.
	for _, p := range []string{dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v", filepath.Base(p), info.Mode())
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", filepath.Base(p), chmodErr)
		} else {
			logging.Info("Fixed %s permissions", filepath.Base(p))
		}
	}

	return nil
}
