package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// StoreFile is the file name of the results database.
const StoreFile = "onionwatch.db"

// Store provides SQLite-based storage for visit results.
// It is safe for concurrent use; writes are serialized by the single
// connection.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now is the clock used for every stored timestamp.
	now func() time.Time
}

// Options configures Store and JobStore behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// writer. This is recommended for most use cases.
	EnableWAL bool

	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the results database in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	db, path, err := openSQLite(dbDir, StoreFile, opts)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, dbPath: path, now: clock(opts)}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// openSQLite opens dbDir/name with the pool settings shared by both stores.
func openSQLite(dbDir, name string, opts Options) (*sql.DB, string, error) {
	dbPath := filepath.Join(dbDir, name)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, "", fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, "", fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	// Pragmas in the DSN apply to every connection the pool opens.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	return db, dbPath, nil
}

func clock(opts Options) func() time.Time {
	if opts.Clock != nil {
		return opts.Clock
	}
	return time.Now
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS targets (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		url           TEXT UNIQUE NOT NULL,
		domain        TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL DEFAULT '',
		detected_at   TEXT NOT NULL,
		last_scanned  TEXT NOT NULL,
		scan_count    INTEGER NOT NULL DEFAULT 1,
		status        TEXT NOT NULL,
		risk_score    REAL NOT NULL DEFAULT 0,
		risk_level    TEXT NOT NULL DEFAULT 'unknown',
		external_risk TEXT NOT NULL DEFAULT 'unknown',
		content_hash  TEXT NOT NULL DEFAULT '',
		language      TEXT NOT NULL DEFAULT '',
		notes         TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tech (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id  INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		category   TEXT NOT NULL,
		version    TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		source     TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS screenshots (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id  INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		path       TEXT NOT NULL,
		width      INTEGER NOT NULL DEFAULT 0,
		height     INTEGER NOT NULL DEFAULT 0,
		ocr_text   TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS threat_keywords (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		keyword   TEXT NOT NULL,
		category  TEXT NOT NULL,
		severity  TEXT NOT NULL,
		count     INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS tags (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		tag       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wallets (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		coin      TEXT NOT NULL,
		address   TEXT NOT NULL,
		addr_type TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS threat_intel (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id      INTEGER NOT NULL UNIQUE REFERENCES targets(id) ON DELETE CASCADE,
		url_found      INTEGER NOT NULL DEFAULT 0,
		url_status     TEXT NOT NULL DEFAULT '',
		url_threat     TEXT NOT NULL DEFAULT '',
		url_tags       TEXT NOT NULL DEFAULT '[]',
		host_found     INTEGER NOT NULL DEFAULT 0,
		host_url_count INTEGER NOT NULL DEFAULT 0,
		engine_found   INTEGER NOT NULL DEFAULT 0,
		malicious      INTEGER NOT NULL DEFAULT 0,
		suspicious     INTEGER NOT NULL DEFAULT 0,
		harmless       INTEGER NOT NULL DEFAULT 0,
		malicious_flag INTEGER NOT NULL DEFAULT 0,
		suspicious_flag INTEGER NOT NULL DEFAULT 0,
		external_risk  TEXT NOT NULL DEFAULT 'unknown',
		sources        TEXT NOT NULL DEFAULT '[]',
		checked_at     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alert_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id  INTEGER,
		channel    TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		sent       INTEGER NOT NULL DEFAULT 0,
		reason     TEXT NOT NULL DEFAULT '',
		sent_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS discovered_links (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id     INTEGER REFERENCES targets(id) ON DELETE SET NULL,
		url           TEXT UNIQUE NOT NULL,
		domain        TEXT NOT NULL DEFAULT '',
		discovered_at TEXT NOT NULL,
		scanned       INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS rescan_log (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id INTEGER,
		url       TEXT NOT NULL,
		status    TEXT NOT NULL,
		detail    TEXT NOT NULL DEFAULT '',
		ran_at    TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tech_target       ON tech(target_id);
	CREATE INDEX IF NOT EXISTS idx_targets_domain    ON targets(domain);
	CREATE INDEX IF NOT EXISTS idx_targets_risk      ON targets(risk_score);
	CREATE INDEX IF NOT EXISTS idx_targets_level     ON targets(risk_level);
	CREATE INDEX IF NOT EXISTS idx_keywords_target   ON threat_keywords(target_id);
	CREATE INDEX IF NOT EXISTS idx_tags_target       ON tags(target_id);
	CREATE INDEX IF NOT EXISTS idx_wallets_target    ON wallets(target_id);
	CREATE INDEX IF NOT EXISTS idx_wallets_coin      ON wallets(coin);
	CREATE INDEX IF NOT EXISTS idx_screenshots_target ON screenshots(target_id);
	CREATE INDEX IF NOT EXISTS idx_links_scanned     ON discovered_links(scanned, discovered_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimeLayout,          // Written by this package
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// storedTimeLayout is fixed-width so that stored timestamps sort
// lexically in time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000Z"

// formatTimestamp is the inverse of parseTimestamp.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
