package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirMode  = 0750
	fileMode = 0600

	// pingTimeout bounds the connectivity check in Open.
	pingTimeout = 5 * time.Second

	// SQLite has a single writer; the pool is pinned to one connection so
	// history inserts never contend with themselves.
	maxConnLifetime = time.Hour
	maxConnIdleTime = 30 * time.Minute
)

// Config holds the SQLite settings from the history section of config.yaml.
type Config struct {
	// Path is the database file. Its directory is created on first open.
	Path string

	// WALMode enables write-ahead logging, which lets state-history reads
	// proceed while the bridge is inserting.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database,
	// in seconds.
	BusyTimeout int
}

// DB is the appliance history database handle. It embeds *sql.DB, so the
// usual query and exec methods are available directly; the wrapper owns
// opening (pragmas, pool sizing, file permissions), schema migration and
// shutdown.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the history database and verifies it is
// reachable. The file is chmod'd to owner-only since state history can
// reveal household activity patterns.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// The busy_timeout pragma is in milliseconds.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(maxConnLifetime)
	sqlDB.SetConnMaxIdleTime(maxConnIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist yet on a fresh open; the next write creates it
	// and a later Open tightens it.
	_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck // See above

	return &DB{DB: sqlDB}, nil
}

// Close releases the connection. Safe to call on a nil-wrapped handle.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to confirm the database still answers.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
