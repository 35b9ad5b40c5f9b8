// Package database wraps the SQLite databases used by the service.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemaFS embed.FS

const openTimeout = 5 * time.Second

// DatabaseProfile selects durability and pool settings
type DatabaseProfile string

const (
	// ProfileCache trades durability for speed; contents can be rebuilt
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard is used for data that must survive a crash
	ProfileStandard DatabaseProfile = "standard"
)

type profileSettings struct {
	synchronous  string
	maxOpenConns int
	maxIdleConns int
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileStandard: {synchronous: "NORMAL", maxOpenConns: 10, maxIdleConns: 4},
	ProfileCache:    {synchronous: "OFF", maxOpenConns: 4, maxIdleConns: 2},
}

// schemaFiles maps database names to their embedded schema
var schemaFiles = map[string]string{
	"runs":    "schemas/runs_schema.sql",
	"history": "schemas/history_schema.sql",
	"cache":   "schemas/cache_schema.sql",
}

// DB is an open SQLite database with its name and profile
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile // Defaults to ProfileStandard
	Name    string          // "runs", "history" or "cache"; selects the schema
}

// New opens the database, creating its directory when needed. Paths starting
// with "file:" are passed to the driver untouched.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}

	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpenConns)
	conn.SetMaxIdleConns(settings.maxIdleConns)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

// dsn appends the connection PRAGMAs to path
func dsn(path string, s profileSettings) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(" + s.synchronous + ")",
		"temp_store(MEMORY)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}

	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	return b.String()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection pool
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name
func (db *DB) Name() string {
	return db.name
}

// Profile returns the database profile
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema for this database. Schemas use
// IF NOT EXISTS, so migrating twice is a no-op.
func (db *DB) Migrate() error {
	schemaFile, ok := schemaFiles[db.name]
	if !ok {
		return nil
	}

	content, err := schemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", schemaFile, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute schema %s for %s: %w", schemaFile, db.name, err)
		}
		return nil
	})
}

// WithTransaction runs fn in a transaction, committing on success and rolling
// back on error or panic.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}
