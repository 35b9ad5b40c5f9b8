package database

import (
	"context"
	"fmt"
	"strings"
)

// CheckpointResult is the row returned by PRAGMA wal_checkpoint
type CheckpointResult struct {
	Busy         bool
	WALFrames    int
	Checkpointed int
}

// HealthCheck pings the database and runs PRAGMA quick_check
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}
	return db.check(ctx, "quick_check")
}

// IntegrityCheck runs the full PRAGMA integrity_check. Slow on large files.
func (db *DB) IntegrityCheck(ctx context.Context) error {
	return db.check(ctx, "integrity_check")
}

func (db *DB) check(ctx context.Context, pragma string) error {
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(&result); err != nil {
		return fmt.Errorf("%s query failed for %s: %w", pragma, db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("%s failed for %s: %s", pragma, db.name, result)
	}
	return nil
}

// Checkpoint runs a passive WAL checkpoint
func (db *DB) Checkpoint(ctx context.Context) (CheckpointResult, error) {
	var busy, frames, checkpointed int
	err := db.conn.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("wal checkpoint failed for %s: %w", db.name, err)
	}
	return CheckpointResult{Busy: busy != 0, WALFrames: frames, Checkpointed: checkpointed}, nil
}

// SizeBytes returns page_count * page_size
func (db *DB) SizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := db.conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to read page count for %s: %w", db.name, err)
	}
	if err := db.conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page size for %s: %w", db.name, err)
	}
	return pageCount * pageSize, nil
}

// Vacuum rebuilds the database file
func (db *DB) Vacuum(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", db.name, err)
	}
	return nil
}

// SnapshotTo writes a consistent copy of the database to dst, which must not exist.
func (db *DB) SnapshotTo(ctx context.Context, dst string) error {
	quoted := "'" + strings.ReplaceAll(dst, "'", "''") + "'"
	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("snapshot failed for %s: %w", db.name, err)
	}
	return nil
}
