package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenance(t *testing.T) {
	ctx := context.Background()
	db := newTempDB(t, "history")
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.IntegrityCheck(ctx))

	res, err := db.Checkpoint(ctx)
	require.NoError(t, err)
	assert.False(t, res.Busy)

	size, err := db.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Positive(t, size)

	assert.NoError(t, db.Vacuum(ctx))
}

func TestSnapshotTo(t *testing.T) {
	ctx := context.Background()
	db := newTempDB(t, "runs")
	require.NoError(t, db.Migrate())

	dst := filepath.Join(t.TempDir(), "it's a copy.db")
	require.NoError(t, db.SnapshotTo(ctx, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	copyDB, err := New(Config{Path: dst, Name: "runs"})
	require.NoError(t, err)
	defer copyDB.Close()
	assert.NoError(t, copyDB.IntegrityCheck(ctx))

	// The target must not exist
	assert.Error(t, db.SnapshotTo(ctx, dst))
}

func TestMaintenance_ClosedDatabase(t *testing.T) {
	db := newTempDB(t, "cache")
	require.NoError(t, db.Close())

	ctx := context.Background()
	assert.Error(t, db.HealthCheck(ctx))
	assert.Error(t, db.IntegrityCheck(ctx))
	_, err := db.Checkpoint(ctx)
	assert.Error(t, err)
	_, err = db.SizeBytes(ctx)
	assert.Error(t, err)
}
