// Package testing provides testing utilities and helpers for the portfolio-qubo project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/portfolio-qubo/internal/database"
)

// NewTestDB creates a file-backed SQLite database in the temp directory with the
// embedded schema for name applied. The returned cleanup function closes the
// connection and removes the file; it is also registered with t.Cleanup.
//
// Supported schema names:
//   - "runs" - applies runs_schema.sql
//   - "history" - applies history_schema.sql
//   - "cache" - applies cache_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, tmpPath := openTempDB(t, name)

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, registerCleanup(t, db, tmpPath)
}

// NewTestDBWithSchema creates a test database and executes schema on it instead of
// the embedded one.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db, tmpPath := openTempDB(t, name)

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			_ = db.Close()
			_ = os.Remove(tmpPath)
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db, registerCleanup(t, db, tmpPath)
}

func openTempDB(t *testing.T, name string) (*database.DB, string) {
	t.Helper()

	// Temporary files keep each test isolated
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	return db, tmpPath
}

func registerCleanup(t *testing.T, db *database.DB, tmpPath string) func() {
	var closed bool
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", db.Name(), err)
		}
		// WAL mode leaves sidecar files next to the database
		for _, p := range []string{tmpPath, tmpPath + "-wal", tmpPath + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				t.Logf("Warning: Failed to remove temporary database file %s: %v", p, err)
			}
		}
	}
	t.Cleanup(cleanup)
	return cleanup
}
