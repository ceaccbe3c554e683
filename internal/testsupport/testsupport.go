// Package testsupport holds shared helpers for package tests.
package testsupport

import (
	"context"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fennec/internal/store"
)

// TestDatabaseEnv names the environment variable holding the Postgres DSN
// used by store-backed tests. Tests skip when it is unset.
const TestDatabaseEnv = "FENNEC_TEST_DATABASE_URL"

// MustOpenStore opens a store against the test database, wiping enrichment
// data first so each test starts clean. Skips the test when no database is
// configured.
func MustOpenStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := os.Getenv(TestDatabaseEnv)
	if dsn == "" {
		t.Skipf("set %s to run store-backed tests", TestDatabaseEnv)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}

	st, err := store.OpenWithDB(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := st.Wipe(context.Background()); err != nil {
		t.Fatalf("wipe test database: %v", err)
	}
	// Wipe preserves config by contract; neutralize keys that leak
	// between tests.
	if err := st.SetConfig(context.Background(), store.KeyWatchFolders, []string{}); err != nil {
		t.Fatalf("reset watch folders: %v", err)
	}
	if err := st.SetConfig(context.Background(), store.KeyIndexerState, store.IndexerRunning); err != nil {
		t.Fatalf("reset indexer state: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// WriteVideoStub creates a placeholder file with a video extension; scans
// defer probing, so content is irrelevant.
func WriteVideoStub(t *testing.T, path string, size int) {
	t.Helper()
	data := make([]byte, size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write video stub: %v", err)
	}
}
