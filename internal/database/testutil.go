package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
)

// testDatabaseEnv names the PostgreSQL URL used by integration tests.
const testDatabaseEnv = "TEST_DATABASE_URL"

// testTables lists every table in truncation order.
var testTables = []string{"kv_entries", "users"}

var sharedTestPool = sync.OnceValues(func() (*pgxpool.Pool, error) {
	ctx := context.Background()
	pool, err := Connect(ctx, os.Getenv(testDatabaseEnv))
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
})

func testDatabaseURL(t *testing.T) string {
	t.Helper()

	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skip(testDatabaseEnv + " not set, skipping integration test")
	}
	return url
}

// TestPool returns the migrated pool shared by every test in the binary.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testDatabaseURL(t)

	pool, err := sharedTestPool()
	if err != nil {
		t.Fatalf("failed to set up test database: %v", err)
	}
	return pool
}

// TestDB returns a dedicated migrated pool, closed when the test ends.
// Change-feed tests use it so LISTEN does not hold a shared connection.
func TestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	pool, err := Connect(ctx, testDatabaseURL(t))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := RunMigrations(ctx, pool); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return pool
}

// TestTx returns a transaction on the shared pool that is rolled back when
// the test ends, so repository tests need no table cleanup.
//
//	tx := database.TestTx(t)
//	kv := repository.NewPostgresKV(tx, nil)
func TestTx(t *testing.T) PGXDB {
	t.Helper()

	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}

// CleanupTables truncates the key/value and user tables.
func CleanupTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	for _, table := range testTables {
		if _, err := pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// TestSQLite opens a migrated SQLite database in a temporary directory.
func TestSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "mdfocus.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
