package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/database"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
)

func TestPostgresKV_CRUD(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	kv := NewPostgresKV(tx, nil)

	_, err := kv.Get(ctx, "dados_Ana")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Set(storage.WithOrigin(ctx, "s1"), "dados_Ana", `{"name":"Ana"}`))
	v, err := kv.Get(ctx, "dados_Ana")
	require.NoError(t, err)
	require.Equal(t, `{"name":"Ana"}`, v)

	var origin string
	require.NoError(t, tx.QueryRow(ctx, `SELECT origin FROM kv_entries WHERE key = 'dados_Ana'`).Scan(&origin))
	require.Equal(t, "s1", origin)

	require.NoError(t, kv.Set(ctx, "dados_Ana", `{"name":"Ana","totalPoints":1}`))
	v, err = kv.Get(ctx, "dados_Ana")
	require.NoError(t, err)
	require.Equal(t, `{"name":"Ana","totalPoints":1}`, v)

	require.NoError(t, kv.Delete(ctx, "dados_Ana"))
	require.ErrorIs(t, kv.Delete(ctx, "dados_Ana"), storage.ErrNotFound)
}

func TestPostgresKV_SubscribeWithoutPool(t *testing.T) {
	t.Parallel()

	err := NewPostgresKV(nil, nil).Subscribe(context.Background(), func(storage.Change) {})
	require.ErrorIs(t, err, ErrNoListener)
}

func TestPostgresKV_Subscribe(t *testing.T) {
	pool := database.TestDB(t)
	database.CleanupTables(t, pool)

	kv := NewPostgresKV(pool, pool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		changes []storage.Change
	)
	done := make(chan error, 1)
	go func() {
		done <- kv.Subscribe(ctx, func(c storage.Change) {
			mu.Lock()
			changes = append(changes, c)
			mu.Unlock()
		})
	}()

	// LISTEN is issued asynchronously; keep writing until the first change arrives.
	require.Eventually(t, func() bool {
		_ = kv.Set(storage.WithOrigin(context.Background(), "s1"), "dados_Ana", "{}")
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	require.Equal(t, storage.Change{Key: "dados_Ana", Origin: "s1"}, changes[0])
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

// notifyFailingDB accepts every write but rejects pg_notify.
type notifyFailingDB struct {
	database.PGXDB

	mu    sync.Mutex
	execs []string
}

func (f *notifyFailingDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)

	switch {
	case strings.Contains(sql, "pg_notify"):
		return pgconn.CommandTag{}, errors.New("notification queue is full")
	case strings.Contains(sql, "DELETE"):
		return pgconn.NewCommandTag("DELETE 1"), nil
	default:
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
}

func (f *notifyFailingDB) notifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, sql := range f.execs {
		if strings.Contains(sql, "pg_notify") {
			n++
		}
	}
	return n
}

func TestPostgresKV_NotifyFailureKeepsWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set and delete succeed", func(t *testing.T) {
		t.Parallel()
		db := &notifyFailingDB{}
		kv := NewPostgresKV(db, nil)

		require.NoError(t, kv.Set(ctx, "dados_Ana", `{"name":"Ana"}`))
		require.NoError(t, kv.Delete(ctx, "dados_Ana"))
		require.Equal(t, 2, db.notifyCount())
	})

	t.Run("store refreshes backup", func(t *testing.T) {
		t.Parallel()
		db := &notifyFailingDB{}
		store := storage.New(NewPostgresKV(db, nil))

		res, err := store.Save(ctx, "dados_Ana", map[string]string{"name": "Ana"})
		require.NoError(t, err)
		require.False(t, res.BackupDropped)
		require.Equal(t, 2, db.notifyCount())
		require.Len(t, db.execs, 4)
	})
}

func TestMapPgError(t *testing.T) {
	t.Parallel()

	for _, code := range []string{pgDiskFull, pgProgramLimitExceeded} {
		err := mapPgError(&pgconn.PgError{Code: code, Message: "no space"})
		require.ErrorIs(t, err, storage.ErrQuotaExceeded)
	}

	other := &pgconn.PgError{Code: "23505"}
	require.Equal(t, error(other), mapPgError(other))

	plain := errors.New("boom")
	require.Equal(t, plain, mapPgError(plain))
}
