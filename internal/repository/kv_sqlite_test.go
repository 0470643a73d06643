package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/database"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
)

func TestSQLiteKV_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := NewSQLiteKV(database.TestSQLite(t))

	_, err := kv.Get(ctx, "dados_Ana")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "dados_Ana", `{"name":"Ana"}`))
	v, err := kv.Get(ctx, "dados_Ana")
	require.NoError(t, err)
	require.Equal(t, `{"name":"Ana"}`, v)

	require.NoError(t, kv.Set(ctx, "dados_Ana", `{"name":"Ana","totalPoints":10}`))
	v, err = kv.Get(ctx, "dados_Ana")
	require.NoError(t, err)
	require.Equal(t, `{"name":"Ana","totalPoints":10}`, v)

	require.NoError(t, kv.Delete(ctx, "dados_Ana"))
	require.ErrorIs(t, kv.Delete(ctx, "dados_Ana"), storage.ErrNotFound)
}

func TestSQLiteKV_StoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := storage.New(NewSQLiteKV(database.TestSQLite(t)))

	rec := &models.UserRecord{Name: "Ana", MonthlyGoal: 45000, TotalPoints: 2500}
	rec.EnsureMaps()
	rec.DailyPoints["2026-03-18"] = 2500

	_, err := store.Save(ctx, storage.RecordKey("Ana"), rec)
	require.NoError(t, err)

	var got models.UserRecord
	lr, err := store.Load(ctx, storage.RecordKey("Ana"), &got)
	require.NoError(t, err)
	require.True(t, lr.Found)
	require.Equal(t, 2500, got.DailyPoints["2026-03-18"])

	require.NoError(t, store.Remove(ctx, storage.RecordKey("Ana")))
	lr, err = store.Load(ctx, storage.RecordKey("Ana"), &got)
	require.NoError(t, err)
	require.False(t, lr.Found)
}

func TestSQLiteKV_Subscribe(t *testing.T) {
	t.Parallel()

	kv := NewSQLiteKV(database.TestSQLite(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		changes []storage.Change
	)
	go func() {
		_ = kv.Subscribe(ctx, func(c storage.Change) {
			mu.Lock()
			changes = append(changes, c)
			mu.Unlock()
		})
	}()
	require.Eventually(t, func() bool { return kv.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, kv.Set(storage.WithOrigin(context.Background(), "s1"), "k", "v"))
	require.NoError(t, kv.Delete(context.Background(), "k"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []storage.Change{
		{Key: "k", Origin: "s1"},
		{Key: "k", Deleted: true},
	}, changes)
}

func TestMapSQLiteError(t *testing.T) {
	t.Parallel()

	full := errors.New("database or disk is full (13)")
	require.ErrorIs(t, mapSQLiteError(full), storage.ErrQuotaExceeded)

	other := errors.New("constraint failed")
	require.Equal(t, other, mapSQLiteError(other))
}
