package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"gitlab.com/yelinaung/mdfocus-bot/internal/database"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
)

// PostgreSQL error codes treated as "storage full".
const (
	pgDiskFull             = "53100"
	pgProgramLimitExceeded = "54000"
)

// ErrNoListener is returned by Subscribe when no pool was given for LISTEN.
var ErrNoListener = errors.New("change feed requires a connection pool")

// PostgresKV is a storage.Backend over the kv_entries table. Writes are
// announced with NOTIFY so other processes can follow them.
type PostgresKV struct {
	db   database.PGXDB
	pool *pgxpool.Pool
}

// NewPostgresKV creates a PostgresKV. pool is used for LISTEN and may be nil
// when no change feed is needed.
func NewPostgresKV(db database.PGXDB, pool *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{db: db, pool: pool}
}

// Get returns the value at key.
func (r *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, mapPgError(err))
	}
	return value, nil
}

// Set upserts value at key and notifies listeners. The write stands even
// when the notification cannot be sent.
func (r *PostgresKV) Set(ctx context.Context, key, value string) error {
	origin := storage.OriginFrom(ctx)
	_, err := r.db.Exec(ctx, `
		INSERT INTO kv_entries (key, value, origin, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			origin = EXCLUDED.origin,
			updated_at = NOW()
	`, key, value, origin)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, mapPgError(err))
	}
	r.notify(ctx, storage.Change{Key: key, Origin: origin})
	return nil
}

// Delete removes key and notifies listeners.
func (r *PostgresKV) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	r.notify(ctx, storage.Change{Key: key, Deleted: true, Origin: storage.OriginFrom(ctx)})
	return nil
}

// notify announces c on the change channel. Listeners that miss it keep
// their cached copy until their next write or login.
func (r *PostgresKV) notify(ctx context.Context, c storage.Change) {
	payload, err := json.Marshal(c)
	if err == nil {
		_, err = r.db.Exec(ctx, `SELECT pg_notify($1, $2)`, database.KVNotifyChannel, string(payload))
	}
	if err != nil {
		logger.Log.Warn().Err(err).Bool("deleted", c.Deleted).Msg("Failed to announce storage change")
	}
}

// Subscribe listens on the change channel until ctx is done. It holds one
// pooled connection for its whole lifetime.
func (r *PostgresKV) Subscribe(ctx context.Context, fn func(storage.Change)) error {
	if r.pool == nil {
		return ErrNoListener
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{database.KVNotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		var c storage.Change
		if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
			logger.Log.Warn().Err(err).Msg("Ignoring malformed change notification")
			continue
		}
		fn(c)
	}
}

// mapPgError turns out-of-space errors into storage.ErrQuotaExceeded.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDiskFull, pgProgramLimitExceeded:
			return fmt.Errorf("%w: %s", storage.ErrQuotaExceeded, pgErr.Message)
		}
	}
	return err
}

var (
	_ storage.Backend  = (*PostgresKV)(nil)
	_ storage.Notifier = (*PostgresKV)(nil)
)
