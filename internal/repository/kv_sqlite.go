package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/mdfocus-bot/internal/database"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteKV is a storage.Backend over a local SQLite file. Changes are
// published to in-process subscribers only.
type SQLiteKV struct {
	storage.Hub

	db *gorm.DB
}

// NewSQLiteKV creates a SQLiteKV over a database opened with database.OpenSQLite.
func NewSQLiteKV(db *gorm.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

// Get returns the value at key.
func (r *SQLiteKV) Get(ctx context.Context, key string) (string, error) {
	var entry database.KVEntry
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value, nil
}

// Set upserts value at key.
func (r *SQLiteKV) Set(ctx context.Context, key, value string) error {
	entry := database.KVEntry{
		Key:       key,
		Value:     value,
		Origin:    storage.OriginFrom(ctx),
		UpdatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "origin", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, mapSQLiteError(err))
	}

	r.Publish(storage.Change{Key: key, Origin: entry.Origin})
	return nil
}

// Delete removes key.
func (r *SQLiteKV) Delete(ctx context.Context, key string) error {
	res := r.db.WithContext(ctx).Where("key = ?", key).Delete(&database.KVEntry{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}

	r.Publish(storage.Change{Key: key, Deleted: true, Origin: storage.OriginFrom(ctx)})
	return nil
}

// mapSQLiteError turns SQLITE_FULL into storage.ErrQuotaExceeded.
func mapSQLiteError(err error) error {
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %w", storage.ErrQuotaExceeded, err)
	}
	return err
}

var (
	_ storage.Backend  = (*SQLiteKV)(nil)
	_ storage.Notifier = (*SQLiteKV)(nil)
)
