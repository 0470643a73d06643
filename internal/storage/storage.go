// Package storage provides the key/value persistence of user records: JSON
// payloads under a primary key mirrored to a backup key, recovery from a
// corrupted payload, and quota handling.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
)

var (
	// ErrNotFound is returned by a Backend when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrQuotaExceeded is returned by a Backend when a write does not fit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrStorageFull means a save failed even after dropping the backup.
	ErrStorageFull = errors.New("storage full")
	// ErrCorrupted means both the primary and backup payloads are unreadable.
	ErrCorrupted = errors.New("stored data corrupted")
	// ErrCorruptedNoBackup means the primary payload is unreadable and there is no backup.
	ErrCorruptedNoBackup = errors.New("stored data corrupted and no backup exists")
)

const (
	recordPrefix  = "dados_"
	backupSuffix  = "_backup"
	sessionPrefix = "currentUser:"
	themePrefix   = "theme:"
)

// RecordKey is the key holding a worker's record.
func RecordKey(name string) string {
	return recordPrefix + name
}

// BackupKey is the mirror of key.
func BackupKey(key string) string {
	return key + backupSuffix
}

// SessionKey holds the name logged in on a chat.
func SessionKey(chatID int64) string {
	return fmt.Sprintf("%s%d", sessionPrefix, chatID)
}

// ThemeKey holds the display theme of a chat.
func ThemeKey(chatID int64) string {
	return fmt.Sprintf("%s%d", themePrefix, chatID)
}

// Backend is a string key/value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Change describes one write observed on a Backend.
type Change struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
	Origin  string `json:"origin,omitempty"`
}

// Notifier is implemented by backends that publish their writes.
// Subscribe blocks until ctx is done.
type Notifier interface {
	Subscribe(ctx context.Context, fn func(Change)) error
}

type originKey struct{}

// WithOrigin tags writes made with ctx as coming from origin.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin tag of ctx, if any.
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// LoadResult describes how a payload was read.
type LoadResult struct {
	Found     bool
	Recovered bool
}

// SaveResult describes how a payload was written.
type SaveResult struct {
	BackupDropped bool
}

// Store reads and writes JSON payloads with a backup copy.
type Store struct {
	backend Backend
}

// New creates a Store over backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Load decodes the payload at key into dst. An unreadable primary payload
// falls back to the backup, which is then written back as the primary.
// Found is false when neither key exists.
func (s *Store) Load(ctx context.Context, key string, dst any) (LoadResult, error) {
	raw, err := s.backend.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return LoadResult{}, nil
	case err != nil:
		return LoadResult{}, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dst); err == nil {
		return LoadResult{Found: true}, nil
	}

	logger.Log.Warn().Str("key_hash", logger.HashName(key)).Msg("Primary payload corrupted, trying backup")

	backup, err := s.backend.Get(ctx, BackupKey(key))
	switch {
	case errors.Is(err, ErrNotFound):
		return LoadResult{}, ErrCorruptedNoBackup
	case err != nil:
		return LoadResult{}, fmt.Errorf("failed to read backup of %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(backup), dst); err != nil {
		return LoadResult{}, ErrCorrupted
	}

	if err := s.backend.Set(ctx, key, backup); err != nil {
		logger.Log.Error().Err(err).Str("key_hash", logger.HashName(key)).Msg("Failed to restore primary from backup")
	}
	return LoadResult{Found: true, Recovered: true}, nil
}

// Save encodes v under key and mirrors it to the backup key. When the
// backend is out of space the backup is dropped and the write retried once.
func (s *Store) Save(ctx context.Context, key string, v any) (SaveResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	payload := string(data)

	err = s.backend.Set(ctx, key, payload)
	if err == nil {
		if berr := s.backend.Set(ctx, BackupKey(key), payload); berr != nil {
			logger.Log.Warn().Err(berr).Str("key_hash", logger.HashName(key)).Msg("Failed to write backup")
		}
		return SaveResult{}, nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return SaveResult{}, fmt.Errorf("failed to write %s: %w", key, err)
	}

	logger.Log.Warn().Str("key_hash", logger.HashName(key)).Msg("Storage quota exceeded, dropping backup")
	if derr := s.backend.Delete(ctx, BackupKey(key)); derr != nil && !errors.Is(derr, ErrNotFound) {
		logger.Log.Warn().Err(derr).Msg("Failed to drop backup")
	}
	if err := s.backend.Set(ctx, key, payload); err != nil {
		return SaveResult{BackupDropped: true}, fmt.Errorf("%w: %w", ErrStorageFull, err)
	}
	return SaveResult{BackupDropped: true}, nil
}

// Remove deletes key and its backup.
func (s *Store) Remove(ctx context.Context, key string) error {
	for _, k := range []string{key, BackupKey(key)} {
		if err := s.backend.Delete(ctx, k); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return nil
}

// GetString reads a plain value. ok is false when the key is absent.
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := s.backend.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, true, nil
}

// SetString writes a plain value.
func (s *Store) SetString(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes a plain value. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
