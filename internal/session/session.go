// Package session keeps the per-chat login state and the cached record of
// the worker logged in on that chat.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

// ErrNoUser is returned when no worker is logged in on the chat.
var ErrNoUser = errors.New("no user logged in")

// Update is delivered when another session changed or removed this
// session's record.
type Update struct {
	Name      string
	Record    *models.UserRecord
	Dashboard progress.Dashboard
	LoggedOut bool
}

// Session is the state of one chat.
type Session struct {
	ID     string
	ChatID int64

	store *storage.Store
	loc   *time.Location
	now   func() time.Time

	mu     sync.Mutex
	name   string
	loaded bool
	record *models.UserRecord

	// unreadable names the last record that failed to decode on this chat.
	unreadable string
}

func newSession(chatID int64, store *storage.Store, loc *time.Location, now func() time.Time) *Session {
	return &Session{
		ID:     uuid.NewString(),
		ChatID: chatID,
		store:  store,
		loc:    loc,
		now:    now,
	}
}

func (s *Session) origin(ctx context.Context) context.Context {
	return storage.WithOrigin(ctx, s.ID)
}

// Today returns the current date in the configured zone.
func (s *Session) Today() calendar.Date {
	return calendar.FromTime(s.now().In(s.loc))
}

// CurrentUser returns the name logged in on the chat.
func (s *Session) CurrentUser(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserLocked(ctx)
}

func (s *Session) currentUserLocked(ctx context.Context) (string, error) {
	if s.loaded {
		if s.name == "" {
			return "", ErrNoUser
		}
		return s.name, nil
	}

	name, ok, err := s.store.GetString(ctx, storage.SessionKey(s.ChatID))
	if err != nil {
		return "", err
	}
	s.loaded = true
	if !ok || name == "" {
		return "", ErrNoUser
	}
	s.name = name
	return name, nil
}

// Login signs name in on the chat. A first access creates and persists a
// new record with the given tier; an existing record is loaded as is.
func (s *Session) Login(ctx context.Context, name string, tier models.TierKey) (*models.UserRecord, bool, error) {
	if err := tracker.ValidateName(name); err != nil {
		return nil, false, err
	}
	if tier == "" {
		tier = models.DefaultTier
	}
	if err := tracker.ValidateTier(tier); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.loadLocked(ctx, name)
	firstAccess := errors.Is(err, ErrNoUser)
	switch {
	case firstAccess:
		rec, err = tracker.NewRecord(name, tier, s.Today())
		if err != nil {
			return nil, false, err
		}
		if err := s.saveLocked(ctx, name, rec); err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	}

	if err := s.store.SetString(s.origin(ctx), storage.SessionKey(s.ChatID), name); err != nil {
		return nil, false, err
	}
	s.name, s.loaded, s.record = name, true, rec

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(s.ChatID)).
		Str("name_hash", logger.HashName(name)).
		Bool("first_access", firstAccess).
		Msg("Worker logged in")

	return rec.Clone(), firstAccess, nil
}

// Record returns a copy of the current record, loading it on first use and
// resetting the month's points when the month has turned.
func (s *Session) Record(ctx context.Context) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.recordLocked(ctx)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Session) recordLocked(ctx context.Context) (*models.UserRecord, error) {
	name, err := s.currentUserLocked(ctx)
	if err != nil {
		return nil, err
	}

	if s.record == nil {
		rec, err := s.loadLocked(ctx, name)
		if errors.Is(err, ErrNoUser) {
			// The record was removed elsewhere; drop the stale login.
			s.forgetLocked()
			_ = s.store.Delete(s.origin(ctx), storage.SessionKey(s.ChatID))
			return nil, ErrNoUser
		}
		if err != nil {
			return nil, err
		}
		s.record = rec
	}

	if s.record.LastCalculationDate != s.Today().ISO() {
		next := s.record.Clone()
		if tracker.RollOverMonth(next, s.Today()) {
			logger.Log.Info().Str("name_hash", logger.HashName(name)).Msg("Month rolled over, points reset")
		}
		if err := s.saveLocked(ctx, name, next); err != nil {
			return nil, err
		}
		s.record = next
	}

	return s.record, nil
}

func (s *Session) loadLocked(ctx context.Context, name string) (*models.UserRecord, error) {
	var rec models.UserRecord
	res, err := s.store.Load(s.origin(ctx), storage.RecordKey(name), &rec)
	if err != nil {
		if errors.Is(err, storage.ErrCorrupted) || errors.Is(err, storage.ErrCorruptedNoBackup) {
			telemetry.RecordRecovery(ctx, "corrupted")
			s.unreadable = name
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if !res.Found {
		return nil, ErrNoUser
	}
	if s.unreadable == name {
		s.unreadable = ""
	}
	if res.Recovered {
		telemetry.RecordRecovery(ctx, "backup")
		logger.Log.Warn().Str("name_hash", logger.HashName(name)).Msg("Record restored from backup")
	}
	rec.EnsureMaps()
	return &rec, nil
}

func (s *Session) saveLocked(ctx context.Context, name string, rec *models.UserRecord) error {
	rec.Sanitize()
	res, err := s.store.Save(s.origin(ctx), storage.RecordKey(name), rec)
	if res.BackupDropped {
		telemetry.RecordRecovery(ctx, "backup-dropped")
	}
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Update applies fn to a copy of the record and persists it. The cached
// record is replaced only when the save succeeds.
func (s *Session) Update(ctx context.Context, fn func(rec *models.UserRecord) error) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.recordLocked(ctx)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.saveLocked(ctx, s.name, next); err != nil {
		return nil, err
	}
	s.record = next
	return next.Clone(), nil
}

// Dashboard computes the live dashboard of the current record.
func (s *Session) Dashboard(ctx context.Context) (*models.UserRecord, progress.Dashboard, error) {
	rec, err := s.Record(ctx)
	if err != nil {
		return nil, progress.Dashboard{}, err
	}
	return rec, tracker.Dashboard(rec, s.Today()), nil
}

// Logout signs the worker out of this chat. The record is kept.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(s.origin(ctx), storage.SessionKey(s.ChatID)); err != nil {
		return err
	}
	s.forgetLocked()
	return nil
}

// Reset discards the record that last failed to load on this chat, or the
// current worker's record when none did. The chat is logged out when it was
// signed in as that worker.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentUserLocked(ctx)
	if err != nil && !errors.Is(err, ErrNoUser) {
		return err
	}
	name := s.unreadable
	if name == "" {
		name = current
	}
	if name == "" {
		return ErrNoUser
	}

	if err := s.store.Remove(s.origin(ctx), storage.RecordKey(name)); err != nil {
		return err
	}
	if current == name {
		if err := s.store.Delete(s.origin(ctx), storage.SessionKey(s.ChatID)); err != nil {
			return err
		}
		s.forgetLocked()
	}
	s.unreadable = ""
	telemetry.RecordRecovery(ctx, "reset")
	logger.Log.Warn().
		Str("chat_hash", logger.HashChatID(s.ChatID)).
		Str("name_hash", logger.HashName(name)).
		Msg("Unreadable record reset")
	return nil
}

// ClearAll wipes the worker's record with its backup, the chat login and
// the chat theme.
func (s *Session) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	octx := s.origin(ctx)
	if name, err := s.currentUserLocked(ctx); err == nil {
		if err := s.store.Remove(octx, storage.RecordKey(name)); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrNoUser) {
		return err
	}
	for _, key := range []string{storage.SessionKey(s.ChatID), storage.ThemeKey(s.ChatID)} {
		if err := s.store.Delete(octx, key); err != nil {
			return err
		}
	}
	s.forgetLocked()
	return nil
}

func (s *Session) forgetLocked() {
	s.name, s.loaded, s.record = "", true, nil
}

// Theme returns the chat's display theme.
func (s *Session) Theme(ctx context.Context) models.Theme {
	v, ok, err := s.store.GetString(ctx, storage.ThemeKey(s.ChatID))
	if err != nil || !ok || models.Theme(v) != models.ThemeDark {
		return models.ThemeLight
	}
	return models.ThemeDark
}

// ToggleTheme flips and persists the chat's display theme.
func (s *Session) ToggleTheme(ctx context.Context) (models.Theme, error) {
	next := models.ThemeDark
	if s.Theme(ctx) == models.ThemeDark {
		next = models.ThemeLight
	}
	if err := s.store.SetString(s.origin(ctx), storage.ThemeKey(s.ChatID), string(next)); err != nil {
		return s.Theme(ctx), err
	}
	return next, nil
}

// applyChange replaces the cached record after a write by another session.
// ok is false when the change does not concern this session.
func (s *Session) applyChange(ctx context.Context, c storage.Change) (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Origin == s.ID || s.name == "" || c.Key != storage.RecordKey(s.name) {
		return Update{}, false
	}

	name := s.name
	if c.Deleted {
		s.forgetLocked()
		return Update{Name: name, LoggedOut: true}, true
	}

	rec, err := s.loadLocked(ctx, name)
	if err != nil {
		logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(s.ChatID)).Msg("Failed to reload record after external change")
		return Update{}, false
	}
	s.record = rec
	return Update{
		Name:      name,
		Record:    rec.Clone(),
		Dashboard: tracker.Dashboard(rec, s.Today()),
	}, true
}
