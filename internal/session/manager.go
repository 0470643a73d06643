package session

import (
	"context"
	"sync"
	"time"

	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
)

const (
	changeBuffer       = 64
	resubscribeBackoff = 5 * time.Second
)

// ChangeFunc receives updates caused by other sessions.
type ChangeFunc func(ctx context.Context, chatID int64, u Update)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns one Session per chat and keeps them in sync with writes made
// by other sessions. Concurrent writes are not merged: the last write wins.
type Manager struct {
	store *storage.Store
	loc   *time.Location
	now   func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
	onChange ChangeFunc

	changes chan storage.Change
}

// NewManager creates a Manager over store. Dates are computed in loc.
func NewManager(store *storage.Store, loc *time.Location, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		loc:      loc,
		now:      time.Now,
		sessions: make(map[int64]*Session),
		changes:  make(chan storage.Change, changeBuffer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session of chatID, creating it on first use.
func (m *Manager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		s = newSession(chatID, m.store, m.loc, m.now)
		m.sessions[chatID] = s
	}
	return s
}

// OnChange registers the callback for external updates.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Run follows the backend's change feed until ctx is done. Backends without
// a feed leave sessions unsynchronized.
func (m *Manager) Run(ctx context.Context) {
	notifier, ok := m.store.Backend().(storage.Notifier)
	if !ok {
		logger.Log.Info().Msg("Storage backend has no change feed, cross-session sync disabled")
		<-ctx.Done()
		return
	}

	go m.subscribe(ctx, notifier)

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.changes:
			m.dispatch(ctx, c)
		}
	}
}

func (m *Manager) subscribe(ctx context.Context, notifier storage.Notifier) {
	for {
		err := notifier.Subscribe(ctx, m.enqueue)
		if ctx.Err() != nil {
			return
		}
		logger.Log.Warn().Err(err).Msg("Change feed stopped, resubscribing")

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeBackoff):
		}
	}
}

func (m *Manager) enqueue(c storage.Change) {
	select {
	case m.changes <- c:
	default:
		logger.Log.Warn().Str("key_hash", logger.HashName(c.Key)).Msg("Change feed buffer full, dropping change")
	}
}

func (m *Manager) dispatch(ctx context.Context, c storage.Change) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	onChange := m.onChange
	m.mu.Unlock()

	for _, s := range sessions {
		u, ok := s.applyChange(ctx, c)
		if !ok || onChange == nil {
			continue
		}
		onChange(ctx, s.ChatID, u)
	}
}
