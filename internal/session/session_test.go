package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var wednesdayNoon = time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend(0)
	return NewManager(storage.New(backend), time.UTC, WithClock(fixedClock(wednesdayNoon))), backend
}

func TestSession_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, backend := newTestManager(t)
	s := m.Get(1)

	_, err := s.CurrentUser(ctx)
	require.ErrorIs(t, err, ErrNoUser)

	rec, first, err := s.Login(ctx, "Maria", models.Tier500)
	require.NoError(t, err)
	require.True(t, first)
	require.Equal(t, 65000, rec.MonthlyGoal)

	name, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "Maria", name)

	v, err := backend.Get(ctx, "currentUser:1")
	require.NoError(t, err)
	require.Equal(t, "Maria", v)

	_, err = backend.Get(ctx, "dados_Maria_backup")
	require.NoError(t, err)

	other := m.Get(2)
	rec, first, err = other.Login(ctx, "Maria", models.Tier300)
	require.NoError(t, err)
	require.False(t, first)
	require.Equal(t, models.Tier500, rec.SelectedGoalKey)
}

func TestSession_LoginValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, backend := newTestManager(t)
	s := m.Get(1)

	_, _, err := s.Login(ctx, "Jo", "")
	require.ErrorIs(t, err, tracker.ErrInvalidName)

	_, _, err = s.Login(ctx, "Maria", "450")
	require.ErrorIs(t, err, tracker.ErrInvalidTier)
	require.Zero(t, backend.Keys())
}

func TestSession_PersistsAcrossManagers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := storage.NewMemoryBackend(0)
	store := storage.New(backend)

	m1 := NewManager(store, time.UTC, WithClock(fixedClock(wednesdayNoon)))
	_, _, err := m1.Get(7).Login(ctx, "Ana", "")
	require.NoError(t, err)

	m2 := NewManager(store, time.UTC, WithClock(fixedClock(wednesdayNoon)))
	rec, err := m2.Get(7).Record(ctx)
	require.NoError(t, err)
	require.Equal(t, "Ana", rec.Name)
	require.Equal(t, models.Tier300, rec.SelectedGoalKey)
}

func TestSession_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, _ := newTestManager(t)
	s := m.Get(1)
	_, _, err := s.Login(ctx, "Maria", "")
	require.NoError(t, err)

	rec, err := s.Update(ctx, func(rec *models.UserRecord) error {
		return tracker.Register(rec, 2500, s.Today())
	})
	require.NoError(t, err)
	require.Equal(t, 2500, rec.TotalPoints)

	_, err = s.Update(ctx, func(rec *models.UserRecord) error {
		rec.TotalPoints = 999999
		return tracker.Register(rec, 2500, s.Today())
	})
	require.ErrorIs(t, err, tracker.ErrAlreadyRegistered)

	rec, err = s.Record(ctx)
	require.NoError(t, err)
	require.Equal(t, 2500, rec.TotalPoints, "failed update must not leak into the cache")

	rec.TotalPoints = 1
	again, err := s.Record(ctx)
	require.NoError(t, err)
	require.Equal(t, 2500, again.TotalPoints, "Record returns a copy")
}

func TestSession_UpdateKeepsCacheOnSaveFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := storage.NewMemoryBackend(2000)
	m := NewManager(storage.New(backend), time.UTC, WithClock(fixedClock(wednesdayNoon)))
	s := m.Get(1)
	_, _, err := s.Login(ctx, "Maria", "")
	require.NoError(t, err)

	_, err = s.Update(ctx, func(rec *models.UserRecord) error {
		for i := range 200 {
			rec.ExcludedDays = append(rec.ExcludedDays, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("02/01/2006"))
		}
		return nil
	})
	require.ErrorIs(t, err, storage.ErrStorageFull)

	rec, err := s.Record(ctx)
	require.NoError(t, err)
	require.Empty(t, rec.ExcludedDays)
}

func TestSession_MonthRollover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := storage.NewMemoryBackend(0)
	store := storage.New(backend)

	march := NewManager(store, time.UTC, WithClock(fixedClock(wednesdayNoon))).Get(1)
	_, _, err := march.Login(ctx, "Maria", "")
	require.NoError(t, err)
	_, err = march.Update(ctx, func(rec *models.UserRecord) error {
		rec.ExcludedDays = append(rec.ExcludedDays, "20/03/2026")
		return tracker.Register(rec, 2500, march.Today())
	})
	require.NoError(t, err)

	april := NewManager(store, time.UTC, WithClock(fixedClock(wednesdayNoon.AddDate(0, 0, 14)))).Get(1)
	rec, err := april.Record(ctx)
	require.NoError(t, err)
	require.Zero(t, rec.TotalPoints)
	require.Empty(t, rec.DailyPoints)
	require.Equal(t, []string{"20/03/2026"}, rec.ExcludedDays)
	require.Equal(t, "2026-04-01", rec.LastCalculationDate)
}

func TestSession_Corruption(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("recovers from backup", func(t *testing.T) {
		t.Parallel()
		m, backend := newTestManager(t)
		s := m.Get(1)
		_, _, err := s.Login(ctx, "Maria", "")
		require.NoError(t, err)
		require.NoError(t, backend.Set(ctx, "dados_Maria", "{broken"))

		fresh := NewManager(storage.New(backend), time.UTC, WithClock(fixedClock(wednesdayNoon))).Get(1)
		rec, err := fresh.Record(ctx)
		require.NoError(t, err)
		require.Equal(t, "Maria", rec.Name)
	})

	t.Run("both copies broken then reset", func(t *testing.T) {
		t.Parallel()
		m, backend := newTestManager(t)
		s := m.Get(1)
		_, _, err := s.Login(ctx, "Maria", "")
		require.NoError(t, err)
		require.NoError(t, backend.Set(ctx, "dados_Maria", "{broken"))
		require.NoError(t, backend.Set(ctx, "dados_Maria_backup", "{broken"))

		fresh := NewManager(storage.New(backend), time.UTC, WithClock(fixedClock(wednesdayNoon))).Get(1)
		_, err = fresh.Record(ctx)
		require.ErrorIs(t, err, storage.ErrCorrupted)

		require.NoError(t, fresh.Reset(ctx))
		_, err = fresh.Record(ctx)
		require.ErrorIs(t, err, ErrNoUser)
		require.Zero(t, backend.Keys())
	})

	t.Run("broken record found at login", func(t *testing.T) {
		t.Parallel()
		m, backend := newTestManager(t)
		s := m.Get(1)
		_, _, err := s.Login(ctx, "Maria", "")
		require.NoError(t, err)
		require.NoError(t, s.Logout(ctx))
		require.NoError(t, backend.Set(ctx, "dados_Maria", "{broken"))
		require.NoError(t, backend.Set(ctx, "dados_Maria_backup", "{broken"))

		_, _, err = s.Login(ctx, "Maria", "")
		require.ErrorIs(t, err, storage.ErrCorrupted)

		require.NoError(t, s.Reset(ctx))
		require.Zero(t, backend.Keys())

		_, firstAccess, err := s.Login(ctx, "Maria", "")
		require.NoError(t, err)
		require.True(t, firstAccess)
	})

	t.Run("reset keeps another worker logged in", func(t *testing.T) {
		t.Parallel()
		m, backend := newTestManager(t)
		other := m.Get(2)
		_, _, err := other.Login(ctx, "Maria", "")
		require.NoError(t, err)
		require.NoError(t, backend.Set(ctx, "dados_Maria", "{broken"))
		require.NoError(t, backend.Set(ctx, "dados_Maria_backup", "{broken"))

		s := m.Get(1)
		_, _, err = s.Login(ctx, "Joao", "")
		require.NoError(t, err)
		_, _, err = s.Login(ctx, "Maria", "")
		require.ErrorIs(t, err, storage.ErrCorrupted)

		require.NoError(t, s.Reset(ctx))
		name, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		require.Equal(t, "Joao", name)

		_, err = backend.Get(ctx, "dados_Maria")
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = backend.Get(ctx, "dados_Joao")
		require.NoError(t, err)
	})

	t.Run("nothing to reset", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestManager(t)
		require.ErrorIs(t, m.Get(1).Reset(ctx), ErrNoUser)
	})
}

func TestSession_LogoutAndClearAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, backend := newTestManager(t)
	s := m.Get(1)
	_, _, err := s.Login(ctx, "Maria", "")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))
	_, err = s.CurrentUser(ctx)
	require.ErrorIs(t, err, ErrNoUser)
	_, err = backend.Get(ctx, "dados_Maria")
	require.NoError(t, err, "logout keeps the record")

	_, _, err = s.Login(ctx, "Maria", "")
	require.NoError(t, err)
	_, err = s.ToggleTheme(ctx)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))
	require.Zero(t, backend.Keys())
	require.NoError(t, s.ClearAll(ctx))
}

func TestSession_Theme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, backend := newTestManager(t)
	s := m.Get(1)
	require.Equal(t, models.ThemeLight, s.Theme(ctx))

	theme, err := s.ToggleTheme(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ThemeDark, theme)
	require.Equal(t, models.ThemeDark, s.Theme(ctx))

	theme, err = s.ToggleTheme(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ThemeLight, theme)

	require.NoError(t, backend.Set(ctx, "theme:1", "purple"))
	require.Equal(t, models.ThemeLight, s.Theme(ctx))
}

type recorded struct {
	chatID int64
	update Update
}

func TestManager_Sync(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		updates []recorded
	)
	m.OnChange(func(_ context.Context, chatID int64, u Update) {
		mu.Lock()
		updates = append(updates, recorded{chatID: chatID, update: u})
		mu.Unlock()
	})
	go m.Run(ctx)

	a, b, c := m.Get(1), m.Get(2), m.Get(3)
	_, _, err := a.Login(ctx, "Maria", "")
	require.NoError(t, err)
	_, _, err = b.Login(ctx, "Maria", "")
	require.NoError(t, err)
	_, _, err = c.Login(ctx, "Joao", "")
	require.NoError(t, err)

	_, err = a.Update(ctx, func(rec *models.UserRecord) error {
		return tracker.Register(rec, 3000, a.Today())
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, err := b.Record(ctx)
		return err == nil && rec.TotalPoints == 3000
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, u := range updates {
			if u.update.Record != nil && u.update.Record.TotalPoints == 3000 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	for _, u := range updates {
		require.Equal(t, int64(2), u.chatID, "only the other session of the same worker is notified")
		require.False(t, u.update.LoggedOut)
	}
	mu.Unlock()

	require.NoError(t, a.ClearAll(ctx))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := updates[len(updates)-1]
		return last.chatID == 2 && last.update.LoggedOut
	}, time.Second, 5*time.Millisecond)

	_, err = b.CurrentUser(ctx)
	require.ErrorIs(t, err, ErrNoUser)
}

func TestManager_RunWithoutNotifier(t *testing.T) {
	t.Parallel()

	m := NewManager(storage.New(plainBackend{storage.NewMemoryBackend(0)}), time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// plainBackend hides the change feed of the wrapped backend.
type plainBackend struct {
	inner *storage.MemoryBackend
}

func (p plainBackend) Get(ctx context.Context, key string) (string, error) {
	return p.inner.Get(ctx, key)
}

func (p plainBackend) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, key, value)
}

func (p plainBackend) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, key)
}
