package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/mdfocus-bot/internal/bot/mocks"
	"gitlab.com/yelinaung/mdfocus-bot/internal/config"
	"gitlab.com/yelinaung/mdfocus-bot/internal/gemini"
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
)

const (
	testChatID = int64(12345)
	testUserID = int64(12345)
)

// Wednesday, March 18 2026.
var wednesdayNoon = time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC)

type fakeMedia struct {
	mu    sync.Mutex
	note  *gemini.VoiceNote
	sheet *gemini.ShiftSheet
	err   error
	calls int
}

func (f *fakeMedia) TranscribeVoice(_ context.Context, _ []byte, _ string) (*gemini.VoiceNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.note, nil
}

func (f *fakeMedia) ReadShiftSheet(_ context.Context, _ []byte, _ string) (*gemini.ShiftSheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sheet, nil
}

func testConfig() *config.Config {
	return &config.Config{
		TelegramBotToken:   "test-token",
		WhitelistedUserIDs: []int64{testUserID},
		Timezone:           "UTC",
		ReminderHour:       17,
		SimulationRevert:   50 * time.Millisecond,
	}
}

func newTestManager(backend *storage.MemoryBackend) *session.Manager {
	return session.NewManager(storage.New(backend), time.UTC,
		session.WithClock(func() time.Time { return wednesdayNoon }))
}

// setupTestBot creates a Bot over in-memory storage with a fixed clock.
func setupTestBot(t *testing.T, deps ...Deps) (*Bot, *mocks.MockBot) {
	t.Helper()

	d := Deps{}
	if len(deps) > 0 {
		d = deps[0]
	}
	if d.Sessions == nil {
		d.Sessions = newTestManager(storage.NewMemoryBackend(0))
	}

	b := newBot(testConfig(), d)
	b.now = func() time.Time { return wednesdayNoon }
	mockBot := mocks.NewMockBot()
	b.messageSender = mockBot
	return b, mockBot
}

// login signs name in on chatID and clears the recorded messages.
func login(t *testing.T, b *Bot, mockBot *mocks.MockBot, chatID int64, name string) {
	t.Helper()
	b.handleLoginCore(context.Background(), mockBot, mocks.CommandUpdate(chatID, chatID, "/login "+name))
	_, err := b.sessions.Get(chatID).CurrentUser(context.Background())
	require.NoError(t, err)
	mockBot.Reset()
}

func allText(mockBot *mocks.MockBot, chatID int64) string {
	return strings.Join(mockBot.MessagesTo(chatID), "\n")
}
