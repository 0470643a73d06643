// Package bot is the Telegram front end of the productivity tracker.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/config"
	"gitlab.com/yelinaung/mdfocus-bot/internal/gemini"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
)

const (
	pollTimeout     = 30 * time.Second
	downloadTimeout = 60 * time.Second
)

// UserRegistry records the Telegram users that talk to the bot.
type UserRegistry interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

// MediaReader turns voice notes and sheet photos into tracker input.
type MediaReader interface {
	TranscribeVoice(ctx context.Context, audio []byte, mimeType string) (*gemini.VoiceNote, error)
	ReadShiftSheet(ctx context.Context, image []byte, mimeType string) (*gemini.ShiftSheet, error)
}

// Deps are the collaborators of a Bot. Users and Media are optional.
type Deps struct {
	Sessions *session.Manager
	Users    UserRegistry
	Media    MediaReader
}

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot           *bot.Bot
	messageSender TelegramAPI
	cfg           *config.Config
	sessions      *session.Manager
	userRepo      UserRegistry
	geminiClient  MediaReader
	httpClient    *http.Client
	now           func() time.Time

	pendingMu     sync.Mutex
	pendingGoals  map[int64][4]int
	pendingSheets map[int64]*gemini.ShiftSheet

	simMu       sync.Mutex
	simulations map[int64]*simulation
}

func newBot(cfg *config.Config, deps Deps) *Bot {
	b := &Bot{
		cfg:           cfg,
		sessions:      deps.Sessions,
		userRepo:      deps.Users,
		geminiClient:  deps.Media,
		httpClient:    telemetry.HTTPClient(downloadTimeout),
		now:           time.Now,
		pendingGoals:  make(map[int64][4]int),
		pendingSheets: make(map[int64]*gemini.ShiftSheet),
		simulations:   make(map[int64]*simulation),
	}
	if b.sessions != nil {
		b.sessions.OnChange(b.notifyExternalChange)
	}
	return b
}

// New creates a new Bot instance.
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	b := newBot(cfg, deps)

	opts := []bot.Option{
		bot.WithMiddlewares(b.whitelistMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.handleCallback),
		bot.WithHTTPClient(pollTimeout, telemetry.HTTPClient(pollTimeout+10*time.Second)),
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.messageSender = telegramBot
	b.registerHandlers()

	return b, nil
}

// Start runs the reminder loop and polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	go b.startDailyReminderLoop(ctx)

	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

func (b *Bot) registerHandlers() {
	commands := []struct {
		name    string
		handler bot.HandlerFunc
	}{
		{"/start", b.handleStart},
		{"/help", b.handleHelp},
		{"/ajuda", b.handleHelp},
		{"/login", b.handleLogin},
		{"/logout", b.handleLogout},
		{"/meta", b.handleGoal},
		{"/pontos", b.handlePoints},
		{"/corrigir", b.handleCorrect},
		{"/simular", b.handleSimulate},
		{"/painel", b.handleDashboard},
		{"/historico", b.handleHistory},
		{"/relatorio", b.handleReport},
		{"/tema", b.handleTheme},
		{"/obs", b.handleObservation},
	}
	for _, c := range commands {
		b.bot.RegisterHandler(bot.HandlerTypeMessageText, c.name, bot.MatchTypeCommand, c.handler)
	}
}

// whitelistMiddleware checks if the user is whitelisted before processing.
func (b *Bot) whitelistMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		userID := extractUserID(update)
		if userID == 0 {
			return
		}

		username := extractUsername(update)
		logUserAction(userID, update)

		if !b.cfg.IsUserWhitelisted(userID, username) {
			logger.Log.Warn().
				Str("user_hash", logger.HashUserID(userID)).
				Msg("Blocked non-whitelisted user")
			if update.Message != nil {
				_, _ = tgBot.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   msgNotAuthorized,
				})
			}
			return
		}

		if err := b.ensureUserRegistered(ctx, update); err != nil {
			logger.Log.Error().
				Str("user_hash", logger.HashUserID(userID)).
				Err(err).
				Msg("Failed to register user")
		}

		next(ctx, tgBot, update)
	}
}

// logUserAction logs the shape of the user's input without its content.
func logUserAction(userID int64, update *tgmodels.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		event := logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("chat_hash", logger.HashChatID(msg.Chat.ID))

		switch {
		case msg.Voice != nil:
			event = event.Str("type", "voice").Int("duration", msg.Voice.Duration)
		case len(msg.Photo) > 0:
			event = event.Str("type", "photo")
		case msg.Text != "":
			event = event.Str("type", "text").Str("text", logger.SanitizeText(commandName(msg.Text)))
		}

		event.Msg("User input")

	case update.CallbackQuery != nil:
		logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("data", update.CallbackQuery.Data).
			Msg("Callback query")
	}
}

func extractUsername(update *tgmodels.Update) string {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.Username
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.Username
	}
	return ""
}

func extractUserID(update *tgmodels.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

// ensureUserRegistered records the sender in the user registry, when one is
// configured.
func (b *Bot) ensureUserRegistered(ctx context.Context, update *tgmodels.Update) error {
	if b.userRepo == nil {
		return nil
	}

	var from *tgmodels.User
	switch {
	case update.Message != nil && update.Message.From != nil:
		from = update.Message.From
	case update.CallbackQuery != nil:
		from = &update.CallbackQuery.From
	default:
		return nil
	}

	user := &models.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
	if err := b.userRepo.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// defaultHandler routes voice notes, photos and free text.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.defaultHandlerCore(ctx, tgBot, update)
}

func (b *Bot) defaultHandlerCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}

	switch {
	case update.Message.Voice != nil:
		b.handleVoiceCore(ctx, tg, update)
	case len(update.Message.Photo) > 0:
		b.handlePhotoCore(ctx, tg, update)
	case update.Message.Text != "" && !isCommand(update.Message.Text):
		b.handleFreeTextCore(ctx, tg, update)
	default:
		b.reply(ctx, tg, update.Message.Chat.ID, msgUnknownCommand)
	}
}
