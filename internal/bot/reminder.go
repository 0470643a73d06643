package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/calendar"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
)

const (
	// ReminderCheckInterval is how often the reminder loop checks whether to send reminders.
	ReminderCheckInterval = 30 * time.Minute
	// ReminderTimeout is the maximum time a single reminder check can take.
	ReminderTimeout = 2 * time.Minute
)

// startDailyReminderLoop reminds logged-in workers who have not registered
// points on a business day.
func (b *Bot) startDailyReminderLoop(ctx context.Context) {
	if !b.cfg.DailyReminderEnabled {
		logger.Log.Info().Msg("Daily reminder is disabled")
		return
	}

	loc := b.cfg.Location()
	logger.Log.Info().
		Int("hour", b.cfg.ReminderHour).
		Str("timezone", loc.String()).
		Msg("Daily reminder loop started")

	reminded := make(map[int64]string)
	ticker := time.NewTicker(ReminderCheckInterval)
	defer ticker.Stop()

	select {
	case <-ctx.Done():
		logger.Log.Info().Msg("Daily reminder loop stopped")
		return
	default:
	}

	b.checkAndSendReminders(ctx, reminded, b.now().In(loc))

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info().Msg("Daily reminder loop stopped")
			return
		case <-ticker.C:
			b.checkAndSendReminders(ctx, reminded, b.now().In(loc))
		}
	}
}

// reminderChats lists the private chats that may receive reminders. A
// private chat ID equals the user ID.
func (b *Bot) reminderChats(ctx context.Context) ([]int64, error) {
	if b.userRepo == nil {
		return b.cfg.WhitelistedUserIDs, nil
	}
	users, err := b.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if b.cfg.IsUserWhitelisted(u.ID, u.Username) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// checkAndSendReminders sends at most one reminder per chat per day. The
// reminded map holds the date each chat was last reminded.
func (b *Bot) checkAndSendReminders(ctx context.Context, reminded map[int64]string, now time.Time) {
	if now.Hour() != b.cfg.ReminderHour {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, ReminderTimeout)
	defer cancel()

	today := calendar.FromTime(now)
	todayStr := today.ISO()

	for chatID, dateStr := range reminded {
		if dateStr != todayStr {
			delete(reminded, chatID)
		}
	}

	chats, err := b.reminderChats(checkCtx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to fetch chats for daily reminder")
		return
	}

	for _, chatID := range chats {
		if reminded[chatID] == todayStr {
			continue
		}

		rec, err := b.sessions.Get(chatID).Record(checkCtx)
		if err != nil {
			if !errors.Is(err, session.ErrNoUser) {
				logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to load record for reminder")
			}
			continue
		}
		if !progress.IsBusinessDay(today, progress.ExcludedSet(rec.ExcludedDays)) {
			continue
		}
		if _, ok := rec.DailyPoints[todayStr]; ok {
			continue
		}

		text := fmt.Sprintf(
			"⏰ Oi, %s! Você ainda não registrou os pontos de hoje.\n\nEnvie <code>/pontos 2500</code> para registrar.",
			escapeHTML(rec.Name),
		)
		_, err = b.messageSender.SendMessage(checkCtx, &tgbot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: tgmodels.ParseModeHTML,
		})
		if err != nil {
			logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to send daily reminder")
			continue
		}

		reminded[chatID] = todayStr
		logger.Log.Debug().Str("chat_hash", logger.HashChatID(chatID)).Msg("Sent daily reminder")
	}
}
