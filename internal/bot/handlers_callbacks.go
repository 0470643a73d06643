package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

const msgCancelled = "👍 Operação cancelada."

// handleCallback handles the inline confirmation buttons.
func (b *Bot) handleCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCallbackCore(ctx, tgBot, update)
}

func (b *Bot) handleCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}

	chatID := cq.Message.Message.Chat.ID
	messageID := cq.Message.Message.ID

	_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	})

	action, answer, ok := strings.Cut(cq.Data, ":")
	if !ok {
		return
	}

	logger.Log.Debug().
		Str("chat_hash", logger.HashChatID(chatID)).
		Str("action", action).
		Str("answer", answer).
		Msg("Callback received")

	if answer != "yes" {
		b.dropPending(chatID, action)
		b.editMessage(ctx, tg, chatID, messageID, msgCancelled)
		return
	}

	switch action {
	case "logout":
		b.confirmLogout(ctx, tg, chatID, messageID)
	case "clear":
		b.confirmClear(ctx, tg, chatID, messageID)
	case "goal":
		b.confirmGoalTable(ctx, tg, chatID, messageID)
	case "sheet":
		b.confirmSheet(ctx, tg, chatID, messageID)
	case "reset":
		b.confirmReset(ctx, tg, chatID, messageID)
	default:
		logger.Log.Warn().Str("data", cq.Data).Msg("Unknown callback")
	}
}

func (b *Bot) editMessage(ctx context.Context, tg TelegramAPI, chatID int64, messageID int, text string) {
	_, err := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to edit message")
	}
}

func (b *Bot) dropPending(chatID int64, action string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	switch action {
	case "goal":
		delete(b.pendingGoals, chatID)
	case "sheet":
		delete(b.pendingSheets, chatID)
	}
}

func (b *Bot) confirmLogout(ctx context.Context, tg TelegramAPI, chatID int64, messageID int) {
	if err := b.sessions.Get(chatID).Logout(ctx); err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}
	b.editMessage(ctx, tg, chatID, messageID, "👋 Você saiu. Até logo!")
}

func (b *Bot) confirmClear(ctx context.Context, tg TelegramAPI, chatID int64, messageID int) {
	if err := b.sessions.Get(chatID).ClearAll(ctx); err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}
	logger.Log.Info().Str("chat_hash", logger.HashChatID(chatID)).Msg("User data cleared")
	b.editMessage(ctx, tg, chatID, messageID, "🗑️ Todos os seus dados foram apagados. Use /login para começar de novo.")
}

func (b *Bot) confirmReset(ctx context.Context, tg TelegramAPI, chatID int64, messageID int) {
	if err := b.sessions.Get(chatID).Reset(ctx); err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}
	b.editMessage(ctx, tg, chatID, messageID, "♻️ Dados redefinidos. Use /login para criar um novo cadastro.")
}

func (b *Bot) confirmGoalTable(ctx context.Context, tg TelegramAPI, chatID int64, messageID int) {
	b.pendingMu.Lock()
	values, ok := b.pendingGoals[chatID]
	delete(b.pendingGoals, chatID)
	b.pendingMu.Unlock()

	if !ok {
		b.editMessage(ctx, tg, chatID, messageID, "⌛ Esta confirmação expirou.")
		return
	}

	rec, err := b.sessions.Get(chatID).Update(ctx, func(rec *appmodels.UserRecord) error {
		return tracker.ApplyGoalTable(rec, values)
	})
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.editMessage(ctx, tg, chatID, messageID, "✅ "+formatGoalTable(rec))
	b.sendDashboard(ctx, tg, chatID)
}

func (b *Bot) confirmSheet(ctx context.Context, tg TelegramAPI, chatID int64, messageID int) {
	b.pendingMu.Lock()
	sheet, ok := b.pendingSheets[chatID]
	delete(b.pendingSheets, chatID)
	b.pendingMu.Unlock()

	if !ok {
		b.editMessage(ctx, tg, chatID, messageID, "⌛ Esta confirmação expirou.")
		return
	}

	if b.applySheet(ctx, tg, chatID, sheet) {
		b.editMessage(ctx, tg, chatID, messageID, "✅ Folha registrada.")
	}
}
