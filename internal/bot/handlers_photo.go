package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/gemini"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/observation"
	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

const msgPhotoNotConfigured = "📷 A leitura de fotos não está configurada. Registre com <code>/pontos</code>."

// handlePhoto handles photos of the shift productivity sheet.
func (b *Bot) handlePhoto(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handlePhotoCore(ctx, tgBot, update)
}

// handlePhotoCore reads the counters from a sheet photo and asks the worker
// to confirm them before anything is saved.
func (b *Bot) handlePhotoCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || len(update.Message.Photo) == 0 {
		return
	}
	chatID := update.Message.Chat.ID

	if b.geminiClient == nil {
		b.reply(ctx, tg, chatID, msgPhotoNotConfigured)
		return
	}

	if _, err := b.sessions.Get(chatID).Record(ctx); err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.reply(ctx, tg, chatID, "📷 Lendo a folha...")

	// Telegram lists sizes smallest first.
	photo := update.Message.Photo[len(update.Message.Photo)-1]
	image, err := b.downloadFile(ctx, tg, photo.FileID)
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to download photo")
		b.reply(ctx, tg, chatID, "❌ Não foi possível baixar a foto. Tente novamente.")
		return
	}

	sheet, err := b.geminiClient.ReadShiftSheet(ctx, image, "image/jpeg")
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to read shift sheet")
		b.sendSheetError(ctx, tg, chatID, err)
		return
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Int("points", sheet.Points).
		Int("boxes", sheet.Boxes).
		Int("errors", sheet.Errors).
		Float64("confidence", sheet.Confidence).
		Msg("Shift sheet read")

	b.pendingMu.Lock()
	b.pendingSheets[chatID] = sheet
	b.pendingMu.Unlock()

	b.replyWithMarkup(ctx, tg, chatID, formatSheet(sheet),
		confirmKeyboard("✅ Registrar", cbSheetYes, "Cancelar", cbSheetNo))
}

func (b *Bot) sendSheetError(ctx context.Context, tg TelegramAPI, chatID int64, err error) {
	text := "❌ Não foi possível ler a folha. Tente outra foto ou registre com <code>/pontos</code>."
	switch {
	case errors.Is(err, gemini.ErrReadSheetTimeout):
		text = "⏱️ A leitura da folha demorou demais. Tente novamente."
	case errors.Is(err, gemini.ErrNoSheetData):
		text = "🔍 Não encontrei pontos, caixas ou erros nesta foto."
	}
	b.reply(ctx, tg, chatID, text)
}

func formatSheet(s *gemini.ShiftSheet) string {
	var sb strings.Builder
	sb.WriteString("📋 <b>Folha lida</b>\n")
	if s.HasPoints() {
		fmt.Fprintf(&sb, "\n• Pontos: <b>%s</b>", formatInt(s.Points))
	}
	if s.Boxes > 0 {
		fmt.Fprintf(&sb, "\n• Caixas: %s", formatInt(s.Boxes))
	}
	if s.Errors > 0 {
		fmt.Fprintf(&sb, "\n• Erros: %d", s.Errors)
	}
	sb.WriteString("\n\nConfirma o registro para hoje?")
	return sb.String()
}

// applySheet registers a confirmed sheet in a single save: the points for
// today and the counters as a note.
func (b *Bot) applySheet(ctx context.Context, tg TelegramAPI, chatID int64, sheet *gemini.ShiftSheet) bool {
	sess := b.sessions.Get(chatID)
	today := sess.Today()
	note := sheet.Observation()

	var out tracker.Outcome
	_, err := sess.Update(ctx, func(rec *appmodels.UserRecord) error {
		if sheet.HasPoints() {
			if err := tracker.Register(rec, sheet.Points, today); err != nil {
				return err
			}
		}
		if note != "" {
			out = tracker.ApplyCommands(rec, note, observation.Parse(note, today), today)
		}
		return nil
	})
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return false
	}

	if sheet.HasPoints() {
		telemetry.RecordPointsRegistered(ctx)
	}
	if len(out.Signals) > 0 {
		b.reply(ctx, tg, chatID, formatSignals(out.Signals))
	}
	b.sendDashboard(ctx, tg, chatID)
	return true
}
