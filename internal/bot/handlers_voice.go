package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/gemini"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/observation"
)

const msgVoiceNotConfigured = "🎙️ A leitura de áudio não está configurada. Envie a observação por texto."

// handleVoice handles voice notes.
func (b *Bot) handleVoice(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleVoiceCore(ctx, tgBot, update)
}

// handleVoiceCore transcribes a voice note. Spoken points are registered for
// today and the transcript goes through the observation interpreter.
func (b *Bot) handleVoiceCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.Voice == nil {
		return
	}
	chatID := update.Message.Chat.ID

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Int("duration", update.Message.Voice.Duration).
		Msg("Received voice message")

	if b.geminiClient == nil {
		b.reply(ctx, tg, chatID, msgVoiceNotConfigured)
		return
	}

	sess := b.sessions.Get(chatID)
	if _, err := sess.Record(ctx); err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.reply(ctx, tg, chatID, "🎙️ Processando áudio...")

	audio, err := b.downloadFile(ctx, tg, update.Message.Voice.FileID)
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to download voice file")
		b.reply(ctx, tg, chatID, "❌ Não foi possível baixar o áudio. Tente novamente.")
		return
	}

	note, err := b.geminiClient.TranscribeVoice(ctx, audio, update.Message.Voice.MimeType)
	if err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to transcribe voice note")
		b.sendVoiceError(ctx, tg, chatID, err)
		return
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Int("points", note.Points).
		Float64("confidence", note.Confidence).
		Msg("Voice note transcribed")

	if note.Transcript != "" {
		b.reply(ctx, tg, chatID, fmt.Sprintf("🗣️ Entendi: <i>%s</i>", escapeHTML(note.Transcript)))
	}

	if note.Points > 0 {
		if !b.registerPoints(ctx, tg, chatID, note.Points) {
			return
		}
		res := observation.Parse(note.Transcript, sess.Today())
		if res.Empty() {
			return
		}
	}

	if note.Transcript != "" {
		b.processObservation(ctx, tg, chatID, note.Transcript)
	}
}

func (b *Bot) sendVoiceError(ctx context.Context, tg TelegramAPI, chatID int64, err error) {
	text := "❌ Não foi possível processar o áudio. Tente novamente ou envie por texto."
	switch {
	case errors.Is(err, gemini.ErrTranscribeTimeout):
		text = "⏱️ O processamento do áudio demorou demais. Tente novamente ou envie por texto."
	case errors.Is(err, gemini.ErrEmptyTranscript):
		text = "🔇 Não consegui entender o áudio. Tente falar mais perto do microfone."
	}
	b.reply(ctx, tg, chatID, text)
}
