package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/observation"
	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

// errNothingToSave aborts a session update that left the record unchanged.
var errNothingToSave = errors.New("nothing to save")

// Observation outcomes reported to telemetry.
const (
	outcomeApplied        = "applied"
	outcomeNothingMatched = "nothing-matched"
	outcomeClearRequested = "clear-requested"
	outcomeRejected       = "rejected"
	outcomeReport         = "report"
)

// handleObservation handles /obs <text>.
func (b *Bot) handleObservation(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleObservationCore(ctx, tgBot, update)
}

func (b *Bot) handleObservationCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := extractCommandArgs(update.Message.Text, "/obs")
	if text == "" {
		b.reply(ctx, tg, chatID, usage("/obs ajudei no recebimento"))
		return
	}
	b.processObservation(ctx, tg, chatID, text)
}

// handleFreeTextCore treats a plain message as an observation note.
func (b *Bot) handleFreeTextCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}
	b.processObservation(ctx, tg, update.Message.Chat.ID, text)
}

// processObservation interprets a note and applies its commands to the
// worker's record. Wiping data and replacing the goal table wait for an
// inline confirmation.
func (b *Bot) processObservation(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	text = appmodels.TruncateRunes(text, appmodels.MaxObservationLength)
	sess := b.sessions.Get(chatID)

	if _, err := sess.Record(ctx); err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	if observation.IsReportRequest(text) {
		telemetry.RecordObservation(ctx, outcomeReport)
		b.sendReport(ctx, tg, chatID)
		return
	}

	today := sess.Today()
	res := observation.Parse(text, today)

	var out tracker.Outcome
	_, err := sess.Update(ctx, func(rec *appmodels.UserRecord) error {
		out = tracker.ApplyCommands(rec, text, res, today)
		if !out.Mutated {
			return errNothingToSave
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNothingToSave) {
		telemetry.RecordObservation(ctx, outcomeRejected)
		b.replyError(ctx, tg, chatID, err)
		return
	}

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Str("note", logger.SanitizeNote(text)).
		Bool("mutated", out.Mutated).
		Int("bonus", out.BonusApplied).
		Msg("Observation processed")

	switch {
	case out.ClearRequested:
		telemetry.RecordObservation(ctx, outcomeClearRequested)
		b.replyWithMarkup(ctx, tg, chatID,
			"🗑️ Tem certeza que deseja <b>apagar todos os seus dados</b>? Esta ação não pode ser desfeita.",
			confirmKeyboard("Sim, apagar", cbClearYes, "Cancelar", cbClearNo))
		return
	case res.Empty():
		telemetry.RecordObservation(ctx, outcomeNothingMatched)
	default:
		telemetry.RecordObservation(ctx, outcomeApplied)
	}

	if len(out.Signals) > 0 {
		b.reply(ctx, tg, chatID, formatSignals(out.Signals))
	}

	if out.PendingGoalTable != nil {
		b.askGoalTableConfirmation(ctx, tg, chatID, *out.PendingGoalTable)
	}

	if out.Mutated {
		b.sendDashboard(ctx, tg, chatID)
	}
}

func (b *Bot) askGoalTableConfirmation(ctx context.Context, tg TelegramAPI, chatID int64, values [4]int) {
	b.pendingMu.Lock()
	b.pendingGoals[chatID] = values
	b.pendingMu.Unlock()

	var sb strings.Builder
	sb.WriteString("🎯 Confirmar nova tabela de metas?\n")
	for i, k := range appmodels.TierKeys() {
		fmt.Fprintf(&sb, "\n• %s: %s pts", k, formatInt(values[i]))
	}
	b.replyWithMarkup(ctx, tg, chatID, sb.String(),
		confirmKeyboard("Confirmar", cbGoalYes, "Cancelar", cbGoalNo))
}
