package bot

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

// simulation is the pending revert of a chat's simulated dashboards.
type simulation struct {
	timer      *time.Timer
	messageIDs []int
}

// handleSimulate handles /simular <total>.
func (b *Bot) handleSimulate(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleSimulateCore(ctx, tgBot, update)
}

func (b *Bot) handleSimulateCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := extractCommandArgs(update.Message.Text, "/simular")
	if args == "" {
		b.reply(ctx, tg, chatID, usage("/simular 30000"))
		return
	}
	total, err := tracker.ParsePoints(args)
	if err != nil || total < 0 {
		b.replyError(ctx, tg, chatID, tracker.ErrInvalidPoints)
		return
	}

	sess := b.sessions.Get(chatID)
	rec, err := sess.Record(ctx)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	dash := tracker.Simulate(rec, total, sess.Today())
	msg, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      formatDashboard(rec, dash, total, sess.Theme(ctx), true),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send simulation")
		return
	}

	b.scheduleRevert(tg, chatID, msg.ID)
}

// scheduleRevert restores the real dashboard on every simulated message of
// the chat once the revert delay passes. A later simulation pushes the
// revert back.
func (b *Bot) scheduleRevert(tg TelegramAPI, chatID int64, messageID int) {
	b.simMu.Lock()
	defer b.simMu.Unlock()

	sim := &simulation{}
	if prev, ok := b.simulations[chatID]; ok {
		prev.timer.Stop()
		sim.messageIDs = append(sim.messageIDs, prev.messageIDs...)
	}
	sim.messageIDs = append(sim.messageIDs, messageID)
	b.simulations[chatID] = sim
	sim.timer = time.AfterFunc(b.cfg.SimulationRevert, func() {
		b.revertSimulation(tg, chatID, sim)
	})
}

func (b *Bot) revertSimulation(tg TelegramAPI, chatID int64, sim *simulation) {
	b.simMu.Lock()
	if b.simulations[chatID] != sim {
		b.simMu.Unlock()
		return
	}
	delete(b.simulations, chatID)
	ids := sim.messageIDs
	b.simMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text, err := b.dashboardText(ctx, b.sessions.Get(chatID))
	if err != nil {
		text = "⏪ Simulação encerrada."
	}
	for _, id := range ids {
		_, err := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: id,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			logger.Log.Warn().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to revert simulation")
		}
	}
}
