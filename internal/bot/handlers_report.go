package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/progress"
)

const msgReportFailed = "❌ Não foi possível gerar o relatório. Tente novamente."

// handleReport handles /relatorio.
func (b *Bot) handleReport(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleReportCore(ctx, tgBot, update)
}

func (b *Bot) handleReportCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.sendReport(ctx, tg, update.Message.Chat.ID)
}

// sendReport sends the monthly movements as CSV, the progress chart and a
// text summary with insights and the best days.
func (b *Bot) sendReport(ctx context.Context, tg TelegramAPI, chatID int64) {
	sess := b.sessions.Get(chatID)
	rec, dash, err := sess.Dashboard(ctx)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}
	today := sess.Today()

	csvData, err := GenerateMovementsCSV(progress.Movements(rec, today))
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to generate report CSV")
		b.reply(ctx, tg, chatID, msgReportFailed)
		return
	}

	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:    chatID,
		Document:  &models.InputFileUpload{Filename: reportFilename(today), Data: bytes.NewReader(csvData)},
		Caption:   fmt.Sprintf("📄 <b>Relatório de %s</b> (%s)", escapeHTML(rec.Name), monthLabel(today)),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send report document")
		b.reply(ctx, tg, chatID, msgReportFailed)
		return
	}

	chartData, err := GenerateProgressChart(rec, dash)
	switch {
	case errors.Is(err, ErrNothingToChart):
	case err != nil:
		logger.Log.Error().Err(err).Msg("Failed to generate progress chart")
	default:
		_, err = tg.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileUpload{Filename: chartFilename(today), Data: bytes.NewReader(chartData)},
			Caption: fmt.Sprintf("📊 %s de %s pts", formatInt(rec.TotalPoints), formatInt(rec.MonthlyGoal)),
		})
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to send progress chart")
		}
	}

	b.reply(ctx, tg, chatID, formatReportSummary(rec, progress.ComputeInsights(rec, today)))

	logger.Log.Info().
		Str("chat_hash", logger.HashChatID(chatID)).
		Str("month", monthLabel(today)).
		Msg("Report sent")
}

func formatReportSummary(rec *appmodels.UserRecord, ins progress.Insights) string {
	parts := []string{formatInsights(ins)}
	if ranking := formatRanking(progress.Ranking(rec.DailyPoints, appmodels.RankingSize)); ranking != "" {
		parts = append(parts, ranking)
	}
	if len(rec.BonusHistory) > 0 {
		total := 0
		for _, e := range rec.BonusHistory {
			total += e.Amount
		}
		parts = append(parts, fmt.Sprintf("🎁 Bônus no mês: %d lançamento(s), %s pts", len(rec.BonusHistory), formatInt(total)))
	}
	return strings.Join(parts, "\n\n")
}
