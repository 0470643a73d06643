package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	appmodels "gitlab.com/yelinaung/mdfocus-bot/internal/models"
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

// formatGreeting returns a greeting suffix with the user's name.
func formatGreeting(firstName string) string {
	if firstName == "" {
		return ""
	}
	return ", " + escapeHTML(firstName)
}

// handleStart handles the /start command.
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStartCore(ctx, tgBot, update)
}

func (b *Bot) handleStartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	firstName := ""
	if update.Message.From != nil {
		firstName = update.Message.From.FirstName
	}

	text := fmt.Sprintf(`👋 Olá%s!

Eu acompanho sua produtividade e a meta mensal de pontos.

<b>Para começar:</b>
• Entre com <code>/login SeuNome</code> (opcional: faixa %s)
• Registre os pontos do dia com <code>/pontos 2500</code>
• Veja seu progresso com /painel

Use /ajuda para ver todos os comandos.`, formatGreeting(firstName), tierList())

	b.reply(ctx, tg, update.Message.Chat.ID, text)
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelpCore(ctx, tgBot, update)
}

func (b *Bot) handleHelpCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.reply(ctx, tg, update.Message.Chat.ID, msgHelp)
}

// handleLogin handles /login <name> [tier].
func (b *Bot) handleLogin(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleLoginCore(ctx, tgBot, update)
}

func (b *Bot) handleLoginCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := strings.Fields(extractCommandArgs(update.Message.Text, "/login"))
	if len(args) == 0 || len(args) > 2 {
		b.reply(ctx, tg, chatID, usage("/login Nome [300|400|500|600]"))
		return
	}

	var tier appmodels.TierKey
	if len(args) == 2 {
		tier = appmodels.TierKey(args[1])
	}

	sess := b.sessions.Get(chatID)
	rec, firstAccess, err := sess.Login(ctx, args[0], tier)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	if firstAccess {
		b.reply(ctx, tg, chatID, msgPrivacyNotice)
		b.reply(ctx, tg, chatID, fmt.Sprintf("✅ Cadastro criado! Bem-vinda(o), <b>%s</b>. Meta do mês: <b>%s</b> pts.",
			escapeHTML(rec.Name), formatInt(rec.MonthlyGoal)))
	} else {
		b.reply(ctx, tg, chatID, fmt.Sprintf("✅ Bem-vinda(o) de volta, <b>%s</b>!", escapeHTML(rec.Name)))
	}
	b.sendDashboard(ctx, tg, chatID)
}

// handleLogout asks for confirmation before signing out.
func (b *Bot) handleLogout(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleLogoutCore(ctx, tgBot, update)
}

func (b *Bot) handleLogoutCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	name, err := b.sessions.Get(chatID).CurrentUser(ctx)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.replyWithMarkup(ctx, tg, chatID,
		fmt.Sprintf("🚪 Deseja sair da conta de <b>%s</b>? Seus dados continuam salvos.", escapeHTML(name)),
		confirmKeyboard("Sim, sair", cbLogoutYes, "Cancelar", cbLogoutNo))
}

// handleGoal handles /meta <tier>.
func (b *Bot) handleGoal(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleGoalCore(ctx, tgBot, update)
}

func (b *Bot) handleGoalCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	sess := b.sessions.Get(chatID)

	args := extractCommandArgs(update.Message.Text, "/meta")
	if args == "" {
		rec, err := sess.Record(ctx)
		if err != nil {
			b.replyError(ctx, tg, chatID, err)
			return
		}
		b.reply(ctx, tg, chatID, formatGoalTable(rec))
		return
	}

	rec, err := sess.Update(ctx, func(rec *appmodels.UserRecord) error {
		return tracker.SelectTier(rec, appmodels.TierKey(args))
	})
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.reply(ctx, tg, chatID, fmt.Sprintf("🎯 Faixa %s selecionada. Nova meta: <b>%s</b> pts.",
		rec.SelectedGoalKey, formatInt(rec.MonthlyGoal)))
	b.sendDashboard(ctx, tg, chatID)
}

func formatGoalTable(rec *appmodels.UserRecord) string {
	var sb strings.Builder
	sb.WriteString("🎯 <b>Faixas de meta</b>\n")
	for _, k := range appmodels.TierKeys() {
		v, _ := rec.TierValue(k)
		marker := ""
		if k == rec.SelectedGoalKey {
			marker = " ⬅️"
		}
		fmt.Fprintf(&sb, "\n• %s: %s pts%s", k, formatInt(v), marker)
	}
	sb.WriteString("\n\nTroque com <code>/meta 400</code>.")
	return sb.String()
}

// handlePoints handles /pontos <n>.
func (b *Bot) handlePoints(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handlePointsCore(ctx, tgBot, update)
}

func (b *Bot) handlePointsCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := extractCommandArgs(update.Message.Text, "/pontos")
	if args == "" {
		b.reply(ctx, tg, chatID, usage("/pontos 2500"))
		return
	}
	points, err := tracker.ParsePoints(args)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.registerPoints(ctx, tg, chatID, points)
}

func (b *Bot) registerPoints(ctx context.Context, tg TelegramAPI, chatID int64, points int) bool {
	sess := b.sessions.Get(chatID)
	_, err := sess.Update(ctx, func(rec *appmodels.UserRecord) error {
		return tracker.Register(rec, points, sess.Today())
	})
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return false
	}

	telemetry.RecordPointsRegistered(ctx)
	logger.Log.Info().Str("chat_hash", logger.HashChatID(chatID)).Int("points", points).Msg("Points registered")

	b.reply(ctx, tg, chatID, fmt.Sprintf("✅ <b>%s</b> pontos registrados para hoje.", formatInt(points)))
	b.sendDashboard(ctx, tg, chatID)
	return true
}

// handleCorrect handles /corrigir <n>.
func (b *Bot) handleCorrect(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCorrectCore(ctx, tgBot, update)
}

func (b *Bot) handleCorrectCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := extractCommandArgs(update.Message.Text, "/corrigir")
	if args == "" {
		b.reply(ctx, tg, chatID, usage("/corrigir 2400"))
		return
	}
	value, err := tracker.ParsePoints(args)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	sess := b.sessions.Get(chatID)
	var delta int
	_, err = sess.Update(ctx, func(rec *appmodels.UserRecord) error {
		var cerr error
		delta, cerr = tracker.CorrectLatest(rec, value, sess.Today())
		return cerr
	})
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	b.reply(ctx, tg, chatID, fmt.Sprintf("✏️ Registro corrigido para <b>%s</b> pts (%+d).", formatInt(value), delta))
	b.sendDashboard(ctx, tg, chatID)
}

// handleDashboard handles /painel.
func (b *Bot) handleDashboard(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDashboardCore(ctx, tgBot, update)
}

func (b *Bot) handleDashboardCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.sendDashboard(ctx, tg, update.Message.Chat.ID)
}

// dashboardText renders the live dashboard of the chat's worker.
func (b *Bot) dashboardText(ctx context.Context, sess *session.Session) (string, error) {
	rec, dash, err := sess.Dashboard(ctx)
	if err != nil {
		return "", err
	}
	return formatDashboard(rec, dash, rec.TotalPoints, sess.Theme(ctx), false), nil
}

func (b *Bot) sendDashboard(ctx context.Context, tg TelegramAPI, chatID int64) {
	text, err := b.dashboardText(ctx, b.sessions.Get(chatID))
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}
	b.reply(ctx, tg, chatID, text)
}

// handleHistory handles /historico.
func (b *Bot) handleHistory(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHistoryCore(ctx, tgBot, update)
}

func (b *Bot) handleHistoryCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	rec, err := b.sessions.Get(chatID).Record(ctx)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}
	b.reply(ctx, tg, chatID, formatHistory(rec))
}

// handleTheme handles /tema.
func (b *Bot) handleTheme(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleThemeCore(ctx, tgBot, update)
}

func (b *Bot) handleThemeCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	theme, err := b.sessions.Get(chatID).ToggleTheme(ctx)
	if err != nil {
		b.replyError(ctx, tg, chatID, err)
		return
	}

	label := "☀️ claro"
	if theme == appmodels.ThemeDark {
		label = "🌙 escuro"
	}
	b.reply(ctx, tg, chatID, fmt.Sprintf("🎨 Tema %s ativado.\n%s", label, progressBar(60, theme)))
}
