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
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
	"gitlab.com/yelinaung/mdfocus-bot/internal/tracker"
)

const (
	msgNotAuthorized  = "⛔ Desculpe, você não tem permissão para usar este bot."
	msgUnknownCommand = "Não entendi. Use /ajuda para ver os comandos disponíveis."
	msgLoginFirst     = "🔑 Faça login primeiro: <code>/login SeuNome</code>"
	msgGenericError   = "❌ Algo deu errado. Tente novamente."
	msgStorageFull    = "💾 Armazenamento cheio. Não foi possível salvar seus dados."
	msgCorrupted      = "⚠️ Seus dados salvos estão corrompidos e não puderam ser recuperados. Deseja redefini-los?"
	msgSynced         = "🔄 Dados sincronizados"
	msgLoggedOutSync  = "🔄 Seus dados foram apagados em outra sessão. Faça login novamente com /login."
)

const msgPrivacyNotice = `🔒 <b>Aviso de privacidade</b>

Seus dados (nome, pontos, observações e metas) ficam guardados apenas para calcular seu progresso.
Você pode apagar tudo a qualquer momento escrevendo <code>limpar dados</code>.`

const msgHelp = `📚 <b>Comandos disponíveis</b>

<b>Acesso</b>
• <code>/login Nome [300|400|500|600]</code> entrar ou criar cadastro
• <code>/logout</code> sair

<b>Pontos</b>
• <code>/pontos 2500</code> registrar os pontos de hoje
• <code>/corrigir 2400</code> corrigir o último registro (mesmo dia)
• <code>/meta 400</code> trocar a faixa de meta
• <code>/simular 30000</code> ver o painel com um total hipotético

<b>Acompanhamento</b>
• <code>/painel</code> progresso do mês
• <code>/historico</code> últimos registros
• <code>/relatorio</code> relatório com CSV e gráfico
• <code>/tema</code> alternar tema claro/escuro

<b>Observações</b>
Envie um texto, um áudio ou use <code>/obs texto</code>. Exemplos:
• <code>ajudei no recebimento</code> (+100 pontos)
• <code>outro setor 300</code>
• <code>folga 20/03/2026</code> ou <code>remover folga 20/03/2026</code>
• <code>atestado 3 dias</code> ou <code>atestado de 18/03 a 20/03</code>
• <code>caixas (120) erros (2)</code>
• <code>valor do ponto R$ 0,05</code>
• <code>meta alterada (45000, 55000, 65000, 90000)</code>
• <code>limpar dados</code>

Uma foto da folha de produtividade também pode ser enviada para leitura automática.`

// Callback data.
const (
	cbLogoutYes = "logout:yes"
	cbLogoutNo  = "logout:no"
	cbClearYes  = "clear:yes"
	cbClearNo   = "clear:no"
	cbGoalYes   = "goal:yes"
	cbGoalNo    = "goal:no"
	cbSheetYes  = "sheet:yes"
	cbSheetNo   = "sheet:no"
	cbResetYes  = "reset:yes"
	cbResetNo   = "reset:no"
)

func confirmKeyboard(yesText, yesData, noText, noData string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: yesText, CallbackData: yesData},
				{Text: noText, CallbackData: noData},
			},
		},
	}
}

// extractCommandArgs strips the /command prefix (and optional @botname suffix)
// from a message and returns the remaining trimmed arguments.
func extractCommandArgs(text, command string) string {
	args := strings.TrimSpace(strings.TrimPrefix(text, command))
	if strings.HasPrefix(args, "@") {
		if spaceIdx := strings.Index(args, " "); spaceIdx != -1 {
			args = strings.TrimSpace(args[spaceIdx:])
		} else {
			args = ""
		}
	}
	return args
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// commandName returns the leading /command of text, or a placeholder for
// free text so notes never reach the logs.
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "<note>"
	}
	if i := strings.IndexAny(text, " @\n"); i != -1 {
		return text[:i]
	}
	return text
}

// escapeHTML escapes HTML special characters for safe interpolation in Telegram HTML messages.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func (b *Bot) reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	b.replyWithMarkup(ctx, tg, chatID, text, nil)
}

func (b *Bot) replyWithMarkup(ctx context.Context, tg TelegramAPI, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := tg.SendMessage(ctx, params); err != nil {
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Failed to send message")
	}
}

// replyError tells the user why an operation failed.
func (b *Bot) replyError(ctx context.Context, tg TelegramAPI, chatID int64, err error) {
	if msg := tracker.Message(err); msg != "" {
		b.reply(ctx, tg, chatID, msg)
		return
	}

	switch {
	case errors.Is(err, session.ErrNoUser):
		b.reply(ctx, tg, chatID, msgLoginFirst)
	case errors.Is(err, storage.ErrStorageFull), errors.Is(err, storage.ErrQuotaExceeded):
		b.reply(ctx, tg, chatID, msgStorageFull)
	case errors.Is(err, storage.ErrCorrupted), errors.Is(err, storage.ErrCorruptedNoBackup):
		b.replyWithMarkup(ctx, tg, chatID, msgCorrupted,
			confirmKeyboard("🗑️ Redefinir", cbResetYes, "Cancelar", cbResetNo))
	default:
		logger.Log.Error().Err(err).Str("chat_hash", logger.HashChatID(chatID)).Msg("Operation failed")
		b.reply(ctx, tg, chatID, msgGenericError)
	}
}

func tierList() string {
	keys := appmodels.TierKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func usage(example string) string {
	return fmt.Sprintf("❌ Uso: <code>%s</code>", escapeHTML(example))
}
