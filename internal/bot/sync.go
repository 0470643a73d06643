package bot

import (
	"context"

	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
)

// notifyExternalChange tells a chat that its worker's record was changed
// from another chat.
func (b *Bot) notifyExternalChange(ctx context.Context, chatID int64, u session.Update) {
	if b.messageSender == nil {
		return
	}

	logger.Log.Debug().
		Str("chat_hash", logger.HashChatID(chatID)).
		Bool("logged_out", u.LoggedOut).
		Msg("Record changed in another session")

	if u.LoggedOut {
		b.reply(ctx, b.messageSender, chatID, msgLoggedOutSync)
		return
	}

	theme := b.sessions.Get(chatID).Theme(ctx)
	b.reply(ctx, b.messageSender, chatID,
		msgSynced+"\n\n"+formatDashboard(u.Record, u.Dashboard, u.Record.TotalPoints, theme, false))
}
