package bot

import (
	tgbot "github.com/go-telegram/bot"
	"gitlab.com/yelinaung/mdfocus-bot/internal/bot/mocks"
)

// TelegramAPI is what the handler cores call: replies, edits, callback
// answers, media downloads and report uploads. Handlers receive the real
// client in production and a mocks.MockBot in tests.
type TelegramAPI = mocks.TelegramAPI

var _ TelegramAPI = (*tgbot.Bot)(nil)
