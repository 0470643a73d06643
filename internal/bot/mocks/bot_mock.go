// Package mocks provides a recording Telegram client and update builders
// for handler tests.
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramAPI is the subset of the Telegram client the handlers call.
// It lives here so the bot package and its mock share one definition.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// SentMessage is one reply, dashboard or confirmation prompt.
type SentMessage struct {
	ID          int
	ChatID      any
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup models.ReplyMarkup
}

// EditedMessage is one in-place edit, such as a simulation revert or an
// answered confirmation.
type EditedMessage struct {
	ChatID      any
	MessageID   int
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup models.ReplyMarkup
}

// AnsweredCallback is one acknowledged inline-keyboard tap.
type AnsweredCallback struct {
	CallbackQueryID string
	Text            string
}

// SentDocument is one uploaded report.
type SentDocument struct {
	ChatID    any
	Filename  string
	Caption   string
	ParseMode models.ParseMode
}

// SentPhoto is one uploaded progress chart.
type SentPhoto struct {
	ChatID   any
	Filename string
	Caption  string
	Size     int
}

const firstMessageID = 1000

var _ TelegramAPI = (*MockBot)(nil)

// MockBot records every call and fails on demand through the *Error fields.
type MockBot struct {
	mu     sync.RWMutex
	nextID int

	SentMessages      []SentMessage
	EditedMessages    []EditedMessage
	AnsweredCallbacks []AnsweredCallback
	SentDocuments     []SentDocument
	SentPhotos        []SentPhoto

	SendMessageError  error
	EditMessageError  error
	GetFileError      error
	SendDocumentError error
	SendPhotoError    error

	// FileToReturn overrides the file handed out by GetFile.
	FileToReturn *models.File
	// FileDownloadLinkToReturn is usually an httptest server URL.
	FileDownloadLinkToReturn string
}

// NewMockBot returns an empty recorder.
func NewMockBot() *MockBot {
	return &MockBot{nextID: firstMessageID}
}

func (m *MockBot) newMessage(chatID any) models.Message {
	id := m.nextID
	m.nextID++
	return models.Message{ID: id, Chat: models.Chat{ID: chatIDToInt64(chatID)}}
}

func (m *MockBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendMessageError != nil {
		return nil, m.SendMessageError
	}

	msg := m.newMessage(params.ChatID)
	msg.Text = params.Text
	m.SentMessages = append(m.SentMessages, SentMessage{
		ID:          msg.ID,
		ChatID:      params.ChatID,
		Text:        params.Text,
		ParseMode:   params.ParseMode,
		ReplyMarkup: params.ReplyMarkup,
	})
	return &msg, nil
}

func (m *MockBot) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EditMessageError != nil {
		return nil, m.EditMessageError
	}

	m.EditedMessages = append(m.EditedMessages, EditedMessage{
		ChatID:      params.ChatID,
		MessageID:   params.MessageID,
		Text:        params.Text,
		ParseMode:   params.ParseMode,
		ReplyMarkup: params.ReplyMarkup,
	})
	return &models.Message{
		ID:   params.MessageID,
		Chat: models.Chat{ID: chatIDToInt64(params.ChatID)},
		Text: params.Text,
	}, nil
}

func (m *MockBot) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AnsweredCallbacks = append(m.AnsweredCallbacks, AnsweredCallback{
		CallbackQueryID: params.CallbackQueryID,
		Text:            params.Text,
	})
	return true, nil
}

func (m *MockBot) GetFile(_ context.Context, params *bot.GetFileParams) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.GetFileError != nil:
		return nil, m.GetFileError
	case m.FileToReturn != nil:
		return m.FileToReturn, nil
	}

	file := &models.File{FilePath: "voice/file_0.oga"}
	if params != nil {
		file.FileID = params.FileID
	}
	return file, nil
}

func (m *MockBot) FileDownloadLink(f *models.File) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FileDownloadLinkToReturn != "" {
		return m.FileDownloadLinkToReturn
	}
	path := ""
	if f != nil {
		path = f.FilePath
	}
	return "https://api.telegram.org/file/bot-token/" + path
}

func (m *MockBot) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendDocumentError != nil {
		return nil, m.SendDocumentError
	}

	doc := SentDocument{ChatID: params.ChatID, Caption: params.Caption, ParseMode: params.ParseMode}
	if upload, ok := params.Document.(*models.InputFileUpload); ok {
		doc.Filename = upload.Filename
	}
	m.SentDocuments = append(m.SentDocuments, doc)

	msg := m.newMessage(params.ChatID)
	msg.Caption = params.Caption
	msg.Document = &models.Document{FileID: "document-file-id", FileName: doc.Filename}
	return &msg, nil
}

func (m *MockBot) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendPhotoError != nil {
		return nil, m.SendPhotoError
	}

	photo := SentPhoto{ChatID: params.ChatID, Caption: params.Caption}
	if upload, ok := params.Photo.(*models.InputFileUpload); ok {
		photo.Filename = upload.Filename
		if upload.Data != nil {
			if n, err := io.Copy(io.Discard, upload.Data); err == nil {
				photo.Size = int(n)
			}
		}
	}
	m.SentPhotos = append(m.SentPhotos, photo)

	msg := m.newMessage(params.ChatID)
	msg.Caption = params.Caption
	return &msg, nil
}

// Reset forgets recorded calls and injected errors. Message IDs keep
// counting so edits never target a stale prompt.
func (m *MockBot) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SentMessages = nil
	m.EditedMessages = nil
	m.AnsweredCallbacks = nil
	m.SentDocuments = nil
	m.SentPhotos = nil
	m.SendMessageError = nil
	m.EditMessageError = nil
	m.GetFileError = nil
	m.SendDocumentError = nil
	m.SendPhotoError = nil
}

func last[T any](items []T) *T {
	if len(items) == 0 {
		return nil
	}
	return &items[len(items)-1]
}

// LastSentMessage returns the latest message, or nil.
func (m *MockBot) LastSentMessage() *SentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return last(m.SentMessages)
}

// LastEditedMessage returns the latest edit, or nil.
func (m *MockBot) LastEditedMessage() *EditedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return last(m.EditedMessages)
}

// LastSentDocument returns the latest document, or nil.
func (m *MockBot) LastSentDocument() *SentDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return last(m.SentDocuments)
}

func (m *MockBot) SentMessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentMessages)
}

func (m *MockBot) EditedMessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.EditedMessages)
}

func (m *MockBot) SentDocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentDocuments)
}

func (m *MockBot) SentPhotoCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentPhotos)
}

// MessagesTo returns the texts sent to chatID in order. Sync and reminder
// tests use it to tell chats apart.
func (m *MockBot) MessagesTo(chatID int64) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var texts []string
	for _, msg := range m.SentMessages {
		if chatIDToInt64(msg.ChatID) == chatID {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

// chatIDToInt64 reads the numeric chat ID; @channel names map to 0.
func chatIDToInt64(chatID any) int64 {
	switch v := chatID.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
