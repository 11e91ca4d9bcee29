package delivery

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Telegram implements Sender and Resolver on the Telegram bot API.
type Telegram struct {
	api telegramAPI
}

// NewTelegram wraps a bot API client as a delivery target.
func NewTelegram(api telegramAPI) *Telegram {
	return &Telegram{api: api}
}

// Send delivers a text payload to a Telegram chat.
func (t *Telegram) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// ResolveUsername resolves an @username to its numeric chat id.
func (t *Telegram) ResolveUsername(_ context.Context, username string) (int64, error) {
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: username},
	})
	if err != nil {
		return 0, fmt.Errorf("get chat %s: %w", username, err)
	}
	return chat.ID, nil
}
