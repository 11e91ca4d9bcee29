package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newswatch_bot/internal/model"
)

const (
	cmdRetry  = "retry"
	cmdRmDest = "rmdestination"
)

// sendHistory replies with the record history, attaching a retry button to
// records that have failed deliveries.
func (b *Bot) sendHistory(chatID int64, records []model.MatchRecord) {
	msg := tgbotapi.NewMessage(chatID, FormatRecordList(records))
	msg.DisableWebPagePreview = true

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, rec := range records {
		if rec.Status == model.StatusProcessed && hasFailedOutcome(rec) {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("Retry M%d", rec.ID),
					fmt.Sprintf("%s:%d", cmdRetry, rec.ID),
				),
			))
		}
	}
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send history", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return
	}

	action := parts[0]
	idStr := parts[1]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdRetry:
		b.handleRetry(ctx, chatID, idStr)
	case "rmdest_confirm":
		d, err := b.store.GetDestination(ctx, id)
		if err != nil || d.OwnerID != chatID {
			b.reply(chatID, fmt.Sprintf("Destination D%d not found.", id))
			return
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Remove D%d \"%s\"? This cannot be undone.", id, d.Name))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, remove", fmt.Sprintf("%s:%d", cmdRmDest, id)),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
			),
		)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send removal confirmation", "error", err)
		}
	case cmdRmDest:
		b.handleRmDestination(ctx, chatID, idStr)
	}
}
