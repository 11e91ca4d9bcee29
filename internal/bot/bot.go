// Package bot implements the Telegram command surface: rule/channel/
// destination management, the conversational configuration flows, and
// diagnostics.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newswatch_bot/internal/config"
	"newswatch_bot/internal/delivery"
	"newswatch_bot/internal/model"
	"newswatch_bot/internal/pipeline"
	"newswatch_bot/internal/session"
	"newswatch_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot handles owner commands and conversational configuration flows.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	cfg      *config.Config
	sessions *session.Manager
	pipe     *pipeline.Pipeline
	engine   *delivery.Engine
	log      *slog.Logger
}

// New creates a Bot on an already-authorized API client. The client is shared
// with the delivery engine's Telegram sender.
func New(api *tgbotapi.BotAPI, store storage.Storage, cfg *config.Config, sessions *session.Manager,
	pipe *pipeline.Pipeline, engine *delivery.Engine, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		sessions: sessions,
		pipe:     pipe,
		engine:   engine,
		log:      log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			if update.Message.IsCommand() {
				b.handleCommand(ctx, update.Message)
				continue
			}
			b.handleText(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// handleText routes non-command text into the owner's live configuration
// flow. Text outside any flow is ignored.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	ownerID := msg.Chat.ID
	reply, handled, err := b.sessions.HandleText(ctx, ownerID, msg.Text)
	if err != nil {
		b.log.Error("session step", "owner_id", ownerID, "error", err)
		b.reply(ownerID, fmt.Sprintf("Error: %v", err))
		return
	}
	if handled && reply != "" {
		b.reply(ownerID, reply)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "addkeyword":
		b.startFlow(ctx, chatID, func() (string, error) {
			return b.sessions.StartKeywordFlow(ctx, chatID, model.MatchMode(args))
		})
	case "keywords":
		b.handleKeywords(ctx, chatID)
	case "rmkeyword":
		b.handleRmKeyword(ctx, chatID, args)
	case "phrases":
		b.handlePhrases(ctx, chatID, args)
	case "addchannel":
		b.startFlow(ctx, chatID, func() (string, error) {
			return b.sessions.StartChannelFlow(ctx, chatID)
		})
	case "channels":
		b.handleChannels(ctx, chatID)
	case "rmchannel":
		b.handleRmChannel(ctx, chatID, args)
	case "pause":
		b.handleSetChannelActive(ctx, chatID, args, false)
	case "resume":
		b.handleSetChannelActive(ctx, chatID, args, true)
	case "adddestination":
		b.startFlow(ctx, chatID, func() (string, error) {
			return b.sessions.StartDestinationFlow(ctx, chatID)
		})
	case "destinations":
		b.handleDestinations(ctx, chatID)
	case cmdRmDest:
		b.handleRmDestination(ctx, chatID, args)
	case "settings":
		b.handleSettings(ctx, chatID, args)
	case "history":
		b.handleHistory(ctx, chatID, args)
	case cmdRetry:
		b.handleRetry(ctx, chatID, args)
	case "test":
		b.handleTest(ctx, chatID, args)
	case "cancel":
		b.handleCancel(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) startFlow(_ context.Context, chatID int64, start func() (string, error)) {
	reply, err := start()
	if err != nil {
		b.log.Error("start flow", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, reply)
}
