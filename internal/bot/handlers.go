package bot

import (
	"context"
	"fmt"

	"newswatch_bot/internal/model"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Newswatch Bot!

Monitor channels for keywords and forward matching messages.

Quick start:
1. /addchannel — add a channel to monitor
2. /addkeyword — add a keyword to watch for
3. /adddestination — choose where matches are forwarded

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Keywords:
/addkeyword [exact|contains|regex] — add a keyword (next message is the pattern)
/keywords — show your keyword rules
/rmkeyword <id> — deactivate a rule
/phrases <id> <phrase> — add an irrelevant-context phrase to a rule

Channels:
/addchannel — add a monitored channel
/channels — show monitored channels
/rmchannel <id> — remove a channel
/pause <id> — pause checking
/resume <id> — resume checking

Destinations:
/adddestination — add a forwarding destination
/destinations — show destinations
/rmdestination <id> — remove a destination
/settings <id> — configure forwarding for a destination

Pipeline:
/history [n] — recent matches and delivery outcomes
/retry <match_id> — retry failed deliveries of a match
/test <channel_id> <text> — run a test message through the pipeline
/cancel — abort the current flow`)
}

func (b *Bot) handleKeywords(ctx context.Context, chatID int64) {
	keywords, err := b.store.ListKeywords(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatKeywordList(keywords))
}

func (b *Bot) handleRmKeyword(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmkeyword <id>")
		return
	}

	k, err := b.store.GetKeyword(ctx, id)
	if err != nil || k.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Keyword K%d not found.", id))
		return
	}

	if err := b.store.DeactivateKeyword(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Keyword K%d %q deactivated.", id, k.Pattern))
}

func (b *Bot) handlePhrases(ctx context.Context, chatID int64, args string) {
	id, phrase, err := ParseIDTextArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /phrases <keyword_id> <phrase>")
		return
	}

	k, err := b.store.GetKeyword(ctx, id)
	if err != nil || k.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Keyword K%d not found.", id))
		return
	}

	k.IrrelevantPhrases = append(k.IrrelevantPhrases, phrase)
	if err := b.store.UpdateKeyword(ctx, k); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Messages containing %q will no longer trigger K%d %q.",
		phrase, k.ID, k.Pattern))
}

func (b *Bot) handleChannels(ctx context.Context, chatID int64) {
	channels, err := b.store.ListChannels(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatChannelList(channels))
}

func (b *Bot) handleRmChannel(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmchannel <id>")
		return
	}

	ch, err := b.store.GetChannel(ctx, id)
	if err != nil || ch.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Channel C%d not found.", id))
		return
	}

	if err := b.store.DeleteChannel(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Channel C%d \"%s\" removed.", id, ch.Name))
}

func (b *Bot) handleSetChannelActive(ctx context.Context, chatID int64, args string, active bool) {
	id, err := ParseIDArg(args)
	if err != nil {
		if active {
			b.reply(chatID, "Usage: /resume <id>")
		} else {
			b.reply(chatID, "Usage: /pause <id>")
		}
		return
	}

	ch, err := b.store.GetChannel(ctx, id)
	if err != nil || ch.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Channel C%d not found.", id))
		return
	}

	ch.IsActive = active
	if err := b.store.UpdateChannel(ctx, ch); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	verb := "paused"
	if active {
		verb = "resumed"
	}
	b.reply(chatID, fmt.Sprintf("Channel C%d \"%s\" %s.", id, ch.Name, verb))
}

func (b *Bot) handleDestinations(ctx context.Context, chatID int64) {
	dests, err := b.store.ListDestinations(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatDestinationList(dests))
}

func (b *Bot) handleRmDestination(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmdestination <id>")
		return
	}

	d, err := b.store.GetDestination(ctx, id)
	if err != nil || d.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Destination D%d not found.", id))
		return
	}

	if err := b.store.DeleteDestination(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Destination D%d \"%s\" removed.", id, d.Name))
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /settings <destination_id>")
		return
	}

	reply, err := b.sessions.StartSettingsFlow(ctx, chatID, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, reply)
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, args string) {
	limit := 10
	if args != "" {
		if n, err := ParseIDArg(args); err == nil && n > 0 && n <= 50 {
			limit = int(n)
		}
	}

	records, err := b.store.ListRecords(ctx, chatID, limit)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.sendHistory(chatID, records)
}

func (b *Bot) handleRetry(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /retry <match_id>")
		return
	}

	rec, err := b.store.GetRecord(ctx, id)
	if err != nil || rec.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Match M%d not found.", id))
		return
	}

	if err := b.engine.Retry(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Retry failed: %v", err))
		return
	}

	rec, err = b.store.GetRecord(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatRecord(rec))
}

func (b *Bot) handleTest(ctx context.Context, chatID int64, args string) {
	id, text, err := ParseIDTextArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /test <channel_id> <text>")
		return
	}

	ch, err := b.store.GetChannel(ctx, id)
	if err != nil || ch.OwnerID != chatID {
		b.reply(chatID, fmt.Sprintf("Channel C%d not found.", id))
		return
	}

	if err := b.pipe.InjectVirtual(ctx, id, text); err != nil {
		b.reply(chatID, fmt.Sprintf("Test message failed: %v", err))
		return
	}
	b.reply(chatID, "Test message processed. Use /history to see the result.")
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64) {
	reply, err := b.sessions.Cancel(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, reply)
}

// hasFailedOutcome reports whether any delivery of the record failed.
func hasFailedOutcome(rec model.MatchRecord) bool {
	for _, o := range rec.Outcomes {
		if o.Status == model.OutcomeFailed {
			return true
		}
	}
	return false
}
