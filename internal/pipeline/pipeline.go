// Package pipeline wires the ingestion stages together: keyword matching,
// smart filtering, deduplication, and fan-out delivery. It is safe to run
// with multiple messages in flight, including for the same owner.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newswatch_bot/internal/filter"
	"newswatch_bot/internal/matcher"
	"newswatch_bot/internal/model"
	"newswatch_bot/internal/source"
	"newswatch_bot/internal/storage"
)

// Deliverer fans a processed record out to its destinations.
type Deliverer interface {
	Deliver(ctx context.Context, rec *model.MatchRecord) error
}

// Pipeline processes inbound messages for monitored channels.
type Pipeline struct {
	store    storage.Storage
	filter   *filter.Filter
	delivery Deliverer
	log      *slog.Logger
}

// New creates a Pipeline.
func New(store storage.Storage, f *filter.Filter, delivery Deliverer, log *slog.Logger) *Pipeline {
	return &Pipeline{store: store, filter: f, delivery: delivery, log: log}
}

// Process runs one inbound message through the full pipeline. Messages that
// match no rule or are rejected by the smart filter are dropped with no
// persistence. A message whose (platform, message id) was already processed
// produces a duplicate record referencing the original and is not delivered.
func (p *Pipeline) Process(ctx context.Context, ch model.Channel, msg source.Message) error {
	start := time.Now()

	rules, err := p.store.ListActiveKeywords(ctx, ch.OwnerID)
	if err != nil {
		return fmt.Errorf("list keywords: %w", err)
	}

	matches, skipped := matcher.Match(msg.Text, rules)
	for _, s := range skipped {
		p.log.Warn("keyword rule skipped", "keyword_id", s.KeywordID, "error", s.Err)
	}
	if len(matches) == 0 {
		return nil
	}
	top := matches[0]

	dec := p.filter.Check(ctx, top.Keyword, msg.Text, msg.ChannelName)
	if !dec.Allow {
		p.log.Debug("message filtered",
			"keyword", top.Keyword.Pattern, "stage", int(dec.Stage), "reason", dec.Reason)
		if msg.Diagnostic {
			// Injected test messages leave a filtered record so the owner
			// can see in /history why nothing was forwarded.
			return p.recordFiltered(ctx, ch, msg, top)
		}
		return nil
	}

	rec := &model.MatchRecord{
		OwnerID:     ch.OwnerID,
		KeywordID:   top.Keyword.ID,
		ChannelID:   ch.ID,
		Platform:    msg.Platform,
		MessageID:   msg.MessageID,
		ChannelName: msg.ChannelName,
		MessageText: msg.Text,
		MatchedText: top.Matched,
		MediaURL:    msg.MediaURL,
		Caption:     msg.Caption,
		Status:      model.StatusProcessed,
	}
	err = p.store.InsertMatchRecord(ctx, rec)
	if errors.Is(err, storage.ErrDuplicate) {
		return p.recordDuplicate(ctx, rec)
	}
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if err := p.store.IncrementKeywordMatches(ctx, top.Keyword.ID); err != nil {
		p.log.Error("increment match counter", "keyword_id", top.Keyword.ID, "error", err)
	}

	if err := p.delivery.Deliver(ctx, rec); err != nil {
		p.log.Error("fan-out delivery", "record_id", rec.ID, "error", err)
		// An error record leaves the dedup scope: resubmitting the same
		// message processes and delivers it from scratch instead of
		// producing a duplicate record.
		if serr := p.store.SetRecordStatus(ctx, rec.ID, model.StatusError); serr != nil {
			p.log.Error("set record status", "record_id", rec.ID, "error", serr)
		}
	}

	if err := p.store.SetRecordLatency(ctx, rec.ID, time.Since(start).Milliseconds()); err != nil {
		p.log.Error("set record latency", "record_id", rec.ID, "error", err)
	}
	return nil
}

// recordFiltered writes a filtered record for a rejected diagnostic message.
func (p *Pipeline) recordFiltered(ctx context.Context, ch model.Channel, msg source.Message, top matcher.Result) error {
	rec := &model.MatchRecord{
		OwnerID:     ch.OwnerID,
		KeywordID:   top.Keyword.ID,
		ChannelID:   ch.ID,
		Platform:    msg.Platform,
		MessageID:   msg.MessageID,
		ChannelName: msg.ChannelName,
		MessageText: msg.Text,
		MatchedText: top.Matched,
		Status:      model.StatusFiltered,
	}
	if err := p.store.InsertMatchRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert filtered record: %w", err)
	}
	return nil
}

// recordDuplicate writes a duplicate record pointing at the processed
// original. The uniqueness conflict is the expected dedup signal, not an
// error.
func (p *Pipeline) recordDuplicate(ctx context.Context, rec *model.MatchRecord) error {
	orig, err := p.store.FindProcessedRecord(ctx, rec.Platform, rec.MessageID)
	if err != nil {
		return fmt.Errorf("find original record: %w", err)
	}
	dup := *rec
	dup.Status = model.StatusDuplicate
	dup.DuplicateOf = &orig.ID
	if err := p.store.InsertMatchRecord(ctx, &dup); err != nil {
		return fmt.Errorf("insert duplicate record: %w", err)
	}
	p.log.Debug("duplicate message",
		"platform", rec.Platform, "message_id", rec.MessageID, "original_record", orig.ID)
	return nil
}

// InjectVirtual feeds a synthetic message through the pipeline against an
// existing channel, for diagnostics. The message id is generated, so repeated
// injections are never deduplicated against each other.
func (p *Pipeline) InjectVirtual(ctx context.Context, channelID int64, text string) error {
	ch, err := p.store.GetChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("get channel: %w", err)
	}
	msg := source.Message{
		Platform:    ch.Platform,
		ChannelID:   ch.ChatID,
		MessageID:   "virtual-" + uuid.NewString(),
		ChannelName: ch.Name,
		Text:        text,
		Timestamp:   time.Now().UTC(),
		Diagnostic:  true,
	}
	return p.Process(ctx, *ch, msg)
}
