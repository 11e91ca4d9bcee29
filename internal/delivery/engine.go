// Package delivery implements the fan-out engine that forwards a processed
// match record to every active destination, tracking each outcome
// independently.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"newswatch_bot/internal/model"
	"newswatch_bot/internal/storage"
)

// Sender performs the platform-specific send of a text payload.
type Sender interface {
	Send(chatID int64, text string) error
}

// Resolver turns an @username into a numeric chat id.
type Resolver interface {
	ResolveUsername(ctx context.Context, username string) (int64, error)
}

// Engine delivers match records to destinations. Sends to the destinations of
// one record run concurrently; a failure on one destination never affects the
// others.
type Engine struct {
	store     storage.Storage
	senders   map[string]Sender
	resolvers map[string]Resolver
	log       *slog.Logger
}

// New creates an Engine. senders and resolvers are keyed by platform.
func New(store storage.Storage, senders map[string]Sender, resolvers map[string]Resolver, log *slog.Logger) *Engine {
	return &Engine{store: store, senders: senders, resolvers: resolvers, log: log}
}

// Deliver fans the record out to all of the owner's active destinations.
// Partial success is normal: the record stays processed even when some
// destinations fail.
func (e *Engine) Deliver(ctx context.Context, rec *model.MatchRecord) error {
	dests, err := e.store.ListActiveDestinations(ctx, rec.OwnerID)
	if err != nil {
		return fmt.Errorf("list destinations: %w", err)
	}

	var wg sync.WaitGroup
	for i := range dests {
		dest := dests[i]
		out := &model.DeliveryOutcome{
			RecordID:      rec.ID,
			DestinationID: dest.ID,
			Status:        model.OutcomePending,
		}
		if err := e.store.AppendOutcome(ctx, out); err != nil {
			e.log.Error("append outcome", "record_id", rec.ID, "destination_id", dest.ID, "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			e.attempt(ctx, rec, dest, out)
		}()
	}
	wg.Wait()
	return nil
}

// Retry re-attempts only the failed outcomes of a record, updating them in
// place. Successful outcomes are never retried.
func (e *Engine) Retry(ctx context.Context, recordID int64) error {
	rec, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}

	var wg sync.WaitGroup
	for i := range rec.Outcomes {
		out := &rec.Outcomes[i]
		if out.Status != model.OutcomeFailed {
			continue
		}
		dest, err := e.store.GetDestination(ctx, out.DestinationID)
		if err != nil {
			e.log.Error("get destination for retry", "destination_id", out.DestinationID, "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			e.attempt(ctx, rec, *dest, out)
		}()
	}
	wg.Wait()
	return nil
}

func (e *Engine) attempt(ctx context.Context, rec *model.MatchRecord, dest model.Destination, out *model.DeliveryOutcome) {
	chatID, err := e.resolveChatID(ctx, &dest)
	if err != nil {
		e.finish(ctx, out, model.OutcomeFailed, fmt.Sprintf("resolve chat id: %v", err))
		return
	}

	sender, ok := e.senders[dest.Platform]
	if !ok {
		e.finish(ctx, out, model.OutcomeFailed, "no sender for platform "+dest.Platform)
		return
	}

	if err := sender.Send(chatID, BuildPayload(rec, dest)); err != nil {
		e.finish(ctx, out, model.OutcomeFailed, err.Error())
		return
	}
	e.finish(ctx, out, model.OutcomeSuccess, "")
}

// resolveChatID returns the numeric chat id for a destination, resolving an
// @username at most once and persisting the result. The original @username
// value is kept on the destination so a failed resolution can be retried.
func (e *Engine) resolveChatID(ctx context.Context, dest *model.Destination) (int64, error) {
	if dest.ResolvedChatID != nil {
		return *dest.ResolvedChatID, nil
	}
	if id, err := strconv.ParseInt(dest.ChatID, 10, 64); err == nil {
		return id, nil
	}
	if !strings.HasPrefix(dest.ChatID, "@") {
		return 0, fmt.Errorf("chat id %q is neither numeric nor an @username", dest.ChatID)
	}

	resolver, ok := e.resolvers[dest.Platform]
	if !ok {
		return 0, fmt.Errorf("no resolver for platform %s", dest.Platform)
	}
	id, err := resolver.ResolveUsername(ctx, dest.ChatID)
	if err != nil {
		return 0, err
	}
	if err := e.store.SetDestinationResolvedID(ctx, dest.ID, id); err != nil {
		e.log.Error("persist resolved chat id", "destination_id", dest.ID, "error", err)
	}
	dest.ResolvedChatID = &id
	return id, nil
}

func (e *Engine) finish(ctx context.Context, out *model.DeliveryOutcome, status model.OutcomeStatus, detail string) {
	out.Status = status
	out.Error = detail
	if err := e.store.UpdateOutcome(ctx, out); err != nil {
		e.log.Error("update outcome", "outcome_id", out.ID, "error", err)
	}
	if status == model.OutcomeFailed {
		e.log.Warn("delivery failed", "record_id", out.RecordID, "destination_id", out.DestinationID, "detail", detail)
	}
}

// BuildPayload applies a destination's forward settings to produce the
// outbound message text.
func BuildPayload(rec *model.MatchRecord, dest model.Destination) string {
	var b strings.Builder
	if dest.AddPrefix && dest.PrefixText != "" {
		b.WriteString(dest.PrefixText)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "[%s]\n\n", rec.ChannelName)
	b.WriteString(rec.MessageText)
	if dest.IncludeCaption && rec.Caption != "" {
		b.WriteString("\n\n")
		b.WriteString(rec.Caption)
	}
	if dest.IncludeMedia && rec.MediaURL != "" {
		b.WriteString("\n\n")
		b.WriteString(rec.MediaURL)
	}
	return b.String()
}
