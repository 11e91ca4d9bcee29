// Package scheduler drives the periodic work: polling due channels into the
// pipeline and sweeping expired audit records and sessions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"newswatch_bot/internal/model"
	"newswatch_bot/internal/pipeline"
	"newswatch_bot/internal/source"
	"newswatch_bot/internal/storage"
)

// Scheduler periodically checks monitored channels and runs the background
// sweeps.
type Scheduler struct {
	store      storage.Storage
	sources    map[string]source.Source
	pipe       *pipeline.Pipeline
	log        *slog.Logger
	tick       time.Duration
	sweepEvery time.Duration
	retention  time.Duration
	sessionTTL time.Duration
}

// New creates a Scheduler. sources is keyed by platform; channels on a
// platform without a registered source are skipped (their ingestion is
// handled by an external client).
func New(store storage.Storage, sources map[string]source.Source, pipe *pipeline.Pipeline,
	retention, sessionTTL time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		sources:    sources,
		pipe:       pipe,
		log:        log,
		tick:       1 * time.Minute,
		sweepEvery: 1 * time.Hour,
		retention:  retention,
		sessionTTL: sessionTTL,
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loops, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)
	s.sweep(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	sweeper := time.NewTicker(s.sweepEvery)
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		case <-sweeper.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	channels, err := s.store.ListDueChannels(ctx)
	if err != nil {
		s.log.Error("list due channels", "error", err)
		return
	}

	for _, ch := range channels {
		if ctx.Err() != nil {
			return
		}
		s.processChannel(ctx, ch)
	}
}

func (s *Scheduler) processChannel(ctx context.Context, ch model.Channel) {
	src, ok := s.sources[ch.Platform]
	if !ok {
		// Ingestion for this platform arrives through an external client.
		s.updateLastCheck(ctx, &ch)
		return
	}

	s.log.Debug("checking channel", "channel_id", ch.ID, "name", ch.Name)

	msgs, err := src.Poll(ctx, ch)
	if err != nil {
		s.log.Error("poll channel", "channel_id", ch.ID, "error", err)
		s.updateLastCheck(ctx, &ch)
		return
	}

	for _, msg := range msgs {
		if err := s.pipe.Process(ctx, ch, msg); err != nil {
			s.log.Error("process message",
				"channel_id", ch.ID, "message_id", msg.MessageID, "error", err)
		}
	}

	s.updateLastCheck(ctx, &ch)
}

// sweep purges expired audit records and idle sessions. The sweeps run in the
// background, never inline with the write path.
func (s *Scheduler) sweep(ctx context.Context) {
	now := time.Now().UTC()

	purged, err := s.store.PurgeRecordsBefore(ctx, now.Add(-s.retention))
	if err != nil {
		s.log.Error("purge records", "error", err)
	} else if purged > 0 {
		s.log.Info("purged audit records", "count", purged)
	}

	expired, err := s.store.DeleteSessionsIdleSince(ctx, now.Add(-s.sessionTTL))
	if err != nil {
		s.log.Error("expire sessions", "error", err)
	} else if expired > 0 {
		s.log.Info("expired sessions", "count", expired)
	}
}

func (s *Scheduler) updateLastCheck(ctx context.Context, ch *model.Channel) {
	now := time.Now().UTC()
	ch.LastCheckAt = &now
	if err := s.store.UpdateChannel(ctx, ch); err != nil {
		s.log.Error("update last check", "channel_id", ch.ID, "error", err)
	}
}
