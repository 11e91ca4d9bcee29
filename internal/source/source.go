// Package source defines the inbound message event sources feeding the
// pipeline. The core does not manage platform connection lifecycles; a Source
// only yields the messages that appeared on a channel since the last poll.
package source

import (
	"context"
	"time"

	"newswatch_bot/internal/model"
)

// Message is one inbound message from a monitored channel. Diagnostic marks
// synthetic messages injected for testing a channel's configuration.
type Message struct {
	Platform    string
	ChannelID   string
	MessageID   string
	ChannelName string
	Text        string
	MediaURL    string
	Caption     string
	Timestamp   time.Time
	Diagnostic  bool
}

// Source yields inbound messages for a monitored channel.
type Source interface {
	Poll(ctx context.Context, ch model.Channel) ([]Message, error)
}
