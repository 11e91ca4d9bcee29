package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"newswatch_bot/internal/model"
)

// PlatformRSS is the platform identifier of RSS-backed channels. The
// channel's chat id holds the feed URL.
const PlatformRSS = "rss"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RSS polls an RSS feed as if it were a message channel.
type RSS struct {
	client  HTTPClient
	timeout time.Duration
}

// NewRSS creates an RSS source with the given HTTP client.
func NewRSS(client HTTPClient) *RSS {
	return &RSS{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Poll downloads and parses the channel's feed and returns its items as
// inbound messages, newest first, capped at the channel's per-check limit.
func (r *RSS) Poll(ctx context.Context, ch model.Channel) ([]Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ch.ChatID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewswatchBot/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	name := feed.Title
	if name == "" {
		name = ch.Name
	}

	var msgs []Message
	for _, item := range feed.Items {
		if ch.MaxPerCheck > 0 && len(msgs) >= ch.MaxPerCheck {
			break
		}
		text := item.Title
		if item.Description != "" {
			text += "\n\n" + item.Description
		}
		var mediaURL string
		if len(item.Enclosures) > 0 {
			mediaURL = item.Enclosures[0].URL
		}
		ts := time.Now().UTC()
		if item.PublishedParsed != nil {
			ts = *item.PublishedParsed
		}
		msgs = append(msgs, Message{
			Platform:    PlatformRSS,
			ChannelID:   ch.ChatID,
			MessageID:   itemGUID(item),
			ChannelName: name,
			Text:        text,
			MediaURL:    mediaURL,
			Caption:     item.Link,
			Timestamp:   ts,
		})
	}
	return msgs, nil
}

// itemGUID returns a stable message id for an RSS item. Items without a GUID
// fall back to a hash of title+link.
func itemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}
