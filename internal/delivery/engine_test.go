package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"newswatch_bot/internal/model"
	"newswatch_bot/internal/storage"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    map[int64][]string
	failFor map[int64]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[int64][]string{}, failFor: map[int64]error{}}
}

func (s *fakeSender) Send(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[chatID]; ok {
		return err
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

func (s *fakeSender) sentTo(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[chatID])
}

type fakeResolver struct {
	ids  map[string]int64
	err  error
	hits int
}

func (r *fakeResolver) ResolveUsername(_ context.Context, username string) (int64, error) {
	r.hits++
	if r.err != nil {
		return 0, r.err
	}
	id, ok := r.ids[username]
	if !ok {
		return 0, errors.New("username not found")
	}
	return id, nil
}

func newTestEngine(t *testing.T, sender *fakeSender, resolver *fakeResolver) (*Engine, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolvers := map[string]Resolver{}
	if resolver != nil {
		resolvers["telegram"] = resolver
	}
	return New(store, map[string]Sender{"telegram": sender}, resolvers, log), store
}

func insertRecord(t *testing.T, store storage.Storage, ownerID int64) *model.MatchRecord {
	t.Helper()
	rec := &model.MatchRecord{
		OwnerID:     ownerID,
		KeywordID:   1,
		ChannelID:   1,
		Platform:    "telegram",
		MessageID:   "m1",
		ChannelName: "crypto news",
		MessageText: "bitcoin is up",
		Status:      model.StatusProcessed,
	}
	if err := store.InsertMatchRecord(context.Background(), rec); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	return rec
}

func addDestination(t *testing.T, store storage.Storage, d model.Destination) model.Destination {
	t.Helper()
	if err := store.CreateDestination(context.Background(), &d); err != nil {
		t.Fatalf("create destination: %v", err)
	}
	return d
}

func TestDeliverPartialFailure(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	sender.failFor[222] = errors.New("chat not found")
	engine, store := newTestEngine(t, sender, nil)

	good := addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestPrivateChat, Platform: "telegram", ChatID: "111", IsActive: true})
	bad := addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestGroup, Platform: "telegram", ChatID: "222", IsActive: true})
	rec := insertRecord(t, store, 1)

	if err := engine.Deliver(ctx, rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Status != model.StatusProcessed {
		t.Errorf("partial failure must keep the record processed, got %q", got.Status)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got.Outcomes))
	}
	byDest := map[int64]model.DeliveryOutcome{}
	for _, o := range got.Outcomes {
		byDest[o.DestinationID] = o
	}
	if byDest[good.ID].Status != model.OutcomeSuccess {
		t.Errorf("outcome for %d = %q, want success", good.ID, byDest[good.ID].Status)
	}
	if byDest[bad.ID].Status != model.OutcomeFailed {
		t.Errorf("outcome for %d = %q, want failed", bad.ID, byDest[bad.ID].Status)
	}
	if byDest[bad.ID].Error == "" {
		t.Error("failed outcome should carry the error detail")
	}
	if sender.sentTo(111) != 1 {
		t.Errorf("expected 1 send to 111, got %d", sender.sentTo(111))
	}
}

func TestDeliverResolvesUsernameOnce(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	resolver := &fakeResolver{ids: map[string]int64{"@newschannel": -100500}}
	engine, store := newTestEngine(t, sender, resolver)

	dest := addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestChannel, Platform: "telegram", ChatID: "@newschannel", IsActive: true})
	rec := insertRecord(t, store, 1)

	if err := engine.Deliver(ctx, rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sender.sentTo(-100500) != 1 {
		t.Fatalf("expected send to resolved chat, got %d", sender.sentTo(-100500))
	}
	if resolver.hits != 1 {
		t.Errorf("resolver hits = %d, want 1", resolver.hits)
	}

	// The resolution is persisted and reused on the next delivery.
	got, err := store.GetDestination(ctx, dest.ID)
	if err != nil {
		t.Fatalf("get destination: %v", err)
	}
	if got.ResolvedChatID == nil || *got.ResolvedChatID != -100500 {
		t.Fatalf("ResolvedChatID = %v, want -100500", got.ResolvedChatID)
	}

	rec2 := &model.MatchRecord{OwnerID: 1, KeywordID: 1, ChannelID: 1, Platform: "telegram",
		MessageID: "m2", ChannelName: "crypto news", MessageText: "more", Status: model.StatusProcessed}
	if err := store.InsertMatchRecord(ctx, rec2); err != nil {
		t.Fatalf("insert second record: %v", err)
	}
	if err := engine.Deliver(ctx, rec2); err != nil {
		t.Fatalf("second deliver: %v", err)
	}
	if resolver.hits != 1 {
		t.Errorf("resolver hits after second delivery = %d, want 1", resolver.hits)
	}
}

func TestDeliverResolutionFailure(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	resolver := &fakeResolver{err: errors.New("username not found")}
	engine, store := newTestEngine(t, sender, resolver)

	dest := addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestChannel, Platform: "telegram", ChatID: "@missing", IsActive: true})
	rec := insertRecord(t, store, 1)

	if err := engine.Deliver(ctx, rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if len(got.Outcomes) != 1 || got.Outcomes[0].Status != model.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", got.Outcomes)
	}

	// The @username is kept so the resolution itself can be retried.
	d, err := store.GetDestination(ctx, dest.ID)
	if err != nil {
		t.Fatalf("get destination: %v", err)
	}
	if d.ChatID != "@missing" || d.ResolvedChatID != nil {
		t.Errorf("destination after failed resolution: %+v", d)
	}
}

func TestRetryOnlyFailed(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	sender.failFor[222] = errors.New("flood wait")
	engine, store := newTestEngine(t, sender, nil)

	addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestPrivateChat, Platform: "telegram", ChatID: "111", IsActive: true})
	bad := addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestGroup, Platform: "telegram", ChatID: "222", IsActive: true})
	rec := insertRecord(t, store, 1)

	if err := engine.Deliver(ctx, rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// The transient failure clears, then retry.
	sender.mu.Lock()
	delete(sender.failFor, 222)
	sender.mu.Unlock()

	if err := engine.Retry(ctx, rec.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if sender.sentTo(111) != 1 {
		t.Errorf("successful destination must not be retried, sends = %d", sender.sentTo(111))
	}
	if sender.sentTo(222) != 1 {
		t.Errorf("failed destination should be retried once, sends = %d", sender.sentTo(222))
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("retry must update outcomes in place, got %d", len(got.Outcomes))
	}
	for _, o := range got.Outcomes {
		if o.Status != model.OutcomeSuccess {
			t.Errorf("outcome for destination %d = %q, want success", o.DestinationID, o.Status)
		}
		if o.DestinationID == bad.ID && o.Error != "" {
			t.Errorf("retried outcome should clear the error, got %q", o.Error)
		}
	}
}

func TestDeliverSkipsInactiveDestinations(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	engine, store := newTestEngine(t, sender, nil)

	addDestination(t, store, model.Destination{
		OwnerID: 1, Type: model.DestPrivateChat, Platform: "telegram", ChatID: "111", IsActive: false})
	rec := insertRecord(t, store, 1)

	if err := engine.Deliver(ctx, rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sender.sentTo(111) != 0 {
		t.Errorf("inactive destination must be skipped, sends = %d", sender.sentTo(111))
	}
	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if len(got.Outcomes) != 0 {
		t.Errorf("no outcomes expected for inactive destinations, got %d", len(got.Outcomes))
	}
}

func TestBuildPayload(t *testing.T) {
	rec := &model.MatchRecord{
		ChannelName: "crypto news",
		MessageText: "bitcoin is up",
		Caption:     "https://example.com/post/1",
		MediaURL:    "https://example.com/img.jpg",
	}

	tests := []struct {
		name string
		dest model.Destination
		want string
	}{
		{
			name: "text only",
			dest: model.Destination{},
			want: "[crypto news]\n\nbitcoin is up",
		},
		{
			name: "prefix and caption",
			dest: model.Destination{AddPrefix: true, PrefixText: "ALERT", IncludeCaption: true},
			want: "ALERT\n\n[crypto news]\n\nbitcoin is up\n\nhttps://example.com/post/1",
		},
		{
			name: "media",
			dest: model.Destination{IncludeMedia: true},
			want: "[crypto news]\n\nbitcoin is up\n\nhttps://example.com/img.jpg",
		},
		{
			name: "prefix enabled but empty",
			dest: model.Destination{AddPrefix: true},
			want: "[crypto news]\n\nbitcoin is up",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPayload(rec, tt.dest)
			if got != tt.want {
				t.Errorf("BuildPayload =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestBuildPayloadEverything(t *testing.T) {
	rec := &model.MatchRecord{
		ChannelName: "feed",
		MessageText: "text",
		Caption:     "caption",
		MediaURL:    "media",
	}
	dest := model.Destination{AddPrefix: true, PrefixText: "P", IncludeCaption: true, IncludeMedia: true}
	got := BuildPayload(rec, dest)
	for _, part := range []string{"P", "[feed]", "text", "caption", "media"} {
		if !strings.Contains(got, part) {
			t.Errorf("payload missing %q: %q", part, got)
		}
	}
}
