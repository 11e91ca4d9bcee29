package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newswatch_bot/internal/model"
)

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    int64
		wantErr bool
	}{
		{name: "plain id", args: "42", want: 42},
		{name: "id with trailing junk", args: "7 extra", want: 7},
		{name: "padded", args: "  3  ", want: 3},
		{name: "empty", args: "", wantErr: true},
		{name: "not a number", args: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDArg(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseIDTextArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantID   int64
		wantText string
		wantErr  bool
	}{
		{name: "id and word", args: "1 hello", wantID: 1, wantText: "hello"},
		{name: "id and phrase", args: "3 bitcoin pizza day", wantID: 3, wantText: "bitcoin pizza day"},
		{name: "missing text", args: "1", wantErr: true},
		{name: "blank text", args: "1   ", wantErr: true},
		{name: "bad id", args: "x hello", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, text, err := ParseIDTextArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID || text != tt.wantText {
				t.Errorf("got (%d, %q), want (%d, %q)", id, text, tt.wantID, tt.wantText)
			}
		})
	}
}

func TestFormatKeywordList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatKeywordList(nil)
		if !strings.Contains(got, "/addkeyword") {
			t.Errorf("empty list should point at /addkeyword: %q", got)
		}
	})

	t.Run("full", func(t *testing.T) {
		keywords := []model.Keyword{
			{ID: 1, Pattern: "bitcoin", Mode: model.MatchContains, Priority: 5, IsActive: true,
				MatchCount: 12, IrrelevantPhrases: []string{"bitcoin pizza day"}},
			{ID: 2, Pattern: "^ETH", Mode: model.MatchRegex, IsActive: false},
		}
		got := FormatKeywordList(keywords)
		for _, want := range []string{
			`K1 "bitcoin" (contains, priority 5) [active] — 12 matches`,
			"ignored contexts: bitcoin pizza day",
			`K2 "^ETH" (regex, priority 0) [inactive]`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})
}

func TestFormatChannelList(t *testing.T) {
	checked := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	channels := []model.Channel{
		{ID: 1, Name: "crypto news", Platform: "telegram", IntervalMinutes: 10, IsActive: true,
			LastCheckAt: &checked},
		{ID: 2, Name: "feed", Platform: "rss", IntervalMinutes: 30, IsActive: false},
	}
	got := FormatChannelList(channels)
	for _, want := range []string{
		"C1 crypto news (telegram, every 10 min) [active]",
		"last check: 2025-06-01 12:30 UTC",
		"C2 feed (rss, every 30 min) [paused]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatDestinationList(t *testing.T) {
	dests := []model.Destination{
		{ID: 1, Name: "me", Type: model.DestPrivateChat, IsActive: true,
			AddPrefix: true, PrefixText: "FW:", IncludeMedia: true},
		{ID: 2, Name: "team", Type: model.DestGroup, IsActive: false},
	}
	got := FormatDestinationList(dests)
	for _, want := range []string{
		"D1 me (private_chat) [active]",
		`forwarding: prefix "FW:", media`,
		"D2 team (group) [paused]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatRecord(t *testing.T) {
	origID := int64(3)
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("with outcomes", func(t *testing.T) {
		rec := &model.MatchRecord{
			ID: 5, Status: model.StatusProcessed, MatchedText: "bitcoin",
			ChannelName: "crypto news", MessageText: "bitcoin is up", CreatedAt: created,
			Outcomes: []model.DeliveryOutcome{
				{DestinationID: 1, Status: model.OutcomeSuccess},
				{DestinationID: 2, Status: model.OutcomeFailed, Error: "chat not found"},
			},
		}
		got := FormatRecord(rec)
		for _, want := range []string{
			`M5 [processed] "bitcoin" in crypto news (2025-06-01 09:00 UTC)`,
			"D1: success",
			"D2: failed (chat not found)",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})

	t.Run("duplicate reference", func(t *testing.T) {
		rec := &model.MatchRecord{
			ID: 6, Status: model.StatusDuplicate, MatchedText: "bitcoin",
			ChannelName: "crypto news", MessageText: "bitcoin is up",
			DuplicateOf: &origID, CreatedAt: created,
		}
		got := FormatRecord(rec)
		if !strings.Contains(got, "duplicate of M3") {
			t.Errorf("missing duplicate reference in:\n%s", got)
		}
	})

	t.Run("long text truncated", func(t *testing.T) {
		rec := &model.MatchRecord{
			ID: 7, Status: model.StatusProcessed,
			MessageText: strings.Repeat("x", 300), CreatedAt: created,
		}
		got := FormatRecord(rec)
		if !strings.Contains(got, strings.Repeat("x", 200)+"...") {
			t.Error("long message should be truncated")
		}
		if strings.Contains(got, strings.Repeat("x", 201)) {
			t.Error("truncation did not cap the text")
		}
	})
}

func TestFormatRecordList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if diff := cmp.Diff("No matches yet.", FormatRecordList(nil)); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("multiple", func(t *testing.T) {
		records := []model.MatchRecord{
			{ID: 1, Status: model.StatusProcessed, ChannelName: "a"},
			{ID: 2, Status: model.StatusError, ChannelName: "b"},
		}
		got := FormatRecordList(records)
		if !strings.Contains(got, "Recent matches") ||
			!strings.Contains(got, "M1") || !strings.Contains(got, "M2") {
			t.Errorf("unexpected output:\n%s", got)
		}
	})
}
