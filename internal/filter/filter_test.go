package filter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"newswatch_bot/internal/model"
)

type fakeOracle struct {
	answer string
	err    error
	called bool
}

func (f *fakeOracle) Classify(_ context.Context, _, _, _ string) (string, error) {
	f.called = true
	return f.answer, f.err
}

type slowOracle struct{}

func (slowOracle) Classify(ctx context.Context, _, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFilter(cfg Config, o Oracle) *Filter {
	return New(cfg, o, 100*time.Millisecond, discardLogger())
}

func TestCheckStageOne(t *testing.T) {
	keyword := model.Keyword{
		Pattern:           "revolution",
		IrrelevantPhrases: []string{"industrial revolution"},
	}
	cfg := Config{SpamIndicators: []string{"promo code", "t.me/joinchat"}}

	tests := []struct {
		name    string
		message string
		allow   bool
	}{
		{
			name:    "irrelevant context phrase rejects",
			message: "The Industrial Revolution changed everything",
			allow:   false,
		},
		{
			name:    "spam indicator rejects",
			message: "revolution! use promo code NEWS10",
			allow:   false,
		},
		{
			name:    "clean message passes",
			message: "Breaking: revolution news from the capital",
			allow:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &fakeOracle{answer: "YES"}
			f := newFilter(cfg, o)

			dec := f.Check(context.Background(), keyword, tt.message, "news channel")
			if dec.Allow != tt.allow {
				t.Fatalf("Allow = %v, want %v (reason %q)", dec.Allow, tt.allow, dec.Reason)
			}
			if !tt.allow {
				if dec.Stage != StageRules {
					t.Errorf("Stage = %d, want rules stage", dec.Stage)
				}
				// Stage 1 must reject before any oracle call.
				if o.called {
					t.Error("oracle was consulted for a stage-1 rejection")
				}
			}
		})
	}
}

func TestCheckOracleAnswers(t *testing.T) {
	keyword := model.Keyword{Pattern: "revolution"}

	tests := []struct {
		name   string
		answer string
		err    error
		allow  bool
	}{
		{name: "YES allows", answer: "YES", allow: true},
		{name: "NO rejects", answer: "NO", allow: false},
		{name: "lowercase no rejects", answer: " no ", allow: false},
		{name: "unparseable answer allows", answer: "maybe?", allow: true},
		{name: "empty answer allows", answer: "", allow: true},
		{name: "oracle error fails open", err: errors.New("boom"), allow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFilter(Config{}, &fakeOracle{answer: tt.answer, err: tt.err})

			dec := f.Check(context.Background(), keyword, "revolution news", "ctx")
			if dec.Allow != tt.allow {
				t.Errorf("Allow = %v, want %v", dec.Allow, tt.allow)
			}
		})
	}
}

func TestCheckOracleTimeoutFailsOpen(t *testing.T) {
	f := newFilter(Config{}, slowOracle{})

	start := time.Now()
	dec := f.Check(context.Background(), model.Keyword{Pattern: "news"}, "news text", "ctx")
	if !dec.Allow {
		t.Error("expected fail-open allow on oracle timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("check took %v, timeout not enforced", elapsed)
	}
}

func TestCheckNoOracleConfigured(t *testing.T) {
	f := newFilter(Config{}, nil)

	dec := f.Check(context.Background(), model.Keyword{Pattern: "news"}, "news text", "ctx")
	if !dec.Allow {
		t.Error("expected allow when no oracle is configured")
	}
}
