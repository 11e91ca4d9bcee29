// Package filter implements the two-stage suppression of spam and false
// positives applied to keyword matches before delivery.
package filter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"newswatch_bot/internal/model"
)

// Oracle answers a yes/no relevance question about a matched message.
// Any answer other than the literal "NO" is treated as "allow".
type Oracle interface {
	Classify(ctx context.Context, keyword, message, channelContext string) (string, error)
}

// Config is the immutable rule-stage configuration. It is fixed at
// construction; there is no process-wide mutable filter state.
type Config struct {
	SpamIndicators []string
}

// Stage identifies which filter stage rejected a message.
type Stage int

// Filter stages.
const (
	StageNone Stage = iota
	StageRules
	StageOracle
)

// Decision is the outcome of a filter check.
type Decision struct {
	Allow  bool
	Stage  Stage
	Reason string
}

// Filter decides whether a keyword match should be forwarded.
type Filter struct {
	cfg     Config
	oracle  Oracle
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Filter. oracle may be nil, in which case stage 2 is skipped
// and every message surviving stage 1 is allowed.
func New(cfg Config, oracle Oracle, timeout time.Duration, log *slog.Logger) *Filter {
	return &Filter{cfg: cfg, oracle: oracle, timeout: timeout, log: log}
}

// Check runs both filter stages. Stage 1 is deterministic and always runs
// first; stage 2 consults the oracle and fails open: an unreachable oracle or
// an unparseable answer allows the message through with a warning.
func (f *Filter) Check(ctx context.Context, keyword model.Keyword, message, channelContext string) Decision {
	lower := strings.ToLower(message)

	for _, ind := range f.cfg.SpamIndicators {
		if ind != "" && strings.Contains(lower, strings.ToLower(ind)) {
			return Decision{Allow: false, Stage: StageRules, Reason: "spam indicator: " + ind}
		}
	}
	for _, phrase := range keyword.IrrelevantPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return Decision{Allow: false, Stage: StageRules, Reason: "irrelevant context: " + phrase}
		}
	}

	if f.oracle == nil {
		return Decision{Allow: true}
	}

	octx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	answer, err := f.oracle.Classify(octx, keyword.Pattern, message, channelContext)
	if err != nil {
		f.log.Warn("classification oracle unavailable, allowing message",
			"keyword", keyword.Pattern, "error", err)
		return Decision{Allow: true}
	}
	if strings.ToUpper(strings.TrimSpace(answer)) == "NO" {
		return Decision{Allow: false, Stage: StageOracle, Reason: "oracle: not relevant"}
	}
	return Decision{Allow: true}
}
