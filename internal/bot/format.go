package bot

import (
	"fmt"
	"strings"

	"newswatch_bot/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"
)

// FormatKeywordList formats an owner's keyword rules for display.
func FormatKeywordList(keywords []model.Keyword) string {
	if len(keywords) == 0 {
		return "You have no keyword rules yet. Use /addkeyword to add one."
	}
	var b strings.Builder
	b.WriteString("Your keywords:\n")
	for _, k := range keywords {
		status := statusActive
		if !k.IsActive {
			status = "inactive"
		}
		fmt.Fprintf(&b, "\nK%d %q (%s, priority %d) [%s] — %d matches\n",
			k.ID, k.Pattern, k.Mode, k.Priority, status, k.MatchCount)
		if len(k.IrrelevantPhrases) > 0 {
			fmt.Fprintf(&b, "   ignored contexts: %s\n", strings.Join(k.IrrelevantPhrases, "; "))
		}
	}
	return b.String()
}

// FormatChannelList formats an owner's monitored channels for display.
func FormatChannelList(channels []model.Channel) string {
	if len(channels) == 0 {
		return "You have no monitored channels yet. Use /addchannel to add one."
	}
	var b strings.Builder
	b.WriteString("Your channels:\n")
	for _, c := range channels {
		status := statusActive
		if !c.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\nC%d %s (%s, every %d min) [%s]\n",
			c.ID, c.Name, c.Platform, c.IntervalMinutes, status)
		if c.LastCheckAt != nil {
			fmt.Fprintf(&b, "   last check: %s\n", c.LastCheckAt.Format("2006-01-02 15:04 UTC"))
		}
	}
	return b.String()
}

// FormatDestinationList formats an owner's destinations for display.
func FormatDestinationList(dests []model.Destination) string {
	if len(dests) == 0 {
		return "You have no destinations yet. Use /adddestination to add one."
	}
	var b strings.Builder
	b.WriteString("Your destinations:\n")
	for _, d := range dests {
		status := statusActive
		if !d.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\nD%d %s (%s) [%s]\n", d.ID, d.Name, d.Type, status)
		var opts []string
		if d.AddPrefix {
			opts = append(opts, fmt.Sprintf("prefix %q", d.PrefixText))
		}
		if d.IncludeMedia {
			opts = append(opts, "media")
		}
		if d.IncludeCaption {
			opts = append(opts, "captions")
		}
		if len(opts) > 0 {
			fmt.Fprintf(&b, "   forwarding: %s\n", strings.Join(opts, ", "))
		}
	}
	return b.String()
}

// FormatRecord formats one match record with its delivery outcomes.
func FormatRecord(rec *model.MatchRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "M%d [%s] %q in %s (%s)\n",
		rec.ID, rec.Status, rec.MatchedText, rec.ChannelName, rec.CreatedAt.Format("2006-01-02 15:04 UTC"))
	if rec.DuplicateOf != nil {
		fmt.Fprintf(&b, "   duplicate of M%d\n", *rec.DuplicateOf)
	}
	text := rec.MessageText
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	fmt.Fprintf(&b, "   %s\n", text)
	for _, o := range rec.Outcomes {
		if o.Error != "" {
			fmt.Fprintf(&b, "   D%d: %s (%s)\n", o.DestinationID, o.Status, o.Error)
		} else {
			fmt.Fprintf(&b, "   D%d: %s\n", o.DestinationID, o.Status)
		}
	}
	return b.String()
}

// FormatRecordList formats a history of match records.
func FormatRecordList(records []model.MatchRecord) string {
	if len(records) == 0 {
		return "No matches yet."
	}
	var b strings.Builder
	b.WriteString("Recent matches:\n")
	for i := range records {
		b.WriteString("\n")
		b.WriteString(FormatRecord(&records[i]))
	}
	return b.String()
}
