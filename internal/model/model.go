// Package model defines the domain types used across the application.
package model

import "time"

// MatchMode defines how a keyword pattern is compared against message text.
type MatchMode string

// Supported match modes.
const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchRegex    MatchMode = "regex"
)

// Keyword represents a single keyword rule owned by a user.
// IrrelevantPhrases lists contexts in which the pattern is a known false
// positive (e.g. "industrial revolution" for the keyword "revolution").
type Keyword struct {
	ID                int64
	OwnerID           int64
	Pattern           string
	Mode              MatchMode
	CaseSensitive     bool
	Priority          int
	IsActive          bool
	MatchCount        int64
	IrrelevantPhrases []string
	CreatedAt         time.Time
}

// Channel represents a monitored source chat on a messaging platform.
// For platform "rss" the ChatID holds the feed URL.
type Channel struct {
	ID              int64
	OwnerID         int64
	Platform        string
	ChatID          string
	Name            string
	IsActive        bool
	IntervalMinutes int
	MaxPerCheck     int
	Credentials     string
	LastCheckAt     *time.Time
	CreatedAt       time.Time
}

// DestinationType defines the kind of target chat.
type DestinationType string

// Supported destination types.
const (
	DestPrivateChat DestinationType = "private_chat"
	DestGroup       DestinationType = "group"
	DestChannel     DestinationType = "channel"
)

// Destination represents a target chat that receives forwarded messages.
// ChatID may be an @username; ResolvedChatID caches the numeric id once
// resolution has succeeded.
type Destination struct {
	ID             int64
	OwnerID        int64
	Type           DestinationType
	Platform       string
	ChatID         string
	ResolvedChatID *int64
	Name           string
	IsActive       bool
	IncludeMedia   bool
	IncludeCaption bool
	AddPrefix      bool
	PrefixText     string
	CreatedAt      time.Time
}

// RecordStatus is the overall status of a match record.
type RecordStatus string

// Match record statuses.
const (
	StatusProcessed RecordStatus = "processed"
	StatusDuplicate RecordStatus = "duplicate"
	StatusError     RecordStatus = "error"
	StatusFiltered  RecordStatus = "filtered"
)

// MatchRecord is the audit record created for every message that passed the
// smart filter. DuplicateOf references the original record when Status is
// duplicate.
type MatchRecord struct {
	ID          int64
	OwnerID     int64
	KeywordID   int64
	ChannelID   int64
	Platform    string
	MessageID   string
	ChannelName string
	MessageText string
	MatchedText string
	MediaURL    string
	Caption     string
	Status      RecordStatus
	DuplicateOf *int64
	LatencyMS   int64
	CreatedAt   time.Time
	Outcomes    []DeliveryOutcome
}

// OutcomeStatus is the per-destination delivery status.
type OutcomeStatus string

// Delivery outcome statuses.
const (
	OutcomePending OutcomeStatus = "pending"
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// DeliveryOutcome tracks one delivery attempt of a record to one destination.
// There is exactly one outcome per (record, destination) pair; retries update
// it in place.
type DeliveryOutcome struct {
	ID            int64
	RecordID      int64
	DestinationID int64
	Status        OutcomeStatus
	Error         string
	UpdatedAt     time.Time
}

// SessionState is the current step of a conversational configuration flow.
type SessionState string

// Session states.
const (
	StateIdle                SessionState = "idle"
	StateAwaitingKeyword     SessionState = "awaiting_keyword"
	StateAwaitingChannel     SessionState = "awaiting_channel"
	StateAwaitingDestination SessionState = "awaiting_destination"
	StateConfiguringSettings SessionState = "configuring_settings"
)

// KeywordDraft holds the in-progress data of an add-keyword flow.
type KeywordDraft struct {
	Mode MatchMode `json:"mode"`
}

// ChannelDraft holds the in-progress data of an add-channel flow.
type ChannelDraft struct {
	Platform string `json:"platform"`
	ChatID   string `json:"chat_id"`
}

// DestinationDraft holds the in-progress data of an add-destination flow.
type DestinationDraft struct {
	Type   DestinationType `json:"type"`
	ChatID string          `json:"chat_id"`
}

// SettingsDraft holds the in-progress data of a destination settings flow.
// Nil fields have not been answered yet.
type SettingsDraft struct {
	DestinationID  int64   `json:"destination_id"`
	AddPrefix      *bool   `json:"add_prefix,omitempty"`
	PrefixText     *string `json:"prefix_text,omitempty"`
	IncludeMedia   *bool   `json:"include_media,omitempty"`
	IncludeCaption *bool   `json:"include_caption,omitempty"`
}

// SessionContext is a tagged union keyed by the session state: only the
// variant matching the current state is non-nil.
type SessionContext struct {
	Keyword     *KeywordDraft     `json:"keyword,omitempty"`
	Channel     *ChannelDraft     `json:"channel,omitempty"`
	Destination *DestinationDraft `json:"destination,omitempty"`
	Settings    *SettingsDraft    `json:"settings,omitempty"`
}

// Session is the per-owner conversational state. At most one session exists
// per owner; sessions expire after a fixed inactivity window.
type Session struct {
	OwnerID      int64
	State        SessionState
	Context      SessionContext
	LastSeenAt   time.Time
	MessageCount int
}
