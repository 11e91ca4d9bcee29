// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"newswatch_bot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
// For match records this is the expected duplicate-detection signal, not an
// error condition.
var ErrDuplicate = errors.New("duplicate")

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateKeyword(ctx context.Context, k *model.Keyword) error
	GetKeyword(ctx context.Context, id int64) (*model.Keyword, error)
	ListKeywords(ctx context.Context, ownerID int64) ([]model.Keyword, error)
	ListActiveKeywords(ctx context.Context, ownerID int64) ([]model.Keyword, error)
	UpdateKeyword(ctx context.Context, k *model.Keyword) error
	DeactivateKeyword(ctx context.Context, id int64) error
	IncrementKeywordMatches(ctx context.Context, id int64) error

	CreateChannel(ctx context.Context, c *model.Channel) error
	GetChannel(ctx context.Context, id int64) (*model.Channel, error)
	ListChannels(ctx context.Context, ownerID int64) ([]model.Channel, error)
	ListDueChannels(ctx context.Context) ([]model.Channel, error)
	UpdateChannel(ctx context.Context, c *model.Channel) error
	DeleteChannel(ctx context.Context, id int64) error

	CreateDestination(ctx context.Context, d *model.Destination) error
	GetDestination(ctx context.Context, id int64) (*model.Destination, error)
	ListDestinations(ctx context.Context, ownerID int64) ([]model.Destination, error)
	ListActiveDestinations(ctx context.Context, ownerID int64) ([]model.Destination, error)
	UpdateDestination(ctx context.Context, d *model.Destination) error
	SetDestinationResolvedID(ctx context.Context, id, chatID int64) error
	DeleteDestination(ctx context.Context, id int64) error

	// InsertMatchRecord inserts atomically; a processed record for the same
	// (platform, message_id) already existing yields ErrDuplicate.
	InsertMatchRecord(ctx context.Context, r *model.MatchRecord) error
	FindProcessedRecord(ctx context.Context, platform, messageID string) (*model.MatchRecord, error)
	GetRecord(ctx context.Context, id int64) (*model.MatchRecord, error)
	ListRecords(ctx context.Context, ownerID int64, limit int) ([]model.MatchRecord, error)
	SetRecordStatus(ctx context.Context, id int64, status model.RecordStatus) error
	SetRecordLatency(ctx context.Context, id, latencyMS int64) error
	AppendOutcome(ctx context.Context, o *model.DeliveryOutcome) error
	UpdateOutcome(ctx context.Context, o *model.DeliveryOutcome) error
	PurgeRecordsBefore(ctx context.Context, t time.Time) (int64, error)

	GetSession(ctx context.Context, ownerID int64) (*model.Session, error)
	PutSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, ownerID int64) error
	DeleteSessionsIdleSince(ctx context.Context, t time.Time) (int64, error)

	Close() error
}
