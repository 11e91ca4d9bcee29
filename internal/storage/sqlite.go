package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newswatch_bot/internal/model"
	"newswatch_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite has a single writer; one pooled connection also keeps a
	// :memory: database shared instead of one per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// --- keywords ---

// CreateKeyword inserts a new keyword rule and populates its ID and CreatedAt.
// A second rule with the same (owner, pattern) pair yields ErrDuplicate.
func (s *SQLite) CreateKeyword(ctx context.Context, k *model.Keyword) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO keywords
		 (owner_id, pattern, mode, case_sensitive, priority, is_active, match_count, irrelevant_phrases, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		k.OwnerID, k.Pattern, string(k.Mode), boolToInt(k.CaseSensitive), k.Priority,
		boolToInt(k.IsActive), joinPhrases(k.IrrelevantPhrases), now,
	)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	k.ID = id
	k.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetKeyword returns a single keyword rule by its ID.
func (s *SQLite) GetKeyword(ctx context.Context, id int64) (*model.Keyword, error) {
	row := s.db.QueryRowContext(ctx, keywordSelect+` WHERE id = ?`, id)
	k, err := scanKeyword(row)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListKeywords returns all keyword rules belonging to the given owner.
func (s *SQLite) ListKeywords(ctx context.Context, ownerID int64) ([]model.Keyword, error) {
	return s.queryKeywords(ctx, keywordSelect+` WHERE owner_id = ? ORDER BY priority DESC, id`, ownerID)
}

// ListActiveKeywords returns the owner's active rules ordered by priority.
func (s *SQLite) ListActiveKeywords(ctx context.Context, ownerID int64) ([]model.Keyword, error) {
	return s.queryKeywords(ctx,
		keywordSelect+` WHERE owner_id = ? AND is_active = 1 ORDER BY priority DESC, id`, ownerID)
}

// UpdateKeyword persists changes to an existing keyword rule.
func (s *SQLite) UpdateKeyword(ctx context.Context, k *model.Keyword) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET pattern = ?, mode = ?, case_sensitive = ?, priority = ?,
		 is_active = ?, irrelevant_phrases = ? WHERE id = ?`,
		k.Pattern, string(k.Mode), boolToInt(k.CaseSensitive), k.Priority,
		boolToInt(k.IsActive), joinPhrases(k.IrrelevantPhrases), k.ID,
	)
	if err != nil {
		return fmt.Errorf("update keyword: %w", err)
	}
	return nil
}

// DeactivateKeyword soft-deletes a rule. Rules are never removed while audit
// records may still reference them.
func (s *SQLite) DeactivateKeyword(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE keywords SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate keyword: %w", err)
	}
	return nil
}

// IncrementKeywordMatches bumps the per-rule match counter.
func (s *SQLite) IncrementKeywordMatches(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE keywords SET match_count = match_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment keyword matches: %w", err)
	}
	return nil
}

// --- channels ---

// CreateChannel inserts a new channel subscription and populates its ID and
// CreatedAt. A duplicate (owner, platform, chat_id) yields ErrDuplicate.
func (s *SQLite) CreateChannel(ctx context.Context, c *model.Channel) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO channels
		 (owner_id, platform, chat_id, name, is_active, interval_minutes, max_per_check, credentials, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.OwnerID, c.Platform, c.ChatID, c.Name, boolToInt(c.IsActive),
		c.IntervalMinutes, c.MaxPerCheck, c.Credentials, now,
	)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetChannel returns a single channel by its ID.
func (s *SQLite) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	row := s.db.QueryRowContext(ctx, channelSelect+` WHERE id = ?`, id)
	c, err := scanChannel(row)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChannels returns all channels belonging to the given owner.
func (s *SQLite) ListChannels(ctx context.Context, ownerID int64) ([]model.Channel, error) {
	return s.queryChannels(ctx, channelSelect+` WHERE owner_id = ? ORDER BY id`, ownerID)
}

// ListDueChannels returns all active channels that are due for checking.
func (s *SQLite) ListDueChannels(ctx context.Context) ([]model.Channel, error) {
	now := time.Now().UTC().Format(timeLayout)
	return s.queryChannels(ctx,
		channelSelect+`
		 WHERE is_active = 1
		   AND (last_check_at IS NULL
		        OR datetime(last_check_at, '+' || interval_minutes || ' minutes') <= datetime(?))`,
		now,
	)
}

// UpdateChannel persists changes to an existing channel.
func (s *SQLite) UpdateChannel(ctx context.Context, c *model.Channel) error {
	var lastCheck *string
	if c.LastCheckAt != nil {
		v := c.LastCheckAt.UTC().Format(timeLayout)
		lastCheck = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET name = ?, is_active = ?, interval_minutes = ?, max_per_check = ?,
		 credentials = ?, last_check_at = ? WHERE id = ?`,
		c.Name, boolToInt(c.IsActive), c.IntervalMinutes, c.MaxPerCheck, c.Credentials, lastCheck, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}

// DeleteChannel removes a channel subscription.
func (s *SQLite) DeleteChannel(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

// --- destinations ---

// CreateDestination inserts a new destination and populates its ID and CreatedAt.
func (s *SQLite) CreateDestination(ctx context.Context, d *model.Destination) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO destinations
		 (owner_id, type, platform, chat_id, resolved_chat_id, name, is_active,
		  include_media, include_caption, add_prefix, prefix_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.OwnerID, string(d.Type), d.Platform, d.ChatID, d.ResolvedChatID, d.Name,
		boolToInt(d.IsActive), boolToInt(d.IncludeMedia), boolToInt(d.IncludeCaption),
		boolToInt(d.AddPrefix), d.PrefixText, now,
	)
	if err != nil {
		return fmt.Errorf("insert destination: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetDestination returns a single destination by its ID.
func (s *SQLite) GetDestination(ctx context.Context, id int64) (*model.Destination, error) {
	row := s.db.QueryRowContext(ctx, destinationSelect+` WHERE id = ?`, id)
	d, err := scanDestination(row)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDestinations returns all destinations belonging to the given owner.
func (s *SQLite) ListDestinations(ctx context.Context, ownerID int64) ([]model.Destination, error) {
	return s.queryDestinations(ctx, destinationSelect+` WHERE owner_id = ? ORDER BY id`, ownerID)
}

// ListActiveDestinations returns the owner's active destinations.
func (s *SQLite) ListActiveDestinations(ctx context.Context, ownerID int64) ([]model.Destination, error) {
	return s.queryDestinations(ctx,
		destinationSelect+` WHERE owner_id = ? AND is_active = 1 ORDER BY id`, ownerID)
}

// UpdateDestination persists changes to an existing destination.
func (s *SQLite) UpdateDestination(ctx context.Context, d *model.Destination) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE destinations SET type = ?, chat_id = ?, resolved_chat_id = ?, name = ?, is_active = ?,
		 include_media = ?, include_caption = ?, add_prefix = ?, prefix_text = ? WHERE id = ?`,
		string(d.Type), d.ChatID, d.ResolvedChatID, d.Name, boolToInt(d.IsActive),
		boolToInt(d.IncludeMedia), boolToInt(d.IncludeCaption), boolToInt(d.AddPrefix),
		d.PrefixText, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update destination: %w", err)
	}
	return nil
}

// SetDestinationResolvedID persists the numeric chat id resolved from an
// @username so subsequent deliveries skip resolution.
func (s *SQLite) SetDestinationResolvedID(ctx context.Context, id, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE destinations SET resolved_chat_id = ? WHERE id = ?`, chatID, id)
	if err != nil {
		return fmt.Errorf("set resolved chat id: %w", err)
	}
	return nil
}

// DeleteDestination removes a destination.
func (s *SQLite) DeleteDestination(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM destinations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete destination: %w", err)
	}
	return nil
}

// --- match records ---

// InsertMatchRecord inserts an audit record. When the record's status is
// processed and another processed record already exists for the same
// (platform, message_id), nothing is inserted and ErrDuplicate is returned.
// The uniqueness constraint makes the check-then-insert atomic under
// concurrent submissions of the same source message.
func (s *SQLite) InsertMatchRecord(ctx context.Context, r *model.MatchRecord) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO match_records
		 (owner_id, keyword_id, channel_id, platform, message_id, channel_name,
		  message_text, matched_text, media_url, caption, status, duplicate_of, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OwnerID, r.KeywordID, r.ChannelID, r.Platform, r.MessageID, r.ChannelName,
		r.MessageText, r.MatchedText, r.MediaURL, r.Caption, string(r.Status),
		r.DuplicateOf, r.LatencyMS, now,
	)
	if err != nil {
		return fmt.Errorf("insert match record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// FindProcessedRecord returns the processed record for a source message.
func (s *SQLite) FindProcessedRecord(ctx context.Context, platform, messageID string) (*model.MatchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		recordSelect+` WHERE platform = ? AND message_id = ? AND status = 'processed'`,
		platform, messageID,
	)
	r, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRecord returns a single audit record with its delivery outcomes.
func (s *SQLite) GetRecord(ctx context.Context, id int64) (*model.MatchRecord, error) {
	row := s.db.QueryRowContext(ctx, recordSelect+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	if r.Outcomes, err = s.listOutcomes(ctx, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecords returns the owner's most recent audit records with outcomes.
func (s *SQLite) ListRecords(ctx context.Context, ownerID int64, limit int) ([]model.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		recordSelect+` WHERE owner_id = ? ORDER BY id DESC LIMIT ?`, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.MatchRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Outcomes, err = s.listOutcomes(ctx, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// SetRecordStatus updates the terminal status of an audit record.
func (s *SQLite) SetRecordStatus(ctx context.Context, id int64, status model.RecordStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE match_records SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	return nil
}

// SetRecordLatency stores the pipeline processing latency for a record.
func (s *SQLite) SetRecordLatency(ctx context.Context, id, latencyMS int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE match_records SET latency_ms = ? WHERE id = ?`, latencyMS, id)
	if err != nil {
		return fmt.Errorf("set record latency: %w", err)
	}
	return nil
}

// AppendOutcome inserts a delivery outcome for a (record, destination) pair.
// A second outcome for the same pair yields ErrDuplicate.
func (s *SQLite) AppendOutcome(ctx context.Context, o *model.DeliveryOutcome) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO delivery_outcomes (record_id, destination_id, status, error, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		o.RecordID, o.DestinationID, string(o.Status), o.Error, now,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	o.ID = id
	o.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// UpdateOutcome updates an existing delivery outcome in place.
func (s *SQLite) UpdateOutcome(ctx context.Context, o *model.DeliveryOutcome) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE delivery_outcomes SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(o.Status), o.Error, now, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	o.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// PurgeRecordsBefore deletes audit records created before t along with their
// outcomes, returning the number of records removed.
func (s *SQLite) PurgeRecordsBefore(ctx context.Context, t time.Time) (int64, error) {
	cutoff := t.UTC().Format(timeLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM delivery_outcomes WHERE record_id IN
		 (SELECT id FROM match_records WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("purge outcomes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM match_records WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, tx.Commit()
}

func (s *SQLite) listOutcomes(ctx context.Context, recordID int64) ([]model.DeliveryOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, destination_id, status, error, updated_at
		 FROM delivery_outcomes WHERE record_id = ? ORDER BY id`, recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var outcomes []model.DeliveryOutcome
	for rows.Next() {
		var o model.DeliveryOutcome
		var statusStr, updatedStr string
		if err := rows.Scan(&o.ID, &o.RecordID, &o.DestinationID, &statusStr, &o.Error, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = model.OutcomeStatus(statusStr)
		o.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// --- sessions ---

// GetSession returns the live session for an owner, or ErrNotFound.
func (s *SQLite) GetSession(ctx context.Context, ownerID int64) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_id, state, context, last_seen_at, message_count FROM sessions WHERE owner_id = ?`,
		ownerID,
	)
	var sess model.Session
	var stateStr, ctxStr, seenStr string
	err := row.Scan(&sess.OwnerID, &stateStr, &ctxStr, &seenStr, &sess.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.State = model.SessionState(stateStr)
	if err := json.Unmarshal([]byte(ctxStr), &sess.Context); err != nil {
		return nil, fmt.Errorf("decode session context: %w", err)
	}
	sess.LastSeenAt, _ = time.Parse(timeLayout, seenStr)
	return &sess, nil
}

// PutSession upserts the owner's session. The owner-id primary key guarantees
// at most one live session per owner.
func (s *SQLite) PutSession(ctx context.Context, sess *model.Session) error {
	ctxJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	seen := sess.LastSeenAt.UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (owner_id, state, context, last_seen_at, message_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   state = excluded.state, context = excluded.context,
		   last_seen_at = excluded.last_seen_at, message_count = excluded.message_count`,
		sess.OwnerID, string(sess.State), string(ctxJSON), seen, sess.MessageCount,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// DeleteSession removes the owner's session.
func (s *SQLite) DeleteSession(ctx context.Context, ownerID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsIdleSince removes sessions whose last interaction is older
// than t, returning the number removed.
func (s *SQLite) DeleteSessionsIdleSince(ctx context.Context, t time.Time) (int64, error) {
	cutoff := t.UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// --- scan helpers ---

const keywordSelect = `SELECT id, owner_id, pattern, mode, case_sensitive, priority, is_active,
 match_count, irrelevant_phrases, created_at FROM keywords`

const channelSelect = `SELECT id, owner_id, platform, chat_id, name, is_active, interval_minutes,
 max_per_check, credentials, last_check_at, created_at FROM channels`

const destinationSelect = `SELECT id, owner_id, type, platform, chat_id, resolved_chat_id, name,
 is_active, include_media, include_caption, add_prefix, prefix_text, created_at FROM destinations`

const recordSelect = `SELECT id, owner_id, keyword_id, channel_id, platform, message_id, channel_name,
 message_text, matched_text, media_url, caption, status, duplicate_of, latency_ms, created_at
 FROM match_records`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinPhrases(phrases []string) string {
	return strings.Join(phrases, "\n")
}

func splitPhrases(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanKeyword(row scannable) (model.Keyword, error) {
	var k model.Keyword
	var modeStr, phrases, createdStr string
	var caseSensitive, isActive int
	err := row.Scan(&k.ID, &k.OwnerID, &k.Pattern, &modeStr, &caseSensitive, &k.Priority,
		&isActive, &k.MatchCount, &phrases, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return k, ErrNotFound
	}
	if err != nil {
		return k, fmt.Errorf("scan keyword: %w", err)
	}
	k.Mode = model.MatchMode(modeStr)
	k.CaseSensitive = caseSensitive == 1
	k.IsActive = isActive == 1
	k.IrrelevantPhrases = splitPhrases(phrases)
	k.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return k, nil
}

func (s *SQLite) queryKeywords(ctx context.Context, query string, args ...any) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []model.Keyword
	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

func scanChannel(row scannable) (model.Channel, error) {
	var c model.Channel
	var isActive int
	var lastCheck sql.NullString
	var createdStr string
	err := row.Scan(&c.ID, &c.OwnerID, &c.Platform, &c.ChatID, &c.Name, &isActive,
		&c.IntervalMinutes, &c.MaxPerCheck, &c.Credentials, &lastCheck, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("scan channel: %w", err)
	}
	c.IsActive = isActive == 1
	if lastCheck.Valid {
		t, _ := time.Parse(timeLayout, lastCheck.String)
		c.LastCheckAt = &t
	}
	c.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return c, nil
}

func (s *SQLite) queryChannels(ctx context.Context, query string, args ...any) ([]model.Channel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var channels []model.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func scanDestination(row scannable) (model.Destination, error) {
	var d model.Destination
	var typeStr, createdStr string
	var resolved sql.NullInt64
	var isActive, media, caption, prefix int
	err := row.Scan(&d.ID, &d.OwnerID, &typeStr, &d.Platform, &d.ChatID, &resolved, &d.Name,
		&isActive, &media, &caption, &prefix, &d.PrefixText, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, fmt.Errorf("scan destination: %w", err)
	}
	d.Type = model.DestinationType(typeStr)
	if resolved.Valid {
		v := resolved.Int64
		d.ResolvedChatID = &v
	}
	d.IsActive = isActive == 1
	d.IncludeMedia = media == 1
	d.IncludeCaption = caption == 1
	d.AddPrefix = prefix == 1
	d.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return d, nil
}

func (s *SQLite) queryDestinations(ctx context.Context, query string, args ...any) ([]model.Destination, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dests []model.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, rows.Err()
}

func scanRecord(row scannable) (model.MatchRecord, error) {
	var r model.MatchRecord
	var statusStr, createdStr string
	var duplicateOf sql.NullInt64
	err := row.Scan(&r.ID, &r.OwnerID, &r.KeywordID, &r.ChannelID, &r.Platform, &r.MessageID,
		&r.ChannelName, &r.MessageText, &r.MatchedText, &r.MediaURL, &r.Caption,
		&statusStr, &duplicateOf, &r.LatencyMS, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("scan record: %w", err)
	}
	r.Status = model.RecordStatus(statusStr)
	if duplicateOf.Valid {
		v := duplicateOf.Int64
		r.DuplicateOf = &v
	}
	r.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return r, nil
}
