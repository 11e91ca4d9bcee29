// Package session implements the per-owner conversational state machine that
// drives multi-step configuration flows over chat commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"newswatch_bot/internal/model"
	"newswatch_bot/internal/storage"
)

// DefaultTTL is the inactivity window after which a session expires.
const DefaultTTL = 30 * time.Minute

// Manager drives the configuration flows. Transitions for a single owner are
// serialized; different owners are fully independent.
type Manager struct {
	store storage.Storage
	ttl   time.Duration
	log   *slog.Logger

	mu     sync.Mutex
	owners map[int64]*sync.Mutex
}

// NewManager creates a Manager. A ttl of zero uses DefaultTTL.
func NewManager(store storage.Storage, ttl time.Duration, log *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		log:    log,
		owners: make(map[int64]*sync.Mutex),
	}
}

// TTL returns the configured inactivity window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) ownerLock(ownerID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.owners[ownerID]
	if !ok {
		l = &sync.Mutex{}
		m.owners[ownerID] = l
	}
	return l
}

// getLive returns the owner's session, treating expired sessions as absent.
func (m *Manager) getLive(ctx context.Context, ownerID int64) (*model.Session, error) {
	s, err := m.store.GetSession(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if time.Since(s.LastSeenAt) > m.ttl {
		if err := m.store.DeleteSession(ctx, ownerID); err != nil {
			m.log.Error("delete expired session", "owner_id", ownerID, "error", err)
		}
		return nil, storage.ErrNotFound
	}
	return s, nil
}

// start replaces whatever session the owner had with a fresh one. A new flow
// command implicitly cancels an in-progress flow.
func (m *Manager) start(ctx context.Context, ownerID int64, state model.SessionState, sctx model.SessionContext) error {
	s := &model.Session{
		OwnerID:      ownerID,
		State:        state,
		Context:      sctx,
		LastSeenAt:   time.Now().UTC(),
		MessageCount: 1,
	}
	if err := m.store.PutSession(ctx, s); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// StartKeywordFlow begins an add-keyword flow. The owner's next message is
// taken as the pattern.
func (m *Manager) StartKeywordFlow(ctx context.Context, ownerID int64, mode model.MatchMode) (string, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	switch mode {
	case model.MatchExact, model.MatchContains, model.MatchRegex:
	case "":
		mode = model.MatchContains
	default:
		return fmt.Sprintf("Unknown mode %q. Use: exact, contains, regex.", mode), nil
	}

	err := m.start(ctx, ownerID, model.StateAwaitingKeyword,
		model.SessionContext{Keyword: &model.KeywordDraft{Mode: mode}})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Send the keyword to watch for (%s match). /cancel to abort.", mode), nil
}

// StartChannelFlow begins an add-channel flow.
func (m *Manager) StartChannelFlow(ctx context.Context, ownerID int64) (string, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	err := m.start(ctx, ownerID, model.StateAwaitingChannel,
		model.SessionContext{Channel: &model.ChannelDraft{}})
	if err != nil {
		return "", err
	}
	return "Which platform is the channel on? (telegram or rss) /cancel to abort.", nil
}

// StartDestinationFlow begins an add-destination flow.
func (m *Manager) StartDestinationFlow(ctx context.Context, ownerID int64) (string, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	err := m.start(ctx, ownerID, model.StateAwaitingDestination,
		model.SessionContext{Destination: &model.DestinationDraft{}})
	if err != nil {
		return "", err
	}
	return "What kind of destination? (private_chat, group or channel) /cancel to abort.", nil
}

// StartSettingsFlow begins a settings flow for one of the owner's
// destinations.
func (m *Manager) StartSettingsFlow(ctx context.Context, ownerID, destinationID int64) (string, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	dest, err := m.store.GetDestination(ctx, destinationID)
	if err != nil || dest.OwnerID != ownerID {
		return fmt.Sprintf("Destination #%d not found.", destinationID), nil
	}

	err = m.start(ctx, ownerID, model.StateConfiguringSettings,
		model.SessionContext{Settings: &model.SettingsDraft{DestinationID: destinationID}})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Configuring destination #%d \"%s\".\nAdd a prefix to forwarded messages? (yes/no)",
		dest.ID, dest.Name), nil
}

// Cancel aborts the owner's in-progress flow, if any.
func (m *Manager) Cancel(ctx context.Context, ownerID int64) (string, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	_, err := m.getLive(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return "Nothing to cancel.", nil
	}
	if err != nil {
		return "", err
	}
	if err := m.store.DeleteSession(ctx, ownerID); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}
	return "Cancelled.", nil
}

// HandleText routes a plain-text message from an owner into their live flow.
// The second return value is false when no flow is in progress and the
// message should be ignored.
func (m *Manager) HandleText(ctx context.Context, ownerID int64, text string) (string, bool, error) {
	l := m.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	s, err := m.getLive(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	s.MessageCount++
	s.LastSeenAt = time.Now().UTC()
	text = strings.TrimSpace(text)

	var reply string
	switch s.State {
	case model.StateAwaitingKeyword:
		reply, err = m.stepKeyword(ctx, s, text)
	case model.StateAwaitingChannel:
		reply, err = m.stepChannel(ctx, s, text)
	case model.StateAwaitingDestination:
		reply, err = m.stepDestination(ctx, s, text)
	case model.StateConfiguringSettings:
		reply, err = m.stepSettings(ctx, s, text)
	default:
		return "", false, nil
	}
	if err != nil {
		return "", true, err
	}
	return reply, true, nil
}

// finish completes a flow and returns the owner to idle.
func (m *Manager) finish(ctx context.Context, ownerID int64) error {
	if err := m.store.DeleteSession(ctx, ownerID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// save persists an intermediate step of a flow.
func (m *Manager) save(ctx context.Context, s *model.Session) error {
	if err := m.store.PutSession(ctx, s); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (m *Manager) stepKeyword(ctx context.Context, s *model.Session, text string) (string, error) {
	draft := s.Context.Keyword
	if draft == nil {
		draft = &model.KeywordDraft{Mode: model.MatchContains}
	}
	if text == "" {
		return "The keyword cannot be empty. Send the keyword, or /cancel.", m.save(ctx, s)
	}

	k := &model.Keyword{
		OwnerID:  s.OwnerID,
		Pattern:  text,
		Mode:     draft.Mode,
		IsActive: true,
	}
	err := m.store.CreateKeyword(ctx, k)
	if errors.Is(err, storage.ErrDuplicate) {
		if ferr := m.finish(ctx, s.OwnerID); ferr != nil {
			return "", ferr
		}
		return fmt.Sprintf("You already have a rule for %q.", text), nil
	}
	if err != nil {
		return "", fmt.Errorf("create keyword: %w", err)
	}
	if err := m.finish(ctx, s.OwnerID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Keyword K%d %q added (%s match).", k.ID, k.Pattern, k.Mode), nil
}

func (m *Manager) stepChannel(ctx context.Context, s *model.Session, text string) (string, error) {
	draft := s.Context.Channel
	if draft == nil {
		draft = &model.ChannelDraft{}
		s.Context.Channel = draft
	}

	if draft.Platform == "" {
		p := strings.ToLower(text)
		if p != "telegram" && p != "rss" {
			return "Unsupported platform. Send \"telegram\" or \"rss\", or /cancel.", m.save(ctx, s)
		}
		draft.Platform = p
		if err := m.save(ctx, s); err != nil {
			return "", err
		}
		if p == "rss" {
			return "Now send the feed URL.", nil
		}
		return "Now send the channel's chat id or @username.", nil
	}

	draft.ChatID = text
	c := &model.Channel{
		OwnerID:         s.OwnerID,
		Platform:        draft.Platform,
		ChatID:          draft.ChatID,
		Name:            draft.ChatID,
		IsActive:        true,
		IntervalMinutes: 10,
		MaxPerCheck:     50,
	}
	err := m.store.CreateChannel(ctx, c)
	if errors.Is(err, storage.ErrDuplicate) {
		if ferr := m.finish(ctx, s.OwnerID); ferr != nil {
			return "", ferr
		}
		return fmt.Sprintf("You are already monitoring %s on %s.", draft.ChatID, draft.Platform), nil
	}
	if err != nil {
		return "", fmt.Errorf("create channel: %w", err)
	}
	if err := m.finish(ctx, s.OwnerID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Channel C%d added: %s on %s (checked every %d min).",
		c.ID, c.ChatID, c.Platform, c.IntervalMinutes), nil
}

func (m *Manager) stepDestination(ctx context.Context, s *model.Session, text string) (string, error) {
	draft := s.Context.Destination
	if draft == nil {
		draft = &model.DestinationDraft{}
		s.Context.Destination = draft
	}

	if draft.Type == "" {
		switch model.DestinationType(strings.ToLower(text)) {
		case model.DestPrivateChat, model.DestGroup, model.DestChannel:
			draft.Type = model.DestinationType(strings.ToLower(text))
		default:
			return "Unknown type. Send private_chat, group or channel, or /cancel.", m.save(ctx, s)
		}
		if err := m.save(ctx, s); err != nil {
			return "", err
		}
		return "Now send the target chat id or @username.", nil
	}

	draft.ChatID = text
	d := &model.Destination{
		OwnerID:        s.OwnerID,
		Type:           draft.Type,
		Platform:       "telegram",
		ChatID:         draft.ChatID,
		Name:           draft.ChatID,
		IsActive:       true,
		IncludeMedia:   true,
		IncludeCaption: true,
	}
	if err := m.store.CreateDestination(ctx, d); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	if err := m.finish(ctx, s.OwnerID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Destination D%d added: %s (%s). Use /settings %d to adjust forwarding.",
		d.ID, d.ChatID, d.Type, d.ID), nil
}

// stepSettings fills one field of the settings draft per message and applies
// the settings once all required fields are present.
func (m *Manager) stepSettings(ctx context.Context, s *model.Session, text string) (string, error) {
	draft := s.Context.Settings
	if draft == nil {
		if err := m.finish(ctx, s.OwnerID); err != nil {
			return "", err
		}
		return "Settings flow lost its context, please start over.", nil
	}

	switch {
	case draft.AddPrefix == nil:
		v, ok := parseYesNo(text)
		if !ok {
			return "Please answer yes or no: add a prefix to forwarded messages?", m.save(ctx, s)
		}
		draft.AddPrefix = &v
		if v {
			if err := m.save(ctx, s); err != nil {
				return "", err
			}
			return "Send the prefix text.", nil
		}
		empty := ""
		draft.PrefixText = &empty
		if err := m.save(ctx, s); err != nil {
			return "", err
		}
		return "Include media links? (yes/no)", nil

	case draft.PrefixText == nil:
		draft.PrefixText = &text
		if err := m.save(ctx, s); err != nil {
			return "", err
		}
		return "Include media links? (yes/no)", nil

	case draft.IncludeMedia == nil:
		v, ok := parseYesNo(text)
		if !ok {
			return "Please answer yes or no: include media links?", m.save(ctx, s)
		}
		draft.IncludeMedia = &v
		if err := m.save(ctx, s); err != nil {
			return "", err
		}
		return "Include captions? (yes/no)", nil

	default:
		v, ok := parseYesNo(text)
		if !ok {
			return "Please answer yes or no: include captions?", m.save(ctx, s)
		}
		draft.IncludeCaption = &v

		dest, err := m.store.GetDestination(ctx, draft.DestinationID)
		if err != nil {
			return "", fmt.Errorf("get destination: %w", err)
		}
		dest.AddPrefix = *draft.AddPrefix
		dest.PrefixText = *draft.PrefixText
		dest.IncludeMedia = *draft.IncludeMedia
		dest.IncludeCaption = *draft.IncludeCaption
		if err := m.store.UpdateDestination(ctx, dest); err != nil {
			return "", fmt.Errorf("update destination: %w", err)
		}
		if err := m.finish(ctx, s.OwnerID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Destination D%d settings saved.", dest.ID), nil
	}
}

func parseYesNo(text string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y":
		return true, true
	case "no", "n":
		return false, true
	}
	return false, false
}
