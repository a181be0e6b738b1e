// Package conversation provides bounded per-user conversation history
// for multi-turn dialogue with the LLM backend.
package conversation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Metadata tracks session bookkeeping. MessageCount counts every
// message ever added and is only reset by Clear, never by trimming.
type Metadata struct {
	CreatedAt    time.Time  `json:"created_at"`
	LastUpdated  time.Time  `json:"last_updated"`
	ClearedAt    *time.Time `json:"cleared_at,omitempty"`
	MessageCount int        `json:"message_count"`
}

// Export is the full conversation state for one user.
type Export struct {
	UserID        string   `json:"user_id"`
	History       []Turn   `json:"history"`
	Metadata      Metadata `json:"metadata"`
	ExchangeCount int      `json:"exchange_count"`
}

// Config configures the Store.
type Config struct {
	// MaxExchanges is the number of user/assistant pairs to retain
	// per session (default: 6).
	MaxExchanges int
}

// DefaultConfig returns sensible defaults for conversation management.
func DefaultConfig() Config {
	return Config{MaxExchanges: 6}
}

// session holds one user's live history. Its mutex serializes all
// mutation for that user without blocking other users.
type session struct {
	mu    sync.Mutex
	turns []Turn
	meta  Metadata
}

// Store manages conversation history for multiple users. Sessions are
// created lazily on first access and live for the process lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	config   Config
	logger   zerolog.Logger
}

// NewStore creates a new conversation store.
func NewStore(config Config, logger zerolog.Logger) *Store {
	if config.MaxExchanges <= 0 {
		config.MaxExchanges = DefaultConfig().MaxExchanges
	}
	return &Store{
		sessions: make(map[string]*session),
		config:   config,
		logger:   logger.With().Str("component", "conversation").Logger(),
	}
}

// get returns the session for userID, creating it if absent.
func (s *Store) get(userID string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[userID]; ok {
		return sess
	}
	sess = &session{meta: Metadata{CreatedAt: time.Now()}}
	s.sessions[userID] = sess
	s.logger.Debug().Str("user", userID).Msg("Session created")
	return sess
}

// History returns a copy of the user's turn history, creating an empty
// session if the user is unknown.
func (s *Store) History(userID string) []Turn {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// AddMessage appends one turn to the user's history, then trims the
// oldest turns so at most 2×MaxExchanges remain. Callers append in
// user-then-assistant order per turn, so trimming from an even bound
// never splits a pair; prefer AddExchange when both sides are known.
func (s *Store) AddMessage(userID string, role Role, content string) {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.append(role, content)
	sess.trim(s.config.MaxExchanges)
}

// AddExchange appends a user message and its assistant reply as one
// serialized step, so a concurrent turn for the same user can never
// observe or interleave a half-recorded exchange.
func (s *Store) AddExchange(userID, userText, assistantText string) {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.append(RoleUser, userText)
	sess.append(RoleAssistant, assistantText)
	sess.trim(s.config.MaxExchanges)
}

// Clear empties the user's live history and records when. The creation
// timestamp is preserved; the lifetime message counter resets.
func (s *Store) Clear(userID string) {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := time.Now()
	sess.turns = nil
	sess.meta.ClearedAt = &now
	sess.meta.MessageCount = 0
	s.logger.Debug().Str("user", userID).Msg("Session cleared")
}

// FormatForModel builds the complete message sequence for the LLM:
// system prompt, stored history, then the new user message. It reads
// but never mutates state; history is only updated by an explicit
// AddExchange after the model responds.
func (s *Store) FormatForModel(userID, systemPrompt, newMessage string) []Turn {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	messages := make([]Turn, 0, len(sess.turns)+2)
	messages = append(messages, Turn{Role: RoleSystem, Content: systemPrompt})
	messages = append(messages, sess.turns...)
	messages = append(messages, Turn{Role: RoleUser, Content: newMessage})
	return messages
}

// ExchangeCount returns the number of complete user/assistant pairs in
// the user's live history.
func (s *Store) ExchangeCount(userID string) int {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.turns) / 2
}

// Metadata returns a copy of the user's session metadata.
func (s *Store) Metadata(userID string) Metadata {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.meta
}

// ExportHistory returns the full conversation state for a user.
func (s *Store) ExportHistory(userID string) Export {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	history := make([]Turn, len(sess.turns))
	copy(history, sess.turns)
	return Export{
		UserID:        userID,
		History:       history,
		Metadata:      sess.meta,
		ExchangeCount: len(sess.turns) / 2,
	}
}

// ListUsers returns the IDs of all known sessions.
func (s *Store) ListUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		users = append(users, id)
	}
	return users
}

// SessionCount returns the number of live sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// append adds a turn and updates metadata. Caller holds sess.mu.
func (sess *session) append(role Role, content string) {
	sess.turns = append(sess.turns, Turn{Role: role, Content: content})
	sess.meta.MessageCount++
	sess.meta.LastUpdated = time.Now()
}

// trim drops the oldest turns so at most 2×maxExchanges remain.
// Caller holds sess.mu.
func (sess *session) trim(maxExchanges int) {
	max := maxExchanges * 2
	if len(sess.turns) > max {
		sess.turns = append(sess.turns[:0:0], sess.turns[len(sess.turns)-max:]...)
	}
}
