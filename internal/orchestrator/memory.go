package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore supplies conversational context for a user session. The
// returned text is appended to the system prompt.
type MemoryStore interface {
	Context(ctx context.Context, userID, sessionID string) (string, error)
}

// MemoryRecorder is implemented by stores that learn from completed exchanges.
type MemoryRecorder interface {
	Remember(ctx context.Context, userID, sessionID, prompt, answer string) error
}

// DefaultSessionTurns is the number of exchanges SessionMemory keeps per session.
const DefaultSessionTurns = 6

// Session bounds for SessionMemory. The least recently written session is
// dropped once DefaultMaxSessions is reached, and idle sessions expire.
const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 2 * time.Hour
)

// maxTurnChars bounds each remembered prompt and answer.
const maxTurnChars = 1500

// SessionMemory is an in-process MemoryStore holding the last few exchanges
// of each session. Nothing is persisted.
type SessionMemory struct {
	mu       sync.Mutex
	turns    int
	sessions *expirable.LRU[string, []exchange]
}

// SessionOption configures a SessionMemory.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	maxSessions int
	ttl         time.Duration
}

// WithMaxSessions caps the number of sessions kept.
func WithMaxSessions(n int) SessionOption {
	return func(o *sessionOptions) { o.maxSessions = n }
}

// WithSessionTTL sets how long a session survives without a new exchange.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(o *sessionOptions) { o.ttl = ttl }
}

type exchange struct {
	prompt string
	answer string
}

// NewSessionMemory creates a store keeping up to turns exchanges per session.
func NewSessionMemory(turns int, opts ...SessionOption) *SessionMemory {
	if turns <= 0 {
		turns = DefaultSessionTurns
	}
	o := sessionOptions{maxSessions: DefaultMaxSessions, ttl: DefaultSessionTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSessions <= 0 {
		o.maxSessions = DefaultMaxSessions
	}
	if o.ttl <= 0 {
		o.ttl = DefaultSessionTTL
	}
	return &SessionMemory{
		turns:    turns,
		sessions: expirable.NewLRU[string, []exchange](o.maxSessions, nil, o.ttl),
	}
}

// Context renders the remembered exchanges, oldest first. An unknown or
// anonymous session yields an empty string.
func (m *SessionMemory) Context(ctx context.Context, userID, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, ok := sessionKey(userID, sessionID)
	if !ok {
		return "", nil
	}

	m.mu.Lock()
	stored, _ := m.sessions.Peek(key)
	history := append([]exchange(nil), stored...)
	m.mu.Unlock()

	if len(history) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Earlier in this conversation:\n")
	for i, ex := range history {
		fmt.Fprintf(&b, "\n[%d] User: %s\n[%d] Assistant: %s\n", i+1, ex.prompt, i+1, ex.answer)
	}
	return b.String(), nil
}

// Remember stores one exchange, evicting the oldest once the session is full.
func (m *SessionMemory) Remember(ctx context.Context, userID, sessionID, prompt, answer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := sessionKey(userID, sessionID)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, _ := m.sessions.Peek(key)
	history := append(append([]exchange(nil), stored...), exchange{
		prompt: truncate(prompt, maxTurnChars),
		answer: truncate(answer, maxTurnChars),
	})
	if len(history) > m.turns {
		history = history[len(history)-m.turns:]
	}
	m.sessions.Add(key, history)
	return nil
}

// Sessions returns the number of sessions with remembered exchanges.
func (m *SessionMemory) Sessions() int {
	return m.sessions.Len()
}

func sessionKey(userID, sessionID string) (string, bool) {
	if userID == "" && sessionID == "" {
		return "", false
	}
	return userID + "\x00" + sessionID, true
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
