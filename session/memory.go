package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"voiceagent/core"
)

// MemoryStore is the default Store: a process-local map of sessions with a
// per-session mutex guarding read-modify-write access to the message list.
// The map lock is only ever held briefly for lookups; provider calls never
// happen under either lock.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*memorySession
	maxMessages int
}

type memorySession struct {
	mu   sync.Mutex
	sess Session
}

// NewMemoryStore creates an in-memory store trimming each session to
// maxMessages (DefaultMaxMessages when <= 0).
func NewMemoryStore(maxMessages int) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &MemoryStore{
		sessions:    make(map[string]*memorySession),
		maxMessages: maxMessages,
	}
}

// entry returns the live session entry, creating it lazily on first
// reference.
func (s *MemoryStore) entry(sessionID string) *memorySession {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e
	}
	now := time.Now()
	e = &memorySession{
		sess: Session{
			ID:             sessionID,
			CreatedAt:      now,
			LastActivityAt: now,
		},
	}
	s.sessions[sessionID] = e
	return e
}

func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (*Session, error) {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(&e.sess), nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID string, role core.Role, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return core.NewError(core.ValidationError, "message content must not be empty")
	}

	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	appendLocked(&e.sess, role, content, s.maxMessages)
	return nil
}

func (s *MemoryStore) AppendExchange(_ context.Context, sessionID, userText, assistantText string) error {
	userText = strings.TrimSpace(userText)
	assistantText = strings.TrimSpace(assistantText)
	if userText == "" || assistantText == "" {
		return core.NewError(core.ValidationError, "exchange content must not be empty")
	}

	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	appendLocked(&e.sess, core.RoleUser, userText, s.maxMessages)
	appendLocked(&e.sess, core.RoleAssistant, assistantText, s.maxMessages)
	return nil
}

func (s *MemoryStore) Context(_ context.Context, sessionID string, maxMessages int) (string, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return renderContext(e.sess.Messages, maxMessages), nil
}

func (s *MemoryStore) IncrementFailures(_ context.Context, sessionID string) (int, error) {
	e := s.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.FailureCount++
	e.sess.LastActivityAt = time.Now()
	return e.sess.FailureCount, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	// Exclusive map lock keeps new lookups out; each entry lock is taken so
	// an in-flight append finishes before its session can be deleted.
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		expired := e.sess.LastActivityAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	entries := make([]*memorySession, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	stats := Stats{TotalSessions: len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		stats.TotalMessages += e.sess.MessageCount
		if e.sess.MessageCount > 0 {
			stats.ActiveSessions = append(stats.ActiveSessions, e.sess.ID)
		}
		e.mu.Unlock()
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*memorySession)
	return nil
}

// appendLocked appends one message and trims oldest-first to the bound.
// Caller holds the session lock.
func appendLocked(sess *Session, role core.Role, content string, maxMessages int) {
	sess.Messages = append(sess.Messages, core.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(sess.Messages) > maxMessages {
		overflow := len(sess.Messages) - maxMessages
		sess.Messages = append(sess.Messages[:0], sess.Messages[overflow:]...)
	}
	sess.MessageCount = len(sess.Messages)
	sess.LastActivityAt = time.Now()
}

// renderContext renders the trailing window as "role: content" lines,
// oldest-first.
func renderContext(messages []core.Message, maxMessages int) string {
	if len(messages) == 0 || maxMessages <= 0 {
		return ""
	}
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func snapshot(sess *Session) *Session {
	out := *sess
	out.Messages = make([]core.Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return &out
}
