package session

import (
	"context"
	"time"

	"voiceagent/core"
)

// Defaults for history bounds and expiry.
const (
	DefaultMaxMessages   = 50
	DefaultMaxAge        = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// Session is a bounded, ordered conversation history keyed by an opaque
// identifier. MessageCount is kept as a cached counter so read paths never
// recount, and FailureCount drives the emergency phrase rotation.
type Session struct {
	ID             string         `json:"session_id"`
	Messages       []core.Message `json:"messages"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity"`
	MessageCount   int            `json:"message_count"`
	FailureCount   int            `json:"failure_count"`
}

// Stats summarizes all live sessions.
type Stats struct {
	TotalSessions  int      `json:"total_sessions"`
	TotalMessages  int      `json:"total_messages"`
	ActiveSessions []string `json:"active_sessions"`
}

// Store holds per-session conversation state. Sessions are created lazily on
// first reference; an unknown ID is never an error. Implementations must
// serialize appends within one session while allowing different sessions to
// proceed concurrently.
type Store interface {
	// GetOrCreate returns a snapshot of the session, creating it if needed.
	GetOrCreate(ctx context.Context, sessionID string) (*Session, error)
	// AppendMessage appends one turn. Empty or whitespace-only content is
	// rejected with a ValidationError and never stored. The history is
	// trimmed oldest-first to the store's message bound.
	AppendMessage(ctx context.Context, sessionID string, role core.Role, content string) error
	// AppendExchange appends a user/assistant pair under a single
	// per-session critical section so a cancelled invocation can never leave
	// half a turn behind.
	AppendExchange(ctx context.Context, sessionID, userText, assistantText string) error
	// Context renders the last maxMessages entries as "role: content" lines,
	// newline-joined, oldest-first. Unknown or empty sessions render empty.
	Context(ctx context.Context, sessionID string, maxMessages int) (string, error)
	// IncrementFailures bumps the session's failure counter and returns the
	// new value.
	IncrementFailures(ctx context.Context, sessionID string) (int, error)
	// Clear removes a session outright. Reports whether it existed.
	Clear(ctx context.Context, sessionID string) (bool, error)
	// SweepExpired removes sessions idle longer than maxAge and returns how
	// many were removed. Safe to run concurrently with appends.
	SweepExpired(ctx context.Context, maxAge time.Duration) (int, error)
	// Stats summarizes the store contents.
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// RunSweeper periodically expires idle sessions until ctx is cancelled.
// Run it in its own goroutine at process start.
func RunSweeper(ctx context.Context, store Store, interval, maxAge time.Duration, logger *core.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := store.SweepExpired(ctx, maxAge)
			if err != nil {
				logger.Error("session sweep failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				logger.Info("expired sessions removed", "count", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}
