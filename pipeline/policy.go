package pipeline

import (
	"context"
	"time"
)

// Policy bounds provider calls and shapes the fallback behavior. It is
// injectable so tests can shrink timeouts and stub Sleep instead of waiting
// out real delays.
type Policy struct {
	// Per-stage timeouts for the interactive request path.
	STTTimeout time.Duration
	LLMTimeout time.Duration
	TTSTimeout time.Duration

	// SimplifiedRetry enables the reduced-fidelity middle tier. With it off,
	// a transcription or generation failure escalates straight to emergency.
	SimplifiedRetry bool

	// ContextWindow is how many trailing messages are rendered into the
	// generation context.
	ContextWindow int

	// Backoff settings apply only to the background batch path. The
	// interactive path never sleeps between attempts.
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	MaxBatchAttempts int

	// Sleep is the delay hook for batch backoff.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		STTTimeout:       30 * time.Second,
		LLMTimeout:       30 * time.Second,
		TTSTimeout:       60 * time.Second,
		SimplifiedRetry:  true,
		ContextWindow:    10,
		BackoffBase:      500 * time.Millisecond,
		BackoffMax:       8 * time.Second,
		MaxBatchAttempts: 4,
		Sleep:            sleepContext,
	}
}

// Backoff returns the delay before the given retry attempt (attempt 0 is the
// first retry). Exponential doubling capped at BackoffMax.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BackoffBase
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.BackoffMax > 0 && d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p Policy) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
