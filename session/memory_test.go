package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voiceagent/core"
)

func TestAppendRejectsEmptyContent(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.Error(t, store.AppendMessage(ctx, "s1", core.RoleUser, ""))
	require.Error(t, store.AppendMessage(ctx, "s1", core.RoleUser, "   \t\n"))
	require.Error(t, store.AppendExchange(ctx, "s1", "hi", "  "))

	err := store.AppendMessage(ctx, "s1", core.RoleUser, " ")
	require.Equal(t, core.ValidationError, core.KindOf(err))

	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Zero(t, sess.MessageCount)
}

func TestBoundInvariantFIFO(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, store.AppendMessage(ctx, "s1", core.RoleUser, fmt.Sprintf("msg-%d", i)))
	}

	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 5)
	require.Equal(t, 5, sess.MessageCount)
	for i, m := range sess.Messages {
		require.Equal(t, fmt.Sprintf("msg-%d", i+7), m.Content)
	}
}

func TestAppendExchangeKeepsOrder(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, store.AppendExchange(ctx, "s1", "hello", "hi there"))

	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.MessageCount)
	require.Equal(t, core.RoleUser, sess.Messages[0].Role)
	require.Equal(t, "hello", sess.Messages[0].Content)
	require.Equal(t, core.RoleAssistant, sess.Messages[1].Role)
	require.Equal(t, "hi there", sess.Messages[1].Content)
}

func TestConcurrentAppendsNoLoss(t *testing.T) {
	store := NewMemoryStore(10000)
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_ = store.AppendMessage(ctx, "shared", core.RoleUser, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	sess, err := store.GetOrCreate(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, goroutines*perGoroutine, sess.MessageCount)
	require.Len(t, sess.Messages, goroutines*perGoroutine)
}

func TestContextRendering(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	out, err := store.Context(ctx, "unknown", 10)
	require.NoError(t, err)
	require.Empty(t, out)

	require.NoError(t, store.AppendExchange(ctx, "s1", "hi", "hello"))
	out, err = store.Context(ctx, "s1", 10)
	require.NoError(t, err)
	require.Equal(t, "user: hi\nassistant: hello", out)

	require.NoError(t, store.AppendExchange(ctx, "s1", "second", "answer"))
	out, err = store.Context(ctx, "s1", 2)
	require.NoError(t, err)
	require.Equal(t, "user: second\nassistant: answer", out)

	out, err = store.Context(ctx, "s1", 0)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSweepExpired(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "old", core.RoleUser, "stale"))
	time.Sleep(5 * time.Millisecond)

	removed, err := store.SweepExpired(ctx, time.Nanosecond)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.TotalSessions)
}

func TestSweepKeepsFreshSessions(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "fresh", core.RoleUser, "hi"))

	removed, err := store.SweepExpired(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)

	sess, err := store.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, 1, sess.MessageCount)
}

func TestIncrementFailures(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementFailures(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestClear(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	existed, err := store.Clear(ctx, "nope")
	require.NoError(t, err)
	require.False(t, existed)

	require.NoError(t, store.AppendMessage(ctx, "s1", core.RoleUser, "hi"))
	existed, err = store.Clear(ctx, "s1")
	require.NoError(t, err)
	require.True(t, existed)

	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Zero(t, sess.MessageCount)
}

func TestStats(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, store.AppendExchange(ctx, "a", "hi", "hello"))
	require.NoError(t, store.AppendMessage(ctx, "b", core.RoleUser, "hey"))
	_, err := store.GetOrCreate(ctx, "empty")
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalSessions)
	require.Equal(t, 3, stats.TotalMessages)
	require.ElementsMatch(t, []string{"a", "b"}, stats.ActiveSessions)
}
