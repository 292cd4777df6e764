package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voiceagent/core"
)

func TestBatchRetriesTransientFailures(t *testing.T) {
	attempts := 0
	tts := &mockTTS{
		synthesize: func(context.Context, core.SynthesisRequest) (*core.SynthesisResult, error) {
			attempts++
			if attempts < 3 {
				return nil, core.NewError(core.UpstreamUnavailable, "flaky upstream")
			}
			return &core.SynthesisResult{AudioURL: "https://audio.example/ok.mp3"}, nil
		},
	}

	var slept []time.Duration
	policy := DefaultPolicy()
	policy.MaxBatchAttempts = 4
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	batch := NewBatchSynthesizer(tts, policy, core.GetLogger())
	items := batch.SynthesizeAll(context.Background(), []string{"hello"}, core.DefaultVoiceParams())

	require.Len(t, items, 1)
	require.NoError(t, items[0].Err)
	require.Equal(t, "https://audio.example/ok.mp3", items[0].AudioRef)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{policy.Backoff(0), policy.Backoff(1)}, slept)
}

func TestBatchStopsOnPermanentError(t *testing.T) {
	tts := &mockTTS{
		synthesize: func(context.Context, core.SynthesisRequest) (*core.SynthesisResult, error) {
			return nil, core.NewError(core.SynthesisError, "bad voice id")
		},
	}
	policy := DefaultPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }

	batch := NewBatchSynthesizer(tts, policy, core.GetLogger())
	items := batch.SynthesizeAll(context.Background(), []string{"hello"}, core.DefaultVoiceParams())

	require.Len(t, items, 1)
	require.Error(t, items[0].Err)
	require.Equal(t, 1, tts.calls)
}

func TestBackoffCurveDoublesAndCaps(t *testing.T) {
	policy := DefaultPolicy()
	policy.BackoffBase = 100 * time.Millisecond
	policy.BackoffMax = 400 * time.Millisecond

	require.Equal(t, 100*time.Millisecond, policy.Backoff(0))
	require.Equal(t, 200*time.Millisecond, policy.Backoff(1))
	require.Equal(t, 400*time.Millisecond, policy.Backoff(2))
	require.Equal(t, 400*time.Millisecond, policy.Backoff(5))
}

func TestEmergencyPhrasesCopy(t *testing.T) {
	phrases := EmergencyPhrases()
	require.NotEmpty(t, phrases)
	phrases[0] = "mutated"
	require.NotEqual(t, "mutated", EmergencyPhrases()[0])
}
