package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voiceagent/core"
	"voiceagent/session"
)

type mockSTT struct {
	transcribe func(ctx context.Context, req core.TranscriptionRequest) (*core.TranscriptionResult, error)
	healthy    bool
	calls      int
}

func (m *mockSTT) Transcribe(ctx context.Context, req core.TranscriptionRequest) (*core.TranscriptionResult, error) {
	m.calls++
	return m.transcribe(ctx, req)
}

func (m *mockSTT) HealthCheck(context.Context) bool { return m.healthy }

type mockLLM struct {
	generate func(ctx context.Context, req core.GenerationRequest) (*core.GenerationResult, error)
	healthy  bool
	calls    int
}

func (m *mockLLM) Generate(ctx context.Context, req core.GenerationRequest) (*core.GenerationResult, error) {
	m.calls++
	return m.generate(ctx, req)
}

func (m *mockLLM) HealthCheck(context.Context) bool { return m.healthy }

type mockTTS struct {
	synthesize func(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error)
	healthy    bool
	calls      int
	lastText   string
}

func (m *mockTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	m.calls++
	m.lastText = req.Text
	return m.synthesize(ctx, req)
}

func (m *mockTTS) HealthCheck(context.Context) bool { return m.healthy }

func workingSTT(text string) *mockSTT {
	return &mockSTT{
		transcribe: func(context.Context, core.TranscriptionRequest) (*core.TranscriptionResult, error) {
			return &core.TranscriptionResult{Text: text, Confidence: 0.92}, nil
		},
		healthy: true,
	}
}

func workingLLM(text string) *mockLLM {
	return &mockLLM{
		generate: func(context.Context, core.GenerationRequest) (*core.GenerationResult, error) {
			return &core.GenerationResult{Text: text}, nil
		},
		healthy: true,
	}
}

func workingTTS() *mockTTS {
	return &mockTTS{
		synthesize: func(context.Context, core.SynthesisRequest) (*core.SynthesisResult, error) {
			return &core.SynthesisResult{AudioURL: "https://audio.example/clip.mp3"}, nil
		},
		healthy: true,
	}
}

func failingSTT(kind core.ErrorKind) *mockSTT {
	return &mockSTT{
		transcribe: func(context.Context, core.TranscriptionRequest) (*core.TranscriptionResult, error) {
			return nil, core.NewError(kind, "stt down")
		},
	}
}

func newTestOrchestrator(stt core.STTService, llm core.LLMService, tts core.TTSService, store session.Store) *Orchestrator {
	policy := DefaultPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	return NewOrchestrator(stt, llm, tts, store, policy, core.GetLogger())
}

func TestRunSuccessNormalizesBeforeSynthesis(t *testing.T) {
	stt := workingSTT("hello")
	llm := workingLLM("Hi there! e.g. this is a test.")
	tts := workingTTS()
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{Audio: []byte("audio"), MimeType: "audio/wav", SessionID: "s1"})

	require.True(t, res.Valid())
	require.NotNil(t, res.Success)
	require.Equal(t, "hello", res.Success.Transcription)
	require.Equal(t, "Hi there! e.g. this is a test.", res.Success.GeneratedText)
	require.Equal(t, "https://audio.example/clip.mp3", res.Success.AudioRef)
	require.Equal(t, "s1", res.Success.SessionID)

	// Scenario: "e.g." must be expanded before the text reaches synthesis.
	require.Equal(t, "Hi there! for example this is a test.", tts.lastText)

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.MessageCount)
	require.Equal(t, "hello", sess.Messages[0].Content)
	require.Equal(t, "Hi there! e.g. this is a test.", sess.Messages[1].Content)
}

func TestRunTextInputSkipsTranscription(t *testing.T) {
	stt := workingSTT("never used")
	llm := workingLLM("answer")
	tts := workingTTS()
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{Text: "what time is it", SessionID: "s1"})

	require.NotNil(t, res.Success)
	require.Zero(t, stt.calls)
	require.Equal(t, 1, llm.calls)
}

func TestRunGeneratesSessionID(t *testing.T) {
	orch := newTestOrchestrator(workingSTT("hi"), workingLLM("hello"), workingTTS(), session.NewMemoryStore(50))

	res := orch.Run(context.Background(), Input{Text: "hi"})
	require.NotNil(t, res.Success)
	require.NotEmpty(t, res.SessionID())
}

func TestValidationShortCircuit(t *testing.T) {
	stt := workingSTT("hi")
	llm := workingLLM("hello")
	tts := workingTTS()
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{SessionID: "s1"})

	require.True(t, res.Valid())
	require.NotNil(t, res.Failure)
	require.Equal(t, core.ValidationError, res.Failure.ErrorKind)
	require.NotEmpty(t, res.Failure.EmergencyText)
	require.Zero(t, stt.calls)
	require.Zero(t, llm.calls)
	require.Zero(t, tts.calls)

	// Validation failures never touch the failure counter.
	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Zero(t, sess.FailureCount)
}

func TestOverlongTranscriptRejectedBeforeGeneration(t *testing.T) {
	stt := workingSTT(strings.Repeat("a", core.MaxQueryTextLength+1))
	llm := workingLLM("hello")
	tts := workingTTS()
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{SessionID: "s1", Audio: []byte{0x01}})

	require.NotNil(t, res.Failure)
	require.Equal(t, core.ValidationError, res.Failure.ErrorKind)
	require.Equal(t, 1, stt.calls)
	require.Zero(t, llm.calls)
	require.Zero(t, tts.calls)
}

func TestValidationRejectsVoiceOutOfBounds(t *testing.T) {
	orch := newTestOrchestrator(workingSTT("hi"), workingLLM("hello"), workingTTS(), session.NewMemoryStore(50))

	res := orch.Run(context.Background(), Input{Text: "hi", Voice: core.VoiceParams{Speed: 300}})
	require.NotNil(t, res.Failure)
	require.Equal(t, core.ValidationError, res.Failure.ErrorKind)
}

func TestSimplifiedTierAfterTranscriptionFailure(t *testing.T) {
	stt := &mockSTT{
		transcribe: func(_ context.Context, req core.TranscriptionRequest) (*core.TranscriptionResult, error) {
			if req.Basic {
				return &core.TranscriptionResult{Text: "hello basic"}, nil
			}
			return nil, core.NewError(core.TranscriptionError, "unintelligible")
		},
	}
	var sawSimplified bool
	llm := &mockLLM{
		generate: func(_ context.Context, req core.GenerationRequest) (*core.GenerationResult, error) {
			sawSimplified = req.Simplified
			return &core.GenerationResult{Text: "short answer"}, nil
		},
	}
	tts := workingTTS()
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{Audio: []byte("audio"), SessionID: "s1"})

	require.True(t, res.Valid())
	require.NotNil(t, res.Partial)
	require.Equal(t, core.StageTranscription, res.Partial.FailedStage)
	require.Equal(t, core.TranscriptionError, res.Partial.ErrorKind)
	require.NotEmpty(t, res.Partial.Warning)
	require.Equal(t, "hello basic", res.Partial.Transcription)
	require.Equal(t, "short answer", res.Partial.GeneratedText)
	require.True(t, sawSimplified)

	// The simplified tier never synthesizes.
	require.Zero(t, tts.calls)

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.MessageCount)
}

func TestSimplifiedTierAfterGenerationFailure(t *testing.T) {
	stt := workingSTT("hello")
	llm := &mockLLM{
		generate: func(_ context.Context, req core.GenerationRequest) (*core.GenerationResult, error) {
			if req.Simplified {
				return &core.GenerationResult{Text: "plan B"}, nil
			}
			return nil, core.NewError(core.GenerationError, "safety block: dangerous content")
		},
	}
	tts := workingTTS()
	orch := newTestOrchestrator(stt, llm, tts, session.NewMemoryStore(50))

	res := orch.Run(context.Background(), Input{Audio: []byte("audio"), SessionID: "s1"})

	require.NotNil(t, res.Partial)
	require.Equal(t, core.StageGeneration, res.Partial.FailedStage)
	require.Equal(t, core.GenerationError, res.Partial.ErrorKind)
	require.Equal(t, "hello", res.Partial.Transcription)
	require.Equal(t, "plan B", res.Partial.GeneratedText)
	require.Zero(t, tts.calls)
}

func TestSilenceEscalatesToEmergency(t *testing.T) {
	stt := failingSTT(core.TranscriptionError)
	llm := workingLLM("never reached")
	tts := workingTTS()
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{Audio: []byte{0, 0, 0}, SessionID: "s1"})

	require.True(t, res.Valid())
	require.NotNil(t, res.Failure)
	require.Equal(t, core.TranscriptionError, res.Failure.ErrorKind)
	require.Equal(t, emergencyPhrases[0], res.Failure.EmergencyText)
	require.NotEmpty(t, res.Failure.EmergencyDataURL)

	// Primary plus one simplified attempt, nothing further.
	require.Equal(t, 2, stt.calls)
	require.Zero(t, llm.calls)
	require.Zero(t, tts.calls)

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, sess.FailureCount)
}

func TestEmergencyRotationClamps(t *testing.T) {
	stt := failingSTT(core.TranscriptionError)
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, workingLLM("x"), workingTTS(), store)

	indexOf := func(phrase string) int {
		for i, p := range emergencyPhrases {
			if p == phrase {
				return i
			}
		}
		return -1
	}

	prev := -1
	for i := 0; i < len(emergencyPhrases)+2; i++ {
		res := orch.Run(context.Background(), Input{Audio: []byte("x"), SessionID: "s1"})
		require.NotNil(t, res.Failure)
		idx := indexOf(res.Failure.EmergencyText)
		require.GreaterOrEqual(t, idx, 0)
		require.GreaterOrEqual(t, idx, prev, "emergency index must be non-decreasing")
		prev = idx
	}
	require.Equal(t, len(emergencyPhrases)-1, prev)
}

func TestSynthesisFailureYieldsPartialWithHistory(t *testing.T) {
	stt := workingSTT("hello")
	llm := workingLLM("hi there")
	tts := &mockTTS{
		synthesize: func(context.Context, core.SynthesisRequest) (*core.SynthesisResult, error) {
			return nil, core.WrapError(core.SynthesisError, "synthesis timed out", context.DeadlineExceeded)
		},
	}
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(stt, llm, tts, store)

	res := orch.Run(context.Background(), Input{Audio: []byte("audio"), SessionID: "s1"})

	require.True(t, res.Valid())
	require.NotNil(t, res.Partial)
	require.Equal(t, core.StageSynthesis, res.Partial.FailedStage)
	require.Equal(t, core.UpstreamUnavailable, res.Partial.ErrorKind)
	require.Equal(t, "hello", res.Partial.Transcription)
	require.Equal(t, "hi there", res.Partial.GeneratedText)

	// Text-only turns are still valid conversation.
	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 2, sess.MessageCount)
	require.Zero(t, sess.FailureCount)
}

func TestCancelledInvocationNeverAppends(t *testing.T) {
	store := session.NewMemoryStore(50)
	orch := newTestOrchestrator(workingSTT("hello"), workingLLM("hi"), workingTTS(), store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = orch.Run(ctx, Input{Audio: []byte("audio"), SessionID: "s1"})

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Zero(t, sess.MessageCount)
}

func TestEmergencyWithoutSimplifiedRetry(t *testing.T) {
	stt := failingSTT(core.UpstreamUnavailable)
	store := session.NewMemoryStore(50)
	policy := DefaultPolicy()
	policy.SimplifiedRetry = false
	orch := NewOrchestrator(stt, workingLLM("x"), workingTTS(), store, policy, core.GetLogger())

	res := orch.Run(context.Background(), Input{Audio: []byte("x"), SessionID: "s1"})

	require.NotNil(t, res.Failure)
	require.Equal(t, core.UpstreamUnavailable, res.Failure.ErrorKind)
	require.Equal(t, 1, stt.calls)
}

func TestHealthAggregation(t *testing.T) {
	stt := workingSTT("x")
	llm := workingLLM("x")
	llm.healthy = false
	tts := workingTTS()
	orch := newTestOrchestrator(stt, llm, tts, session.NewMemoryStore(50))

	report := orch.Health(context.Background())
	require.True(t, report.Transcription)
	require.False(t, report.Generation)
	require.True(t, report.Synthesis)
	require.False(t, report.Healthy())
}
