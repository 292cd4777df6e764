package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voiceagent/core"
	"voiceagent/session"
	"voiceagent/utils/text"
)

// Input is one pipeline invocation. Audio drives the full voice pipeline;
// when Text is set instead, transcription is skipped and the turn starts at
// generation.
type Input struct {
	Audio    []byte
	MimeType string
	Text     string
	// SessionID is optional; a fresh one is generated when absent.
	SessionID string
	Voice     core.VoiceParams
}

// HealthReport aggregates the three provider health checks.
type HealthReport struct {
	Transcription bool `json:"transcription"`
	Generation    bool `json:"generation"`
	Synthesis     bool `json:"synthesis"`
}

// Healthy reports whether every provider answered its check.
func (h HealthReport) Healthy() bool {
	return h.Transcription && h.Generation && h.Synthesis
}

// Orchestrator drives audio through transcription, contextual generation and
// synthesis, degrading through the simplified and emergency tiers on failure.
// Run never returns a Go error; the PipelineResult is the whole contract.
type Orchestrator struct {
	stt    core.STTService
	llm    core.LLMService
	tts    core.TTSService
	store  session.Store
	norm   text.INormalizer
	policy Policy
	logger *core.Logger
}

// NewOrchestrator wires the pipeline. A nil normalizer or logger falls back
// to the defaults.
func NewOrchestrator(stt core.STTService, llm core.LLMService, tts core.TTSService, store session.Store, policy Policy, logger *core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Orchestrator{
		stt:    stt,
		llm:    llm,
		tts:    tts,
		store:  store,
		norm:   text.NewNormalizer(),
		policy: policy,
		logger: logger,
	}
}

// Run executes one end-to-end invocation. Exactly one variant of the result
// is populated.
func (o *Orchestrator) Run(ctx context.Context, in Input) *core.PipelineResult {
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := o.logger.With(map[string]interface{}{"session_id": sessionID})

	// Validation short-circuits before any provider call and does not consume
	// a fallback tier or touch the failure counter.
	userText := strings.TrimSpace(in.Text)
	if len(in.Audio) == 0 && userText == "" {
		return validationFailure(sessionID, "no audio or text input provided")
	}
	if len(userText) > core.MaxQueryTextLength {
		return validationFailure(sessionID, fmt.Sprintf("text too long (max %d characters)", core.MaxQueryTextLength))
	}
	voice := in.Voice
	if err := voice.Validate(); err != nil {
		return validationFailure(sessionID, err.Error())
	}

	var timings core.StageTimings
	confidence := 0.0

	if userText == "" {
		start := time.Now()
		sttCtx, cancel := o.policy.stageContext(ctx, o.policy.STTTimeout)
		tr, err := o.stt.Transcribe(sttCtx, core.TranscriptionRequest{Audio: in.Audio, MimeType: in.MimeType})
		cancel()
		timings.STT = time.Since(start)
		if err != nil {
			log.Warn("transcription failed", "kind", string(core.KindOf(err)), "error", err.Error())
			return o.fallback(ctx, sessionID, in, core.StageTranscription, err, timings, "", log)
		}
		userText = tr.Text
		confidence = tr.Confidence
		// Transcripts obey the same length bound as direct text input.
		if len(userText) > core.MaxQueryTextLength {
			return validationFailure(sessionID, fmt.Sprintf("text too long (max %d characters)", core.MaxQueryTextLength))
		}
	}

	contextText, err := o.store.Context(ctx, sessionID, o.policy.ContextWindow)
	if err != nil {
		log.Warn("context fetch failed, generating without history", "error", err.Error())
		contextText = ""
	}

	start := time.Now()
	llmCtx, cancel := o.policy.stageContext(ctx, o.policy.LLMTimeout)
	gen, err := o.llm.Generate(llmCtx, core.GenerationRequest{UserText: userText, ContextText: contextText})
	cancel()
	timings.LLM = time.Since(start)
	if err != nil {
		log.Warn("generation failed", "kind", string(core.KindOf(err)), "error", err.Error())
		return o.fallback(ctx, sessionID, in, core.StageGeneration, err, timings, userText, log)
	}

	spoken := o.norm.Normalize(gen.Text)

	start = time.Now()
	ttsCtx, cancel := o.policy.stageContext(ctx, o.policy.TTSTimeout)
	synth, err := o.tts.Synthesize(ttsCtx, core.SynthesisRequest{Text: spoken, Voice: voice})
	cancel()
	timings.TTS = time.Since(start)
	if err != nil {
		// Synthesis failure alone never cascades into fallback: the computed
		// text is still a valid turn and is kept.
		log.Warn("synthesis failed, returning text-only result", "kind", string(core.KindOf(err)), "error", err.Error())
		o.appendExchange(ctx, sessionID, userText, gen.Text, log)
		return core.NewPartial(core.PartialResult{
			Transcription: userText,
			GeneratedText: gen.Text,
			FailedStage:   core.StageSynthesis,
			ErrorKind:     core.KindOf(err),
			Timings:       timings,
			SessionID:     sessionID,
		})
	}

	o.appendExchange(ctx, sessionID, userText, gen.Text, log)
	return core.NewSuccess(core.SuccessResult{
		Transcription: userText,
		Confidence:    confidence,
		GeneratedText: gen.Text,
		AudioRef:      synth.AudioRef(),
		Timings:       timings,
		SessionID:     sessionID,
	})
}

// fallback is the tier-2 entry point for transcription and generation
// failures. The simplified attempt runs at most once; when it cannot produce
// text the invocation escalates to the emergency tier.
func (o *Orchestrator) fallback(ctx context.Context, sessionID string, in Input, stage core.Stage, cause error, timings core.StageTimings, userText string, log *core.Logger) *core.PipelineResult {
	kind := core.KindOf(cause)
	if o.policy.SimplifiedRetry {
		if res := o.simplified(ctx, sessionID, in, stage, kind, timings, userText, log); res != nil {
			return res
		}
	}
	return o.emergency(ctx, sessionID, kind, cause, log)
}

// simplified runs the reduced-fidelity tier: basic-model re-transcription
// when transcription failed, then context-free simplified generation. It
// never calls synthesis. Returns nil when the tier fails.
func (o *Orchestrator) simplified(ctx context.Context, sessionID string, in Input, stage core.Stage, kind core.ErrorKind, timings core.StageTimings, userText string, log *core.Logger) *core.PipelineResult {
	if stage == core.StageTranscription {
		start := time.Now()
		sttCtx, cancel := o.policy.stageContext(ctx, o.policy.STTTimeout)
		tr, err := o.stt.Transcribe(sttCtx, core.TranscriptionRequest{Audio: in.Audio, MimeType: in.MimeType, Basic: true})
		cancel()
		timings.STT += time.Since(start)
		if err != nil {
			log.Warn("simplified transcription failed", "error", err.Error())
			return nil
		}
		userText = tr.Text
	}

	start := time.Now()
	llmCtx, cancel := o.policy.stageContext(ctx, o.policy.LLMTimeout)
	gen, err := o.llm.Generate(llmCtx, core.GenerationRequest{UserText: userText, Simplified: true})
	cancel()
	timings.LLM += time.Since(start)
	if err != nil {
		log.Warn("simplified generation failed", "error", err.Error())
		return nil
	}

	o.appendExchange(ctx, sessionID, userText, gen.Text, log)
	return core.NewPartial(core.PartialResult{
		Transcription: userText,
		GeneratedText: gen.Text,
		FailedStage:   stage,
		ErrorKind:     kind,
		Warning:       "simplified processing was used",
		Timings:       timings,
		SessionID:     sessionID,
	})
}

// emergency is the terminal tier. It never calls a provider and never
// propagates a panic; whatever happens, the caller gets a Failure with
// speakable text.
func (o *Orchestrator) emergency(ctx context.Context, sessionID string, kind core.ErrorKind, cause error, log *core.Logger) (result *core.PipelineResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("emergency tier panicked", "panic", fmt.Sprint(r))
			result = core.NewFailure(core.FailureResult{
				ErrorKind:     core.InternalError,
				Message:       emergencyLiteral,
				EmergencyText: emergencyLiteral,
				SessionID:     sessionID,
			})
		}
	}()

	count, err := o.store.IncrementFailures(ctx, sessionID)
	if err != nil {
		log.Warn("failure counter unavailable", "error", err.Error())
		count = 1
	}

	message := emergencyLiteral
	if cause != nil {
		message = cause.Error()
	}
	log.Error("pipeline exhausted all tiers", "kind", string(kind), "failures", count)
	return core.NewFailure(core.FailureResult{
		ErrorKind:     kind,
		Message:       message,
		EmergencyText: emergencyPhrase(count),
		SessionID:     sessionID,
	})
}

// appendExchange records the completed turn. A cancelled invocation appends
// nothing, so history never carries half a turn.
func (o *Orchestrator) appendExchange(ctx context.Context, sessionID, userText, assistantText string, log *core.Logger) {
	if ctx.Err() != nil {
		log.Warn("invocation cancelled, skipping history append")
		return
	}
	if err := o.store.AppendExchange(ctx, sessionID, userText, assistantText); err != nil {
		log.Error("history append failed", "error", err.Error())
	}
}

func validationFailure(sessionID, message string) *core.PipelineResult {
	return core.NewFailure(core.FailureResult{
		ErrorKind:     core.ValidationError,
		Message:       message,
		EmergencyText: "There seems to be an issue with your input. Please check and try again.",
		SessionID:     sessionID,
	})
}

// Health fans out the three provider checks concurrently.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	var report HealthReport
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		report.Transcription = o.stt.HealthCheck(ctx)
	}()
	go func() {
		defer wg.Done()
		report.Generation = o.llm.HealthCheck(ctx)
	}()
	go func() {
		defer wg.Done()
		report.Synthesis = o.tts.HealthCheck(ctx)
	}()
	wg.Wait()
	return report
}
