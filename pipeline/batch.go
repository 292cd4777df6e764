package pipeline

import (
	"context"

	"voiceagent/core"
)

// BatchSynthesizer pre-renders a set of phrases in the background, e.g. to
// warm canned audio for announcement flows. Unlike the interactive path it
// retries with exponential backoff, since nothing is waiting on it.
type BatchSynthesizer struct {
	tts    core.TTSService
	policy Policy
	logger *core.Logger
}

// BatchItem is one phrase's outcome.
type BatchItem struct {
	Text     string
	AudioRef string
	Err      error
}

func NewBatchSynthesizer(tts core.TTSService, policy Policy, logger *core.Logger) *BatchSynthesizer {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &BatchSynthesizer{tts: tts, policy: policy, logger: logger}
}

// SynthesizeAll renders every phrase, retrying transient failures up to the
// policy's attempt budget. It stops early only on context cancellation.
func (b *BatchSynthesizer) SynthesizeAll(ctx context.Context, phrases []string, voice core.VoiceParams) []BatchItem {
	items := make([]BatchItem, 0, len(phrases))
	for _, phrase := range phrases {
		if ctx.Err() != nil {
			items = append(items, BatchItem{Text: phrase, Err: ctx.Err()})
			continue
		}
		items = append(items, b.synthesizeOne(ctx, phrase, voice))
	}
	return items
}

func (b *BatchSynthesizer) synthesizeOne(ctx context.Context, phrase string, voice core.VoiceParams) BatchItem {
	attempts := b.policy.MaxBatchAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := b.policy.sleep(ctx, b.policy.Backoff(attempt-1)); err != nil {
				return BatchItem{Text: phrase, Err: err}
			}
		}

		ttsCtx, cancel := b.policy.stageContext(ctx, b.policy.TTSTimeout)
		res, err := b.tts.Synthesize(ttsCtx, core.SynthesisRequest{Text: phrase, Voice: voice})
		cancel()
		if err == nil {
			return BatchItem{Text: phrase, AudioRef: res.AudioRef()}
		}

		lastErr = err
		// Only transient upstream trouble is worth another attempt.
		if core.KindOf(err) != core.UpstreamUnavailable {
			break
		}
		b.logger.Warn("batch synthesis attempt failed", "attempt", attempt+1, "error", err.Error())
	}
	return BatchItem{Text: phrase, Err: lastErr}
}

// EmergencyPhrases exposes the canned fallback phrases for pre-rendering.
func EmergencyPhrases() []string {
	out := make([]string, len(emergencyPhrases))
	copy(out, emergencyPhrases)
	return out
}
