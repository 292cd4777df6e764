package core

import "context"

// TranscriptionRequest carries raw audio into an STT provider.
type TranscriptionRequest struct {
	// Audio is the raw payload in any supported codec (WAV/MP3/OGG/WebM/M4A).
	Audio []byte
	// MimeType hints the codec to the provider, e.g. "audio/webm".
	MimeType string
	// Basic selects the provider's reduced-fidelity model. Used by the
	// simplified fallback tier.
	Basic bool
}

// TranscriptionWord is a single word with provider timing data.
type TranscriptionWord struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// TranscriptionResult is the outcome of a successful transcription.
type TranscriptionResult struct {
	Text            string              `json:"text"`
	Confidence      float64             `json:"confidence"`
	Language        string              `json:"language,omitempty"`
	DurationSeconds float64             `json:"duration_seconds,omitempty"`
	Words           []TranscriptionWord `json:"words,omitempty"`
}

// STTService is the transcription provider contract. Implementations wrap
// every failure into a PipelineError carrying TranscriptionError or
// UpstreamUnavailable before returning.
type STTService interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResult, error)
	// HealthCheck reports provider availability. It never returns an error;
	// an unreachable provider is simply unhealthy.
	HealthCheck(ctx context.Context) bool
}
