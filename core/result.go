package core

import (
	"encoding/base64"
	"time"
)

// Stage names the pipeline stage a partial failure occurred in.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
	StageSynthesis     Stage = "synthesis"
)

// StageTimings records wall-clock time spent in each provider call.
type StageTimings struct {
	STT time.Duration `json:"stt_ms"`
	LLM time.Duration `json:"llm_ms"`
	TTS time.Duration `json:"tts_ms"`
}

// SuccessResult is a fully completed invocation: transcript, response text
// and a playable audio reference.
type SuccessResult struct {
	Transcription string       `json:"transcription"`
	Confidence    float64      `json:"confidence,omitempty"`
	GeneratedText string       `json:"generated_text"`
	AudioRef      string       `json:"audio_ref"`
	Timings       StageTimings `json:"timings"`
	SessionID     string       `json:"session_id"`
}

// PartialResult is an invocation where some stages completed and the rest
// did not; the text that was computed is still returned to the caller.
type PartialResult struct {
	Transcription string    `json:"transcription,omitempty"`
	GeneratedText string    `json:"generated_text,omitempty"`
	FailedStage   Stage     `json:"failed_stage"`
	ErrorKind     ErrorKind `json:"error_kind"`
	// Warning is set when the simplified fallback tier produced this result.
	Warning   string       `json:"warning,omitempty"`
	Timings   StageTimings `json:"timings"`
	SessionID string       `json:"session_id"`
}

// FailureResult is the terminal tier: no provider output is available and the
// client is expected to render EmergencyText through its own local speech
// capability.
type FailureResult struct {
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`
	// EmergencyText is a ready-to-render apology phrase.
	EmergencyText string `json:"emergency_text"`
	// EmergencyDataURL carries EmergencyText as a data: URL for browser-side
	// speech synthesis fallbacks that consume URLs.
	EmergencyDataURL string `json:"emergency_data_url,omitempty"`
	SessionID        string `json:"session_id"`
}

// PipelineResult is the tagged outcome of one end-to-end invocation.
// Exactly one of Success, Partial, Failure is non-nil.
type PipelineResult struct {
	Success *SuccessResult `json:"success,omitempty"`
	Partial *PartialResult `json:"partial,omitempty"`
	Failure *FailureResult `json:"failure,omitempty"`
}

func NewSuccess(r SuccessResult) *PipelineResult {
	return &PipelineResult{Success: &r}
}

func NewPartial(r PartialResult) *PipelineResult {
	return &PipelineResult{Partial: &r}
}

func NewFailure(r FailureResult) *PipelineResult {
	if r.EmergencyText != "" && r.EmergencyDataURL == "" {
		r.EmergencyDataURL = "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(r.EmergencyText))
	}
	return &PipelineResult{Failure: &r}
}

// SessionID returns the session the result belongs to, whichever variant is
// populated.
func (r *PipelineResult) SessionID() string {
	switch {
	case r.Success != nil:
		return r.Success.SessionID
	case r.Partial != nil:
		return r.Partial.SessionID
	case r.Failure != nil:
		return r.Failure.SessionID
	}
	return ""
}

// Valid reports whether exactly one variant is populated.
func (r *PipelineResult) Valid() bool {
	n := 0
	if r.Success != nil {
		n++
	}
	if r.Partial != nil {
		n++
	}
	if r.Failure != nil {
		n++
	}
	return n == 1
}
