package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// Voice parameter bounds. Enforced at construction and request validation so
// an invalid combination never reaches a provider.
const (
	MinSpeechSpeed = 50
	MaxSpeechSpeed = 200
	MinSpeechPitch = 0
	MaxSpeechPitch = 100

	DefaultVoiceID     = "en-US-AriaNeural"
	DefaultSpeechSpeed = 95
	DefaultSpeechPitch = 45
	DefaultAudioFormat = "mp3"

	// MaxSynthesisTextLength bounds text entering synthesis.
	MaxSynthesisTextLength = 5000
)

// VoiceParams selects voice and prosody for synthesis.
type VoiceParams struct {
	VoiceID string `json:"voice_id"`
	Speed   int    `json:"speed"`
	Pitch   int    `json:"pitch"`
	Format  string `json:"format"`
}

// DefaultVoiceParams returns the stock voice configuration.
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{
		VoiceID: DefaultVoiceID,
		Speed:   DefaultSpeechSpeed,
		Pitch:   DefaultSpeechPitch,
		Format:  DefaultAudioFormat,
	}
}

// Validate checks speed and pitch bounds and fills empty fields with
// defaults. Out-of-bounds values are a ValidationError, not a clamp.
func (v *VoiceParams) Validate() error {
	if v.VoiceID == "" {
		v.VoiceID = DefaultVoiceID
	}
	if v.Speed == 0 {
		v.Speed = DefaultSpeechSpeed
	}
	if v.Pitch == 0 {
		v.Pitch = DefaultSpeechPitch
	}
	if v.Format == "" {
		v.Format = DefaultAudioFormat
	}
	if v.Speed < MinSpeechSpeed || v.Speed > MaxSpeechSpeed {
		return NewError(ValidationError, fmt.Sprintf("speech speed %d out of range [%d, %d]", v.Speed, MinSpeechSpeed, MaxSpeechSpeed))
	}
	if v.Pitch < MinSpeechPitch || v.Pitch > MaxSpeechPitch {
		return NewError(ValidationError, fmt.Sprintf("speech pitch %d out of range [%d, %d]", v.Pitch, MinSpeechPitch, MaxSpeechPitch))
	}
	return nil
}

// SynthesisRequest carries normalized text and voice parameters into a TTS
// provider.
type SynthesisRequest struct {
	Text  string
	Voice VoiceParams
}

// SynthesisResult is the outcome of a successful synthesis. Providers return
// either a playable URL or raw audio bytes, depending on their API shape.
type SynthesisResult struct {
	AudioURL       string        `json:"audio_url,omitempty"`
	Audio          []byte        `json:"-"`
	ProcessingTime time.Duration `json:"-"`
}

// AudioRef returns whichever audio reference the provider produced: the URL
// when present, otherwise a data URL over the raw bytes so the client can
// play in-process audio without another round trip.
func (r *SynthesisResult) AudioRef() string {
	if r == nil {
		return ""
	}
	if r.AudioURL != "" {
		return r.AudioURL
	}
	if len(r.Audio) > 0 {
		return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(r.Audio)
	}
	return ""
}

// TTSService is the synthesis provider contract. Implementations wrap every
// failure into a PipelineError carrying SynthesisError or
// UpstreamUnavailable.
type TTSService interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	HealthCheck(ctx context.Context) bool
}
