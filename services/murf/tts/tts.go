package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"voiceagent/core"
)

// Config holds configuration for the Murf TTS service.
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Style   string `json:"style"`
}

// MurfTTS implements core.TTSService against the Murf speech generation API.
// Murf returns a hosted URL for the rendered clip rather than raw bytes.
type MurfTTS struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// NewMurfTTS creates the service with defaults applied.
func NewMurfTTS(config Config, logger *core.Logger) *MurfTTS {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.murf.ai/v1"
	}
	if config.Style == "" {
		config.Style = "Conversational"
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &MurfTTS{
		config: config,
		client: &http.Client{},
		logger: logger,
	}
}

type generateRequest struct {
	VoiceID      string `json:"voiceId"`
	Style        string `json:"style"`
	Text         string `json:"text"`
	Rate         int    `json:"rate"`
	Pitch        int    `json:"pitch"`
	SampleRate   int    `json:"sampleRate"`
	Format       string `json:"format"`
	ChannelType  string `json:"channelType"`
	ModelVersion string `json:"modelVersion"`
}

type generateResponse struct {
	AudioFile     string  `json:"audioFile"`
	AudioLengthMs float64 `json:"audioLengthInSeconds"`
	ErrorMessage  string  `json:"errorMessage"`
}

func (s *MurfTTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	if s.config.APIKey == "" {
		return nil, core.NewError(core.ConfigurationError, "Murf API key is not configured")
	}
	if req.Text == "" {
		return nil, core.NewError(core.ValidationError, "synthesis text must not be empty")
	}
	voice := req.Voice
	if err := voice.Validate(); err != nil {
		return nil, err
	}

	payload, err := sonic.Marshal(generateRequest{
		VoiceID: voice.VoiceID,
		Style:   s.config.Style,
		Text:    req.Text,
		// Murf rate and pitch are offsets in [-50, 50]; the public speed
		// (50..200, 100 neutral) and pitch (0..100, 50 neutral) scales are
		// shifted and clamped onto them.
		Rate:         clampOffset(voice.Speed - 100),
		Pitch:        clampOffset(voice.Pitch - 50),
		SampleRate:   24000,
		Format:       "MP3",
		ChannelType:  "MONO",
		ModelVersion: "GEN2",
	})
	if err != nil {
		return nil, core.WrapError(core.InternalError, "marshal synthesis request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/speech/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, core.WrapError(core.SynthesisError, "build synthesis request", err)
	}
	httpReq.Header.Set("api-key", s.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, core.WrapError(core.UpstreamUnavailable, "Murf request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewError(core.SynthesisError, fmt.Sprintf("Murf returned status %d", resp.StatusCode))
	}

	var gr generateResponse
	if err := sonic.Unmarshal(body, &gr); err != nil {
		return nil, core.WrapError(core.SynthesisError, "invalid Murf response", err)
	}
	if gr.ErrorMessage != "" {
		return nil, core.NewError(core.SynthesisError, "Murf synthesis error: "+gr.ErrorMessage)
	}
	if gr.AudioFile == "" {
		return nil, core.NewError(core.SynthesisError, "Murf response carried no audio URL")
	}

	return &core.SynthesisResult{
		AudioURL:       gr.AudioFile,
		ProcessingTime: time.Since(start),
	}, nil
}

func clampOffset(v int) int {
	if v < -50 {
		return -50
	}
	if v > 50 {
		return 50
	}
	return v
}

// HealthCheck verifies the key against the voices listing.
func (s *MurfTTS) HealthCheck(ctx context.Context) bool {
	if s.config.APIKey == "" {
		return false
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/speech/voices", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("api-key", s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
