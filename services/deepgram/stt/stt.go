package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"

	"voiceagent/core"
)

// Config holds configuration for the Deepgram STT service.
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	// Model is the full-quality model; BasicModel serves the simplified
	// fallback tier.
	Model      string `json:"model"`
	BasicModel string `json:"basic_model"`
	Language   string `json:"language"`
}

// DeepgramSTT implements core.STTService against the Deepgram prerecorded
// transcription API. Unlike AssemblyAI, this is a single synchronous POST,
// which makes Deepgram the natural secondary for latency-sensitive callers.
type DeepgramSTT struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// NewDeepgramSTT creates the service with defaults applied.
func NewDeepgramSTT(config Config, logger *core.Logger) *DeepgramSTT {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepgram.com"
	}
	if config.Model == "" {
		config.Model = "nova-2"
	}
	if config.BasicModel == "" {
		config.BasicModel = "base"
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramSTT{
		config: config,
		client: &http.Client{},
		logger: logger,
	}
}

type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (s *DeepgramSTT) Transcribe(ctx context.Context, req core.TranscriptionRequest) (*core.TranscriptionResult, error) {
	if s.config.APIKey == "" {
		return nil, core.NewError(core.ConfigurationError, "Deepgram API key is not configured")
	}
	if len(req.Audio) == 0 {
		return nil, core.NewError(core.ValidationError, "audio payload is empty")
	}

	model := s.config.Model
	if req.Basic {
		model = s.config.BasicModel
	}

	query := url.Values{}
	query.Set("model", model)
	query.Set("smart_format", "true")
	if s.config.Language != "" {
		query.Set("language", s.config.Language)
	} else {
		query.Set("detect_language", "true")
	}

	endpoint := s.config.BaseURL + "/v1/listen?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, core.WrapError(core.TranscriptionError, "build listen request", err)
	}
	httpReq.Header.Set("Authorization", "Token "+s.config.APIKey)
	if req.MimeType != "" {
		httpReq.Header.Set("Content-Type", req.MimeType)
	} else {
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, core.WrapError(core.UpstreamUnavailable, "Deepgram request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewError(core.TranscriptionError, fmt.Sprintf("Deepgram returned status %d", resp.StatusCode))
	}

	var lr listenResponse
	if err := sonic.Unmarshal(body, &lr); err != nil {
		return nil, core.WrapError(core.TranscriptionError, "invalid Deepgram response", err)
	}
	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return nil, core.NewError(core.TranscriptionError, "Deepgram response carried no transcript")
	}

	channel := lr.Results.Channels[0]
	alt := channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil, core.NewError(core.TranscriptionError, "no speech detected in audio")
	}

	result := &core.TranscriptionResult{
		Text:            alt.Transcript,
		Confidence:      alt.Confidence,
		Language:        channel.DetectedLanguage,
		DurationSeconds: lr.Metadata.Duration,
	}
	for _, w := range alt.Words {
		result.Words = append(result.Words, core.TranscriptionWord{
			Text:       w.Word,
			Start:      w.Start,
			End:        w.End,
			Confidence: w.Confidence,
		})
	}
	return result, nil
}

// HealthCheck verifies the key against the projects endpoint.
func (s *DeepgramSTT) HealthCheck(ctx context.Context) bool {
	if s.config.APIKey == "" {
		return false
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/v1/projects", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("Authorization", "Token "+s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
