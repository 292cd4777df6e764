package assemblyai

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

// Config holds configuration for the AssemblyAI STT service.
type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	// SpeechModel is the full-quality model; BasicModel serves the
	// simplified fallback tier.
	SpeechModel string `json:"speech_model"`
	BasicModel  string `json:"basic_model"`
	// PollInterval is the delay between transcript status polls.
	PollInterval time.Duration `json:"poll_interval"`
}

// AssemblyAISTT implements core.STTService against the AssemblyAI
// asynchronous transcription API: upload the payload, create a transcript
// job, then poll until it settles.
type AssemblyAISTT struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// NewAssemblyAISTT creates the service with defaults applied.
func NewAssemblyAISTT(config Config, logger *core.Logger) *AssemblyAISTT {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.assemblyai.com/v2"
	}
	if config.SpeechModel == "" {
		config.SpeechModel = "best"
	}
	if config.BasicModel == "" {
		config.BasicModel = "nano"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &AssemblyAISTT{
		config: config,
		client: &http.Client{},
		logger: logger,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL    string `json:"audio_url"`
	SpeechModel string `json:"speech_model,omitempty"`
}

type transcriptResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	LanguageCode  string  `json:"language_code"`
	AudioDuration float64 `json:"audio_duration"`
	Error         string  `json:"error"`
	Words         []struct {
		Text       string  `json:"text"`
		Start      int     `json:"start"`
		End        int     `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

func (s *AssemblyAISTT) Transcribe(ctx context.Context, req core.TranscriptionRequest) (*core.TranscriptionResult, error) {
	if s.config.APIKey == "" {
		return nil, core.NewError(core.ConfigurationError, "AssemblyAI API key is not configured")
	}
	if len(req.Audio) == 0 {
		return nil, core.NewError(core.ValidationError, "audio payload is empty")
	}

	uploadURL, err := s.upload(ctx, req.Audio)
	if err != nil {
		return nil, err
	}

	model := s.config.SpeechModel
	if req.Basic {
		model = s.config.BasicModel
	}
	jobID, err := s.createTranscript(ctx, uploadURL, model)
	if err != nil {
		return nil, err
	}

	return s.pollTranscript(ctx, jobID)
}

func (s *AssemblyAISTT) upload(ctx context.Context, audio []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", core.WrapError(core.TranscriptionError, "build upload request", err)
	}
	httpReq.Header.Set("authorization", s.config.APIKey)
	httpReq.Header.Set("content-type", "application/octet-stream")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", core.WrapError(core.UpstreamUnavailable, "AssemblyAI upload failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", core.NewError(core.TranscriptionError, fmt.Sprintf("AssemblyAI upload returned status %d", resp.StatusCode))
	}

	var up uploadResponse
	if err := sonic.Unmarshal(body, &up); err != nil || up.UploadURL == "" {
		return "", core.WrapError(core.TranscriptionError, "invalid upload response", err)
	}
	return up.UploadURL, nil
}

func (s *AssemblyAISTT) createTranscript(ctx context.Context, audioURL, model string) (string, error) {
	payload, err := sonic.Marshal(transcriptRequest{AudioURL: audioURL, SpeechModel: model})
	if err != nil {
		return "", core.WrapError(core.InternalError, "marshal transcript request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", core.WrapError(core.TranscriptionError, "build transcript request", err)
	}
	httpReq.Header.Set("authorization", s.config.APIKey)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", core.WrapError(core.UpstreamUnavailable, "AssemblyAI transcript create failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", core.NewError(core.TranscriptionError, fmt.Sprintf("AssemblyAI transcript create returned status %d", resp.StatusCode))
	}

	var tr transcriptResponse
	if err := sonic.Unmarshal(body, &tr); err != nil || tr.ID == "" {
		return "", core.WrapError(core.TranscriptionError, "invalid transcript create response", err)
	}
	return tr.ID, nil
}

func (s *AssemblyAISTT) pollTranscript(ctx context.Context, jobID string) (*core.TranscriptionResult, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, core.WrapError(core.UpstreamUnavailable, "AssemblyAI transcription timed out", ctx.Err())
		case <-ticker.C:
		}

		tr, err := s.fetchTranscript(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch tr.Status {
		case "completed":
			return s.toResult(tr)
		case "error":
			return nil, core.NewError(core.TranscriptionError, "AssemblyAI transcription error: "+tr.Error)
		default:
			// queued / processing; keep polling
		}
	}
}

func (s *AssemblyAISTT) fetchTranscript(ctx context.Context, jobID string) (*transcriptResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, core.WrapError(core.TranscriptionError, "build transcript poll request", err)
	}
	httpReq.Header.Set("authorization", s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, core.WrapError(core.UpstreamUnavailable, "AssemblyAI transcript poll failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewError(core.TranscriptionError, fmt.Sprintf("AssemblyAI transcript poll returned status %d", resp.StatusCode))
	}

	var tr transcriptResponse
	if err := sonic.Unmarshal(body, &tr); err != nil {
		return nil, core.WrapError(core.TranscriptionError, "invalid transcript poll response", err)
	}
	return &tr, nil
}

func (s *AssemblyAISTT) toResult(tr *transcriptResponse) (*core.TranscriptionResult, error) {
	text := tr.Text
	if text == "" {
		return nil, core.NewError(core.TranscriptionError, "no speech detected in audio")
	}

	result := &core.TranscriptionResult{
		Text:            text,
		Confidence:      tr.Confidence,
		Language:        tr.LanguageCode,
		DurationSeconds: tr.AudioDuration,
	}
	for _, w := range tr.Words {
		result.Words = append(result.Words, core.TranscriptionWord{
			Text:       w.Text,
			Start:      float64(w.Start) / 1000.0,
			End:        float64(w.End) / 1000.0,
			Confidence: w.Confidence,
		})
	}
	return result, nil
}

// HealthCheck performs a minimal authenticated round trip.
func (s *AssemblyAISTT) HealthCheck(ctx context.Context) bool {
	if s.config.APIKey == "" {
		return false
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/transcript?limit=1", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("authorization", s.config.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
