package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"voiceagent/core"
)

// Config holds the configuration for the Google Gemini generation service.
type Config struct {
	APIKey string `json:"api_key"`
	// Model is the full-quality model; BasicModel serves the simplified
	// fallback tier.
	Model       string  `json:"model"`
	BasicModel  string  `json:"basic_model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// GoogleAILLM implements core.LLMService using Gemini through langchaingo.
type GoogleAILLM struct {
	config Config
	client *googleai.GoogleAI
	logger *core.Logger
}

// NewGoogleAILLM creates the service with defaults applied. A missing API
// key is not a construction error: the service reports unhealthy and rejects
// generation at call time, so the process can still boot and serve health.
func NewGoogleAILLM(ctx context.Context, config Config, logger *core.Logger) (*GoogleAILLM, error) {
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	if config.BasicModel == "" {
		config.BasicModel = "gemini-1.5-flash-8b"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 300
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	var client *googleai.GoogleAI
	if config.APIKey != "" {
		var err error
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(config.APIKey),
			googleai.WithDefaultModel(config.Model),
		)
		if err != nil {
			return nil, core.WrapError(core.ConfigurationError, "create Gemini client", err)
		}
	}

	return &GoogleAILLM{config: config, client: client, logger: logger}, nil
}

func (s *GoogleAILLM) Generate(ctx context.Context, req core.GenerationRequest) (*core.GenerationResult, error) {
	if s.client == nil {
		return nil, core.NewError(core.ConfigurationError, "Gemini API key is not configured")
	}
	userText := strings.TrimSpace(req.UserText)
	if userText == "" {
		return nil, core.NewError(core.ValidationError, "user text must not be empty")
	}

	model := s.config.Model
	maxTokens := s.config.MaxTokens
	systemPrompt := core.SpeechStylePrompt
	if req.Simplified {
		model = s.config.BasicModel
		maxTokens = maxTokens / 2
		systemPrompt = core.SimplifiedStylePrompt
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
	}
	if req.ContextText != "" && !req.Simplified {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, "Recent conversation:\n"+req.ContextText))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, userText))

	resp, err := s.client.GenerateContent(ctx, content,
		llms.WithModel(model),
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(s.config.Temperature),
	)
	if err != nil {
		return nil, core.WrapError(core.UpstreamUnavailable, "Gemini generation failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewError(core.GenerationError, "Gemini returned no candidates")
	}

	choice := resp.Choices[0]
	if reason := strings.ToLower(choice.StopReason); strings.Contains(reason, "safety") {
		return nil, core.NewError(core.GenerationError, "response blocked by safety filter: "+choice.StopReason)
	}
	text := strings.TrimSpace(choice.Content)
	if text == "" {
		return nil, core.NewError(core.GenerationError, "Gemini returned an empty response")
	}

	return &core.GenerationResult{
		Text:  text,
		Model: model,
		Usage: tokenUsage(choice.GenerationInfo),
	}, nil
}

// tokenUsage reads provider token counts from the generation info map.
// Key names and value types vary between langchaingo providers, so every
// read is guarded.
func tokenUsage(info map[string]any) core.TokenUsage {
	return core.TokenUsage{
		Prompt:     intFromInfo(info, "prompt_tokens", "input_tokens"),
		Completion: intFromInfo(info, "candidate_tokens", "completion_tokens", "output_tokens"),
		Total:      intFromInfo(info, "total_tokens"),
	}
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := info[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// HealthCheck issues a one-token generation as an authenticated probe.
func (s *GoogleAILLM) HealthCheck(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	_, err := s.client.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "ping")},
		llms.WithModel(s.config.BasicModel),
		llms.WithMaxTokens(1),
	)
	return err == nil
}
