package llm

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"voiceagent/core"
)

// Config holds the configuration for the OpenAI generation service.
type Config struct {
	APIKey string `json:"api_key"`
	// Model is the full-quality model; BasicModel serves the simplified
	// fallback tier.
	Model       string  `json:"model"`
	BasicModel  string  `json:"basic_model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// OpenAILLM implements core.LLMService using OpenAI chat completions.
type OpenAILLM struct {
	config Config
	client *openai.Client
	logger *core.Logger
}

// NewOpenAILLM creates the service with defaults applied.
func NewOpenAILLM(config Config, logger *core.Logger) *OpenAILLM {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.BasicModel == "" {
		config.BasicModel = openai.GPT3Dot5Turbo
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
	return &OpenAILLM{
		config: config,
		client: openai.NewClient(config.APIKey),
		logger: logger,
	}
}

func (s *OpenAILLM) Generate(ctx context.Context, req core.GenerationRequest) (*core.GenerationResult, error) {
	if s.config.APIKey == "" {
		return nil, core.NewError(core.ConfigurationError, "OpenAI API key is not configured")
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

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if req.ContextText != "" && !req.Simplified {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Recent conversation:\n" + req.ContextText,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return nil, core.WrapError(core.UpstreamUnavailable, "OpenAI completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewError(core.GenerationError, "OpenAI returned no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, core.NewError(core.GenerationError, "response blocked by content filter")
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, core.NewError(core.GenerationError, "OpenAI returned an empty response")
	}

	return &core.GenerationResult{
		Text:  text,
		Model: resp.Model,
		Usage: core.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}

// HealthCheck lists models as a cheap authenticated probe.
func (s *OpenAILLM) HealthCheck(ctx context.Context) bool {
	if s.config.APIKey == "" {
		return false
	}
	_, err := s.client.ListModels(ctx)
	return err == nil
}
