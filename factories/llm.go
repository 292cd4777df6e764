package factories

import (
	"context"
	"errors"

	"voiceagent/core"
	googleaillm "voiceagent/services/googleai/llm"
	openaillm "voiceagent/services/openai/llm"
)

// LLMFactoryConfig holds provider-specific configs for LLM service
// construction. Set exactly one provider config; the rest should be left nil.
type LLMFactoryConfig struct {
	OpenAIConfig   *openaillm.Config   `json:"openai,omitempty"`
	GoogleAIConfig *googleaillm.Config `json:"googleai,omitempty"`
}

// BuildLLMService constructs an LLMService from the given factory config.
// Exactly one provider config must be non-nil. The context is used by
// providers whose clients dial during construction.
func BuildLLMService(ctx context.Context, config LLMFactoryConfig, logger *core.Logger) (core.LLMService, error) {
	if config.OpenAIConfig != nil {
		return openaillm.NewOpenAILLM(*config.OpenAIConfig, logger), nil
	}
	if config.GoogleAIConfig != nil {
		return googleaillm.NewGoogleAILLM(ctx, *config.GoogleAIConfig, logger)
	}
	return nil, errors.New("LLMFactoryConfig: no provider config specified")
}
