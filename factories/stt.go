package factories

import (
	"errors"

	"voiceagent/core"
	assemblyaistt "voiceagent/services/assemblyai/stt"
	deepgramstt "voiceagent/services/deepgram/stt"
)

// STTFactoryConfig holds provider-specific configs for STT service
// construction. Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	AssemblyAIConfig *assemblyaistt.Config `json:"assemblyai,omitempty"`
	DeepgramConfig   *deepgramstt.Config   `json:"deepgram,omitempty"`
}

// BuildSTTService constructs an STTService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (core.STTService, error) {
	if config.AssemblyAIConfig != nil {
		return assemblyaistt.NewAssemblyAISTT(*config.AssemblyAIConfig, logger), nil
	}
	if config.DeepgramConfig != nil {
		return deepgramstt.NewDeepgramSTT(*config.DeepgramConfig, logger), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
