package factories

import (
	"errors"

	"voiceagent/core"
	elevenlabstts "voiceagent/services/elevenlabs/tts"
	murftts "voiceagent/services/murf/tts"
)

// TTSFactoryConfig holds provider-specific configs for TTS service
// construction. Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	MurfConfig       *murftts.Config       `json:"murf,omitempty"`
	ElevenLabsConfig *elevenlabstts.Config `json:"elevenlabs,omitempty"`
}

// BuildTTSService constructs a TTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (core.TTSService, error) {
	if config.MurfConfig != nil {
		return murftts.NewMurfTTS(*config.MurfConfig, logger), nil
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabstts.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
