package factories

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"voiceagent/core"
	"voiceagent/pipeline"
	"voiceagent/session"
)

// SessionStoreConfig selects and bounds the session store. Driver "memory"
// (the default) keeps sessions in process; "redis" survives restarts.
type SessionStoreConfig struct {
	Driver        string        `json:"driver"`
	MaxMessages   int           `json:"max_messages"`
	MaxAge        time.Duration `json:"max_age"`
	SweepInterval time.Duration `json:"sweep_interval"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
}

// PipelineConfig is the top-level config assembling one provider per stage
// plus the session store.
type PipelineConfig struct {
	STT     STTFactoryConfig   `json:"stt"`
	LLM     LLMFactoryConfig   `json:"llm"`
	TTS     TTSFactoryConfig   `json:"tts"`
	Session SessionStoreConfig `json:"session"`
}

// PipelineConfigFromJSON parses a JSON blob into a PipelineConfig.
func PipelineConfigFromJSON(data []byte) (PipelineConfig, error) {
	var cfg PipelineConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("pipeline config: %w", err)
	}
	return cfg, nil
}

// PipelineConfigFromFile reads and parses a PipelineConfig from a JSON file.
func PipelineConfigFromFile(path string) (PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("pipeline config: read %q: %w", path, err)
	}
	return PipelineConfigFromJSON(data)
}

// APIKeys carries provider credentials. Pass to InjectAPIKeys after loading
// the config from JSON so that secrets are never stored in config files.
type APIKeys struct {
	AssemblyAI string
	Deepgram   string
	OpenAI     string
	Gemini     string
	Murf       string
	ElevenLabs string
}

// InjectAPIKeys applies API credentials to every configured provider that
// does not already carry a key.
func (c *PipelineConfig) InjectAPIKeys(keys APIKeys) {
	if c.STT.AssemblyAIConfig != nil && c.STT.AssemblyAIConfig.APIKey == "" {
		c.STT.AssemblyAIConfig.APIKey = keys.AssemblyAI
	}
	if c.STT.DeepgramConfig != nil && c.STT.DeepgramConfig.APIKey == "" {
		c.STT.DeepgramConfig.APIKey = keys.Deepgram
	}
	if c.LLM.OpenAIConfig != nil && c.LLM.OpenAIConfig.APIKey == "" {
		c.LLM.OpenAIConfig.APIKey = keys.OpenAI
	}
	if c.LLM.GoogleAIConfig != nil && c.LLM.GoogleAIConfig.APIKey == "" {
		c.LLM.GoogleAIConfig.APIKey = keys.Gemini
	}
	if c.TTS.MurfConfig != nil && c.TTS.MurfConfig.APIKey == "" {
		c.TTS.MurfConfig.APIKey = keys.Murf
	}
	if c.TTS.ElevenLabsConfig != nil && c.TTS.ElevenLabsConfig.APIKey == "" {
		c.TTS.ElevenLabsConfig.APIKey = keys.ElevenLabs
	}
}

// Runtime is the assembled pipeline: the orchestrator plus the pieces the
// HTTP surface also needs direct access to.
type Runtime struct {
	Orchestrator *pipeline.Orchestrator
	STT          core.STTService
	LLM          core.LLMService
	TTS          core.TTSService
	Store        session.Store
	Policy       pipeline.Policy
}

// BuildRuntime constructs all services and wires the orchestrator.
func BuildRuntime(ctx context.Context, cfg PipelineConfig, policy pipeline.Policy, logger *core.Logger) (*Runtime, error) {
	if logger == nil {
		logger = core.GetLogger()
	}

	stt, err := BuildSTTService(cfg.STT, logger)
	if err != nil {
		return nil, fmt.Errorf("stt service: %w", err)
	}
	llm, err := BuildLLMService(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm service: %w", err)
	}
	tts, err := BuildTTSService(cfg.TTS, logger)
	if err != nil {
		return nil, fmt.Errorf("tts service: %w", err)
	}
	store, err := buildStore(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	return &Runtime{
		Orchestrator: pipeline.NewOrchestrator(stt, llm, tts, store, policy, logger),
		STT:          stt,
		LLM:          llm,
		TTS:          tts,
		Store:        store,
		Policy:       policy,
	}, nil
}

func buildStore(ctx context.Context, cfg SessionStoreConfig) (session.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return session.NewMemoryStore(cfg.MaxMessages), nil
	case "redis":
		return session.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MaxMessages, cfg.MaxAge)
	default:
		return nil, fmt.Errorf("unknown session store driver %q", cfg.Driver)
	}
}
