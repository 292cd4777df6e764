package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"voiceagent/core"
	"voiceagent/factories"
	assemblyaistt "voiceagent/services/assemblyai/stt"
	deepgramstt "voiceagent/services/deepgram/stt"
	elevenlabstts "voiceagent/services/elevenlabs/tts"
	googleaillm "voiceagent/services/googleai/llm"
	murftts "voiceagent/services/murf/tts"
	openaillm "voiceagent/services/openai/llm"
)

// Config is the process configuration, read from the environment with .env
// support. A SETTINGS_PATH JSON file, when present, overrides the per-stage
// provider selection entirely.
type Config struct {
	Port         string
	SettingsPath string

	// Provider selection per stage when no settings file is used.
	STTProvider string
	LLMProvider string
	TTSProvider string

	Keys factories.APIKeys

	SessionDriver string
	MaxMessages   int
	SessionMaxAge time.Duration
	SweepInterval time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	STTTimeout time.Duration
	LLMTimeout time.Duration
	TTSTimeout time.Duration
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:         getEnv("PORT", "8080"),
		SettingsPath: os.Getenv("SETTINGS_PATH"),

		STTProvider: getEnv("STT_PROVIDER", "assemblyai"),
		LLMProvider: getEnv("LLM_PROVIDER", "googleai"),
		TTSProvider: getEnv("TTS_PROVIDER", "murf"),

		Keys: factories.APIKeys{
			AssemblyAI: os.Getenv("ASSEMBLYAI_API_KEY"),
			Deepgram:   os.Getenv("DEEPGRAM_API_KEY"),
			OpenAI:     os.Getenv("OPENAI_API_KEY"),
			Gemini:     os.Getenv("GEMINI_API_KEY"),
			Murf:       os.Getenv("MURF_API_KEY"),
			ElevenLabs: os.Getenv("ELEVENLABS_API_KEY"),
		},

		SessionDriver: getEnv("SESSION_DRIVER", "memory"),
		MaxMessages:   getInt("SESSION_MAX_MESSAGES", 50),
		SessionMaxAge: getDuration("SESSION_MAX_AGE", 24*time.Hour),
		SweepInterval: getDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		STTTimeout: getDuration("STT_TIMEOUT", 30*time.Second),
		LLMTimeout: getDuration("LLM_TIMEOUT", 30*time.Second),
		TTSTimeout: getDuration("TTS_TIMEOUT", 60*time.Second),
	}
}

// PipelineConfig assembles the factory config for the selected providers.
// When SettingsPath is set the JSON file wins and only key injection is
// applied on top.
func (c Config) PipelineConfig() (factories.PipelineConfig, error) {
	if c.SettingsPath != "" {
		cfg, err := factories.PipelineConfigFromFile(c.SettingsPath)
		if err != nil {
			return factories.PipelineConfig{}, err
		}
		cfg.InjectAPIKeys(c.Keys)
		return cfg, nil
	}

	var cfg factories.PipelineConfig

	switch c.STTProvider {
	case "assemblyai":
		cfg.STT.AssemblyAIConfig = &assemblyaistt.Config{}
	case "deepgram":
		cfg.STT.DeepgramConfig = &deepgramstt.Config{}
	default:
		return factories.PipelineConfig{}, fmt.Errorf("unknown STT provider %q", c.STTProvider)
	}

	switch c.LLMProvider {
	case "openai":
		cfg.LLM.OpenAIConfig = &openaillm.Config{}
	case "googleai":
		cfg.LLM.GoogleAIConfig = &googleaillm.Config{}
	default:
		return factories.PipelineConfig{}, fmt.Errorf("unknown LLM provider %q", c.LLMProvider)
	}

	switch c.TTSProvider {
	case "murf":
		cfg.TTS.MurfConfig = &murftts.Config{}
	case "elevenlabs":
		cfg.TTS.ElevenLabsConfig = &elevenlabstts.Config{}
	default:
		return factories.PipelineConfig{}, fmt.Errorf("unknown TTS provider %q", c.TTSProvider)
	}

	cfg.Session = factories.SessionStoreConfig{
		Driver:        c.SessionDriver,
		MaxMessages:   c.MaxMessages,
		MaxAge:        c.SessionMaxAge,
		SweepInterval: c.SweepInterval,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}

	cfg.InjectAPIKeys(c.Keys)
	return cfg, nil
}

// MissingKeys reports which of the selected providers lack credentials.
// Surfaced by the health endpoint so misconfiguration is visible without
// digging through logs.
func (c Config) MissingKeys() []string {
	var missing []string
	check := func(name, key string) {
		if key == "" {
			missing = append(missing, name)
		}
	}
	switch c.STTProvider {
	case "assemblyai":
		check("ASSEMBLYAI_API_KEY", c.Keys.AssemblyAI)
	case "deepgram":
		check("DEEPGRAM_API_KEY", c.Keys.Deepgram)
	}
	switch c.LLMProvider {
	case "openai":
		check("OPENAI_API_KEY", c.Keys.OpenAI)
	case "googleai":
		check("GEMINI_API_KEY", c.Keys.Gemini)
	}
	switch c.TTSProvider {
	case "murf":
		check("MURF_API_KEY", c.Keys.Murf)
	case "elevenlabs":
		check("ELEVENLABS_API_KEY", c.Keys.ElevenLabs)
	}
	return missing
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		core.GetLogger().Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		core.GetLogger().Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
