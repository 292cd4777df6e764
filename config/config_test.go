package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "assemblyai", cfg.STTProvider)
	require.Equal(t, "googleai", cfg.LLMProvider)
	require.Equal(t, "murf", cfg.TTSProvider)
	require.Equal(t, "memory", cfg.SessionDriver)
	require.Equal(t, 50, cfg.MaxMessages)
	require.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	require.Equal(t, 30*time.Second, cfg.STTTimeout)
	require.Equal(t, 60*time.Second, cfg.TTSTimeout)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STT_PROVIDER", "deepgram")
	t.Setenv("SESSION_MAX_MESSAGES", "10")
	t.Setenv("LLM_TIMEOUT", "5s")

	cfg := Load()
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, "deepgram", cfg.STTProvider)
	require.Equal(t, 10, cfg.MaxMessages)
	require.Equal(t, 5*time.Second, cfg.LLMTimeout)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SESSION_MAX_MESSAGES", "many")
	t.Setenv("STT_TIMEOUT", "soon")

	cfg := Load()
	require.Equal(t, 50, cfg.MaxMessages)
	require.Equal(t, 30*time.Second, cfg.STTTimeout)
}

func TestPipelineConfigSelectsProviders(t *testing.T) {
	t.Setenv("STT_PROVIDER", "deepgram")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("TTS_PROVIDER", "elevenlabs")
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("OPENAI_API_KEY", "oa")
	t.Setenv("ELEVENLABS_API_KEY", "el")

	cfg := Load()
	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)
	require.NotNil(t, pc.STT.DeepgramConfig)
	require.Equal(t, "dg", pc.STT.DeepgramConfig.APIKey)
	require.NotNil(t, pc.LLM.OpenAIConfig)
	require.Equal(t, "oa", pc.LLM.OpenAIConfig.APIKey)
	require.NotNil(t, pc.TTS.ElevenLabsConfig)
	require.Equal(t, "el", pc.TTS.ElevenLabsConfig.APIKey)
}

func TestPipelineConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("STT_PROVIDER", "whisperx")

	cfg := Load()
	_, err := cfg.PipelineConfig()
	require.Error(t, err)
}

func TestMissingKeys(t *testing.T) {
	t.Setenv("STT_PROVIDER", "assemblyai")
	t.Setenv("LLM_PROVIDER", "googleai")
	t.Setenv("TTS_PROVIDER", "murf")
	t.Setenv("GEMINI_API_KEY", "present")

	cfg := Load()
	missing := cfg.MissingKeys()
	require.Contains(t, missing, "ASSEMBLYAI_API_KEY")
	require.Contains(t, missing, "MURF_API_KEY")
	require.NotContains(t, missing, "GEMINI_API_KEY")
}
