package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"voiceagent/core"
)

func TestNewWithoutKeyDegradesInsteadOfFailing(t *testing.T) {
	svc, err := NewGoogleAILLM(context.Background(), Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, svc)

	require.False(t, svc.HealthCheck(context.Background()))

	_, err = svc.Generate(context.Background(), core.GenerationRequest{UserText: "hello"})
	require.Error(t, err)
	require.Equal(t, core.ConfigurationError, core.KindOf(err))
}

func TestTokenUsageGuardsValueTypes(t *testing.T) {
	usage := tokenUsage(map[string]any{
		"prompt_tokens":    int32(12),
		"candidate_tokens": float64(7),
		"total_tokens":     19,
	})
	require.Equal(t, 12, usage.Prompt)
	require.Equal(t, 7, usage.Completion)
	require.Equal(t, 19, usage.Total)

	require.Equal(t, core.TokenUsage{}, tokenUsage(nil))
	require.Equal(t, core.TokenUsage{}, tokenUsage(map[string]any{"prompt_tokens": "12"}))
}
