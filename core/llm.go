package core

import "context"

// MaxQueryTextLength bounds user text entering generation.
const MaxQueryTextLength = 10000

// SpeechStylePrompt is the hidden system instruction every generation
// adapter prepends before calling its provider. Callers never see it in
// their context; it exists to keep responses short enough to speak aloud.
const SpeechStylePrompt = `You are a helpful AI voice assistant. Provide clear, concise, and helpful responses. Keep answers to roughly one to three sentences, in a conversational tone suitable for being read aloud. Never use bullet points, numbered lists, or markdown formatting.`

// SimplifiedStylePrompt replaces SpeechStylePrompt in the simplified fallback
// tier: conversation context is dropped and the answer budget shrinks.
const SimplifiedStylePrompt = `You are a voice assistant in degraded mode. Answer the user's message in one short spoken sentence. No formatting of any kind.`

// GenerationRequest carries the user's text plus rendered conversation
// context into an LLM provider.
type GenerationRequest struct {
	UserText string
	// ContextText is the rendered recent history ("role: content" lines),
	// possibly empty for a fresh session.
	ContextText string
	// Simplified selects the provider's reduced-fidelity mode: simplified
	// prompt, cheaper model, tighter token budget. Used by the fallback tier.
	Simplified bool
}

// TokenUsage mirrors provider-reported token accounting.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// GenerationResult is the outcome of a successful generation.
type GenerationResult struct {
	Text  string     `json:"text"`
	Model string     `json:"model,omitempty"`
	Usage TokenUsage `json:"usage"`
}

// LLMService is the generation provider contract. Implementations prepend
// the hidden speech-style instruction, surface safety-block reasons inside
// the error message, and wrap every failure into a PipelineError carrying
// GenerationError or UpstreamUnavailable.
type LLMService interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	HealthCheck(ctx context.Context) bool
}
