// Package llm provides the reasoning provider clients used by the decision pipeline.
package llm

import "strings"

// Provider identifies an LLM provider.
type Provider string

// LLM provider constants.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Model identifies an LLM model.
type Model string

// Default models per provider.
const (
	ModelClaudeSonnet Model = "claude-sonnet-4-20250514"
	ModelGPT4o        Model = "gpt-4o"
	ModelGeminiFlash  Model = "gemini-2.0-flash"
)

// ResponseFormat tells a provider how the model should shape its reply.
type ResponseFormat string

// Response format constants.
const (
	ResponseFormatText ResponseFormat = "text"
	ResponseFormatJSON ResponseFormat = "json"
)

// Usage tracks token usage for one completion.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int `json:"cache_write_tokens,omitempty"`
}

const (
	defaultTimeoutSeconds = 120

	// Sampling settings of the two call paths the pipeline has always used.
	openAIMaxTokens    = 2000
	openAITemperature  = 0.7
	googleMaxTokens    = 2048
	googleTemperature  = 0.2
	anthropicMaxTokens = 2048
)

// ClientConfig contains LLM client configuration.
type ClientConfig struct {
	// Provider selects the wire protocol. Empty means derive it from
	// BaseURL and Model with ResolveProvider.
	Provider Provider

	APIKey string

	// BaseURL overrides the provider's public endpoint. OpenAI-compatible
	// gateways and test servers set this.
	BaseURL string

	Model Model

	TimeoutSeconds int

	// MaxOutputTokens and Temperature override the provider defaults when non-zero.
	MaxOutputTokens int
	Temperature     float64
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Provider:       ProviderOpenAI,
		Model:          ModelGPT4o,
		TimeoutSeconds: defaultTimeoutSeconds,
	}
}

// ResolveProvider picks the wire protocol for a configured endpoint.
// Gemini native is used when the base URL points at the Generative Language
// API or the model name starts with "gemini"; everything else speaks the
// OpenAI-compatible chat completions protocol.
func ResolveProvider(baseURL string, model Model) Provider {
	if strings.Contains(baseURL, "generativelanguage.googleapis.com") ||
		strings.HasPrefix(strings.ToLower(string(model)), "gemini") {
		return ProviderGoogle
	}
	return ProviderOpenAI
}
