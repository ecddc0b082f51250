package config

import (
	"time"

	"github.com/pitabwire/frame/config"

	"github.com/antinvestor/decider/internal/cache"
	"github.com/antinvestor/decider/internal/embedding"
	"github.com/antinvestor/decider/internal/llm"
	"github.com/antinvestor/decider/internal/pipeline"
)

// DeciderConfig defines configuration for the decider service.
// The decider accepts an artifact over HTTP, runs it through the four stage
// reasoning pipeline and records the resulting decision.
type DeciderConfig struct {
	config.ConfigurationDefault

	// ==========================================================================
	// Reasoning Provider
	// ==========================================================================

	// LLMProvider forces a wire protocol (openai, google, anthropic).
	// Empty derives it from the base URL and model.
	LLMProvider string `env:"LLM_PROVIDER"`

	// LLMAPIKey is the API key for the reasoning provider.
	LLMAPIKey string `env:"LLM_API_KEY"`

	// LLMAPIBaseURL overrides the provider endpoint, e.g. an OpenAI-compatible gateway.
	LLMAPIBaseURL string `env:"LLM_API_BASE_URL"`

	// LLMModel is the model every stage uses.
	LLMModel string `envDefault:"gpt-4o" env:"LLM_MODEL"`

	// LLMTimeoutSeconds is the timeout for one reasoning call.
	LLMTimeoutSeconds int `envDefault:"120" env:"LLM_TIMEOUT_SECONDS"`

	// ==========================================================================
	// Embeddings
	// ==========================================================================

	// EmbeddingProvider selects the embedding engine (voyage, genai).
	EmbeddingProvider string `envDefault:"voyage" env:"EMBEDDING_PROVIDER"`

	VoyageAPIKey string `env:"VOYAGE_API_KEY"`
	VoyageAPIURL string `envDefault:"https://api.voyageai.com/v1/embeddings" env:"VOYAGE_API_URL"`
	VoyageModel  string `envDefault:"voyage-large-2" env:"VOYAGE_MODEL"`

	GenAIAPIKey         string `env:"GENAI_API_KEY"`
	GenAIEmbeddingModel string `envDefault:"gemini-embedding-001" env:"GENAI_EMBEDDING_MODEL"`

	// EmbeddingCacheBackend is the cache in front of the engine (none, memory, redis).
	EmbeddingCacheBackend string `envDefault:"memory" env:"EMBEDDING_CACHE_BACKEND"`

	// EmbeddingCacheTTLSeconds is how long a cached vector lives.
	EmbeddingCacheTTLSeconds int `envDefault:"86400" env:"EMBEDDING_CACHE_TTL_SECONDS"`

	// RedisURL is used by the redis cache backend.
	RedisURL string `envDefault:"redis://localhost:6379/0" env:"REDIS_URL"`

	// ==========================================================================
	// Similarity Search
	// ==========================================================================

	// SimilarityLimit is how many past decisions the historian sees.
	SimilarityLimit int `envDefault:"5" env:"SIMILARITY_LIMIT"`

	// SimilarityCandidateWindow bounds how many recent decisions are scored.
	SimilarityCandidateWindow int `envDefault:"1000" env:"SIMILARITY_CANDIDATE_WINDOW"`

	// ==========================================================================
	// Stage Retry
	// ==========================================================================

	// StageRetryMaxAttempts is the number of attempts per stage. 1 disables retry.
	StageRetryMaxAttempts    int `envDefault:"1"     env:"STAGE_RETRY_MAX_ATTEMPTS"`
	StageRetryInitialDelayMS int `envDefault:"500"   env:"STAGE_RETRY_INITIAL_DELAY_MS"`
	StageRetryMaxDelayMS     int `envDefault:"10000" env:"STAGE_RETRY_MAX_DELAY_MS"`

	// ==========================================================================
	// HTTP API
	// ==========================================================================

	// RateLimitRequestsPerMinute limits requests per minute per client.
	RateLimitRequestsPerMinute int `envDefault:"30" env:"RATE_LIMIT_REQUESTS_PER_MINUTE"`

	// RateLimitBurstSize is the burst size for rate limiting.
	RateLimitBurstSize int `envDefault:"5" env:"RATE_LIMIT_BURST_SIZE"`

	// MaxArtifactSize is the maximum request body size in bytes.
	MaxArtifactSize int `envDefault:"1048576" env:"MAX_ARTIFACT_SIZE"` // 1MB
}

// LLMClientConfig returns the reasoning client configuration.
func (c *DeciderConfig) LLMClientConfig() llm.ClientConfig {
	cfg := llm.DefaultClientConfig()
	cfg.Provider = llm.Provider(c.LLMProvider)
	cfg.APIKey = c.LLMAPIKey
	cfg.BaseURL = c.LLMAPIBaseURL
	if c.LLMModel != "" {
		cfg.Model = llm.Model(c.LLMModel)
	}
	if c.LLMTimeoutSeconds > 0 {
		cfg.TimeoutSeconds = c.LLMTimeoutSeconds
	}
	return cfg
}

// EmbeddingConfig returns the embedding engine configuration.
func (c *DeciderConfig) EmbeddingConfig() embedding.Config {
	cfg := embedding.DefaultConfig()
	if c.EmbeddingProvider != "" {
		cfg.Provider = embedding.Provider(c.EmbeddingProvider)
	}
	cfg.VoyageAPIKey = c.VoyageAPIKey
	if c.VoyageAPIURL != "" {
		cfg.VoyageURL = c.VoyageAPIURL
	}
	if c.VoyageModel != "" {
		cfg.VoyageModel = c.VoyageModel
	}
	cfg.GenAIAPIKey = c.GenAIAPIKey
	if c.GenAIEmbeddingModel != "" {
		cfg.GenAIModel = c.GenAIEmbeddingModel
	}
	return cfg
}

// EmbeddingCacheTTL returns the cache entry lifetime.
func (c *DeciderConfig) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.EmbeddingCacheTTLSeconds) * time.Second
}

// CacheConfig returns the embedding cache store configuration.
func (c *DeciderConfig) CacheConfig() cache.Config {
	return cache.Config{
		Backend:  cache.BackendType(c.EmbeddingCacheBackend),
		RedisURL: c.RedisURL,
		TTL:      c.EmbeddingCacheTTL(),
	}
}

// RetryPolicy returns the per-stage retry policy.
func (c *DeciderConfig) RetryPolicy() pipeline.RetryPolicy {
	if c.StageRetryMaxAttempts <= 1 {
		return pipeline.NoRetry()
	}
	policy := pipeline.DefaultRetryPolicy()
	policy.MaxAttempts = c.StageRetryMaxAttempts
	if c.StageRetryInitialDelayMS > 0 {
		policy.InitialDelay = time.Duration(c.StageRetryInitialDelayMS) * time.Millisecond
	}
	if c.StageRetryMaxDelayMS > 0 {
		policy.MaxDelay = time.Duration(c.StageRetryMaxDelayMS) * time.Millisecond
	}
	return policy
}
