package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	appconfig "github.com/antinvestor/decider/apps/decider/config"
)

// fileConfig is the YAML config file layout. Empty values keep the
// environment or default setting.
type fileConfig struct {
	LLM struct {
		Provider       string `yaml:"provider"`
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`

	Embedding struct {
		Provider     string `yaml:"provider"`
		VoyageAPIKey string `yaml:"voyage_api_key"`
		VoyageURL    string `yaml:"voyage_url"`
		VoyageModel  string `yaml:"voyage_model"`
		GenAIAPIKey  string `yaml:"genai_api_key"`
		GenAIModel   string `yaml:"genai_model"`
	} `yaml:"embedding"`

	Pipeline struct {
		SimilarityLimit   int `yaml:"similarity_limit"`
		RetryMaxAttempts  int `yaml:"retry_max_attempts"`
		RetryInitialDelay int `yaml:"retry_initial_delay_ms"`
	} `yaml:"pipeline"`
}

// loadConfig builds the service config from the environment, then the
// optional YAML file on top.
func loadConfig(path string) (*appconfig.DeciderConfig, error) {
	cfg := &appconfig.DeciderConfig{
		LLMProvider:              os.Getenv("LLM_PROVIDER"),
		LLMAPIKey:                os.Getenv("LLM_API_KEY"),
		LLMAPIBaseURL:            os.Getenv("LLM_API_BASE_URL"),
		LLMModel:                 envOr("LLM_MODEL", "gpt-4o"),
		LLMTimeoutSeconds:        120,
		EmbeddingProvider:        envOr("EMBEDDING_PROVIDER", "voyage"),
		VoyageAPIKey:             os.Getenv("VOYAGE_API_KEY"),
		VoyageAPIURL:             os.Getenv("VOYAGE_API_URL"),
		VoyageModel:              os.Getenv("VOYAGE_MODEL"),
		GenAIAPIKey:              os.Getenv("GENAI_API_KEY"),
		GenAIEmbeddingModel:      os.Getenv("GENAI_EMBEDDING_MODEL"),
		EmbeddingCacheBackend:    "memory",
		EmbeddingCacheTTLSeconds: 86400,
		SimilarityLimit:          5,
		StageRetryMaxAttempts:    1,
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err = yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.LLMProvider, fc.LLM.Provider)
	setString(&cfg.LLMAPIKey, fc.LLM.APIKey)
	setString(&cfg.LLMAPIBaseURL, fc.LLM.BaseURL)
	setString(&cfg.LLMModel, fc.LLM.Model)
	setInt(&cfg.LLMTimeoutSeconds, fc.LLM.TimeoutSeconds)
	setString(&cfg.EmbeddingProvider, fc.Embedding.Provider)
	setString(&cfg.VoyageAPIKey, fc.Embedding.VoyageAPIKey)
	setString(&cfg.VoyageAPIURL, fc.Embedding.VoyageURL)
	setString(&cfg.VoyageModel, fc.Embedding.VoyageModel)
	setString(&cfg.GenAIAPIKey, fc.Embedding.GenAIAPIKey)
	setString(&cfg.GenAIEmbeddingModel, fc.Embedding.GenAIModel)
	setInt(&cfg.SimilarityLimit, fc.Pipeline.SimilarityLimit)
	setInt(&cfg.StageRetryMaxAttempts, fc.Pipeline.RetryMaxAttempts)
	setInt(&cfg.StageRetryInitialDelayMS, fc.Pipeline.RetryInitialDelay)

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
