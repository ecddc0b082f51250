// Package embedding turns artifact text into vectors for similarity search.
// Engines: Voyage AI over HTTP (default) and Google GenAI. A caching
// decorator can sit in front of either.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pitabwire/util"
)

// ErrEmbedding wraps every failure to produce a vector.
var ErrEmbedding = errors.New("embedding generation failed")

// ErrDimensionMismatch is returned when comparing vectors of different length.
var ErrDimensionMismatch = errors.New("vectors must have the same length")

// Provider names an embedding backend.
type Provider string

// Embedding provider constants.
const (
	ProviderVoyage Provider = "voyage"
	ProviderGenAI  Provider = "genai"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed returns the embedding of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the engine and model, e.g. "voyage:voyage-large-2".
	Name() string
}

// Config selects and configures an engine.
type Config struct {
	Provider Provider

	VoyageAPIKey string
	VoyageURL    string
	VoyageModel  string

	GenAIAPIKey string
	GenAIModel  string
	TaskType    string
}

// DefaultConfig returns the Voyage defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderVoyage,
		VoyageURL:   DefaultVoyageURL,
		VoyageModel: DefaultVoyageModel,
		GenAIModel:  DefaultGenAIModel,
		TaskType:    "SEMANTIC_SIMILARITY",
	}
}

// NewEngine creates the engine named by cfg.Provider.
func NewEngine(ctx context.Context, cfg Config) (Engine, error) {
	log := util.Log(ctx)

	var (
		engine Engine
		err    error
	)
	switch cfg.Provider {
	case ProviderVoyage, "":
		engine, err = NewVoyageEngine(cfg.VoyageAPIKey, cfg.VoyageURL, cfg.VoyageModel)
	case ProviderGenAI:
		engine, err = NewGenAIEngine(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'voyage' or 'genai')", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	log.Info("embedding engine ready", "engine", engine.Name())
	return engine, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. A zero-magnitude vector scores 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aMag += x * x
		bMag += y * y
	}

	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}
