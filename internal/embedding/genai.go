package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGenAIModel is the Gemini embedding model used when none is configured.
const DefaultGenAIModel = "gemini-embedding-001"

// GenAIEngine generates embeddings with Google's Gemini API.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
}

// GenAIOption configures a GenAIEngine.
type GenAIOption func(*genai.ClientConfig)

// WithGenAIBaseURL points the client at a different API host.
func WithGenAIBaseURL(baseURL string) GenAIOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = baseURL
	}
}

// NewGenAIEngine creates a GenAI engine. An empty model uses DefaultGenAIModel.
func NewGenAIEngine(ctx context.Context, apiKey, model, taskType string, opts ...GenAIOption) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("GENAI_API_KEY is required for the genai embedding provider")
	}
	if model == "" {
		model = DefaultGenAIModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    model,
		taskType: normalizeTaskType(taskType),
	}, nil
}

// normalizeTaskType maps a configured task type onto one the API accepts.
func normalizeTaskType(taskType string) string {
	switch taskType {
	case "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY", "CLUSTERING", "CLASSIFICATION", "SEMANTIC_SIMILARITY":
		return taskType
	default:
		return "SEMANTIC_SIMILARITY"
	}
}

// Embed implements Engine.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: genai embed: %w", ErrEmbedding, err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: genai returned no embeddings", ErrEmbedding)
	}

	return result.Embeddings[0].Values, nil
}

// Name implements Engine.
func (e *GenAIEngine) Name() string {
	return "genai:" + e.model
}
