package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Voyage defaults.
const (
	DefaultVoyageURL   = "https://api.voyageai.com/v1/embeddings"
	DefaultVoyageModel = "voyage-large-2"

	voyageTimeout = 30 * time.Second
)

// VoyageEngine calls the Voyage AI embeddings endpoint.
type VoyageEngine struct {
	apiKey string
	url    string
	model  string
	client *http.Client
}

// NewVoyageEngine creates a Voyage engine. Empty url and model use the defaults.
func NewVoyageEngine(apiKey, url, model string) (*VoyageEngine, error) {
	if apiKey == "" {
		return nil, errors.New("VOYAGE_API_KEY is required for the voyage embedding provider")
	}
	if url == "" {
		url = DefaultVoyageURL
	}
	if model == "" {
		model = DefaultVoyageModel
	}

	return &VoyageEngine{
		apiKey: apiKey,
		url:    url,
		model:  model,
		client: &http.Client{Timeout: voyageTimeout},
	}, nil
}

type voyageRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements Engine.
func (e *VoyageEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(voyageRequest{Input: text, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrEmbedding, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrEmbedding, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: voyage request: %w", ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: voyage returned status %d: %s", ErrEmbedding, resp.StatusCode, string(errBody))
	}

	var result voyageResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrEmbedding, decodeErr)
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: invalid response from voyage: no embedding data", ErrEmbedding)
	}

	return result.Data[0].Embedding, nil
}

// Name implements Engine.
func (e *VoyageEngine) Name() string {
	return "voyage:" + e.model
}
