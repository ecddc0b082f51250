package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openaiAPIBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements ProviderClient for OpenAI and any service that
// speaks the chat completions protocol.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     ClientConfig
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(apiKey string, cfg ClientConfig) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openaiAPIBaseURL
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(cfg),
		config:     cfg,
	}
}

// Provider implements ProviderClient.
func (c *OpenAIClient) Provider() Provider {
	return ProviderOpenAI
}

// IsAvailable implements ProviderClient.
func (c *OpenAIClient) IsAvailable() bool {
	return c.apiKey != ""
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiError struct {
	Error openaiErrorDetail `json:"error"`
}

type openaiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Complete implements ProviderClient.
func (c *OpenAIClient) Complete(
	ctx context.Context,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	start := time.Now()

	model := firstModel(req.Model, c.config.Model, ModelGPT4o)
	maxTokens := firstPositive(req.MaxTokens, c.config.MaxOutputTokens, openAIMaxTokens)
	temperature := firstNonZero(req.Temperature, c.config.Temperature, openAITemperature)

	messages := make([]openaiMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openaiMessage{
		Role:    "user",
		Content: req.UserPrompt,
	})

	openaiReq := openaiRequest{
		Model:       string(model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.ResponseFormat == ResponseFormatJSON {
		openaiReq.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(openaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var openaiResp openaiResponse
	if unmarshalErr := json.Unmarshal(respBody, &openaiResp); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, unmarshalErr)
	}

	if len(openaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: missing choices array", ErrInvalidResponse)
	}

	resp := &CompletionResponse{
		Content:    openaiResp.Choices[0].Message.Content,
		StopReason: openaiResp.Choices[0].FinishReason,
		RequestID:  openaiResp.ID,
		LatencyMS:  time.Since(start).Milliseconds(),
		Usage: Usage{
			InputTokens:  openaiResp.Usage.PromptTokens,
			OutputTokens: openaiResp.Usage.CompletionTokens,
			TotalTokens:  openaiResp.Usage.TotalTokens,
		},
	}
	logCompletion(ctx, ProviderOpenAI, string(model), resp)
	return resp, nil
}

// handleErrorResponse handles OpenAI API errors.
func (c *OpenAIClient) handleErrorResponse(statusCode int, body []byte) error {
	var errResp openaiError
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return classifyStatus(statusCode, string(body), false)
	}

	errMsg := errResp.Error.Message
	return classifyStatus(statusCode, errMsg, errResp.Error.Code == "context_length_exceeded")
}

func firstModel(models ...Model) Model {
	for _, m := range models {
		if m != "" {
			return m
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
