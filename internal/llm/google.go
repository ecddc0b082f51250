package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleClient implements ProviderClient for the Gemini native API.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     ClientConfig
}

// NewGoogleClient creates a new Google AI client.
func NewGoogleClient(apiKey string, cfg ClientConfig) *GoogleClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleAPIBaseURL
	}
	return &GoogleClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(cfg),
		config:     cfg,
	}
}

// Provider implements ProviderClient.
func (c *GoogleClient) Provider() Provider {
	return ProviderGoogle
}

// IsAvailable implements ProviderClient.
func (c *GoogleClient) IsAvailable() bool {
	return c.apiKey != ""
}

type googleRequest struct {
	Contents          []googleContent        `json:"contents"`
	GenerationConfig  googleGenerationConfig `json:"generationConfig"`
	SystemInstruction *googleContent         `json:"systemInstruction,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenerationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type googleResponse struct {
	Candidates    []googleCandidate   `json:"candidates"`
	UsageMetadata googleUsageMetadata `json:"usageMetadata"`
}

type googleCandidate struct {
	Content      googleContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type googleUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type googleError struct {
	Error googleErrorDetail `json:"error"`
}

type googleErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Complete implements ProviderClient.
func (c *GoogleClient) Complete(
	ctx context.Context,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	start := time.Now()

	model := firstModel(req.Model, c.config.Model, ModelGeminiFlash)

	googleReq := googleRequest{
		Contents: []googleContent{
			{
				Role: "user",
				Parts: []googlePart{
					{Text: req.UserPrompt},
				},
			},
		},
		GenerationConfig: googleGenerationConfig{
			MaxOutputTokens: firstPositive(req.MaxTokens, c.config.MaxOutputTokens, googleMaxTokens),
			Temperature:     firstNonZero(req.Temperature, c.config.Temperature, googleTemperature),
		},
	}
	if req.ResponseFormat == ResponseFormatJSON {
		googleReq.GenerationConfig.ResponseMimeType = "application/json"
	}

	if req.SystemPrompt != "" {
		googleReq.SystemInstruction = &googleContent{
			Parts: []googlePart{
				{Text: req.SystemPrompt},
			},
		}
	}

	body, err := json.Marshal(googleReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(string(model)), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

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

	var googleResp googleResponse
	if unmarshalErr := json.Unmarshal(respBody, &googleResp); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, unmarshalErr)
	}

	if len(googleResp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: missing candidates array", ErrInvalidResponse)
	}
	candidate := googleResp.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: missing content parts", ErrInvalidResponse)
	}

	resp := &CompletionResponse{
		Content:    candidate.Content.Parts[0].Text,
		StopReason: candidate.FinishReason,
		LatencyMS:  time.Since(start).Milliseconds(),
		Usage: Usage{
			InputTokens:  googleResp.UsageMetadata.PromptTokenCount,
			OutputTokens: googleResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  googleResp.UsageMetadata.TotalTokenCount,
		},
	}
	logCompletion(ctx, ProviderGoogle, string(model), resp)
	return resp, nil
}

// handleErrorResponse handles Google AI API errors.
func (c *GoogleClient) handleErrorResponse(statusCode int, body []byte) error {
	var errResp googleError
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return classifyStatus(statusCode, string(body), false)
	}

	errMsg := errResp.Error.Message
	tooLong := errResp.Error.Status == "INVALID_ARGUMENT" && containsContextLengthError(errMsg)
	return classifyStatus(statusCode, errMsg, tooLong)
}
