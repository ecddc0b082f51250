//nolint:testpackage // Testing internal functions requires same package
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderClient_NoAPIKey(t *testing.T) {
	_, err := NewProviderClient(ClientConfig{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewProviderClient_ResolvesProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ClientConfig
		expected Provider
	}{
		{
			name:     "explicit anthropic",
			cfg:      ClientConfig{APIKey: "k", Provider: ProviderAnthropic},
			expected: ProviderAnthropic,
		},
		{
			name:     "gemini model",
			cfg:      ClientConfig{APIKey: "k", Model: "Gemini-1.5-pro"},
			expected: ProviderGoogle,
		},
		{
			name: "generative language base url",
			cfg: ClientConfig{
				APIKey:  "k",
				BaseURL: "https://generativelanguage.googleapis.com/v1beta",
				Model:   "some-model",
			},
			expected: ProviderGoogle,
		},
		{
			name:     "openai compatible gateway",
			cfg:      ClientConfig{APIKey: "k", BaseURL: "https://gateway.local/v1", Model: "gpt-4o"},
			expected: ProviderOpenAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewProviderClient(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, client.Provider())
			assert.True(t, client.IsAvailable())
		})
	}
}

func TestNewProviderClient_UnknownProvider(t *testing.T) {
	_, err := NewProviderClient(ClientConfig{APIKey: "k", Provider: "mistral"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOpenAIClient_Complete_Success(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		resp := openaiResponse{
			ID: "chatcmpl-1",
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: `{"insights":["a"]}`}, FinishReason: "stop"},
			},
			Usage: openaiUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", ClientConfig{BaseURL: server.URL + "/v1/", Model: "gpt-4o-mini"})
	resp, err := client.Complete(context.Background(), &CompletionRequest{
		SystemPrompt:   "system",
		UserPrompt:     "user",
		ResponseFormat: ResponseFormatJSON,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"insights":["a"]}`, resp.Content)
	assert.Equal(t, "chatcmpl-1", resp.RequestID)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, openAIMaxTokens, captured.MaxTokens)
	assert.InDelta(t, openAITemperature, captured.Temperature, 0.0001)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Content)
}

func TestOpenAIClient_Complete_MissingChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", ClientConfig{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), &CompletionRequest{UserPrompt: "hi"})
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestOpenAIClient_Complete_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
		{"quota", http.StatusPaymentRequired, `{"error":{"message":"pay"}}`, ErrQuotaExceeded},
		{"context", http.StatusBadRequest, `{"error":{"message":"long","code":"context_length_exceeded"}}`, ErrContextTooLong},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"nope"}}`, ErrBadRequest},
		{"auth", http.StatusUnauthorized, `{"error":{"message":"key"}}`, ErrAuthentication},
		{"server", http.StatusBadGateway, `upstream down`, ErrServerError},
		{"other", http.StatusTeapot, `{"error":{"message":"teapot"}}`, ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient("test-key", ClientConfig{BaseURL: server.URL})
			_, err := client.Complete(context.Background(), &CompletionRequest{UserPrompt: "hi"})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGoogleClient_Complete_Success(t *testing.T) {
	var captured googleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		fmt.Fprint(w, `{
			"candidates": [{"content": {"parts": [{"text": "  Summary: ship it  "}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 4, "totalTokenCount": 7}
		}`)
	}))
	defer server.Close()

	client := NewGoogleClient("test-key", ClientConfig{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), &CompletionRequest{
		SystemPrompt: "be brief",
		UserPrompt:   "decide",
	})
	require.NoError(t, err)

	assert.Equal(t, "  Summary: ship it  ", resp.Content)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, googleMaxTokens, captured.GenerationConfig.MaxOutputTokens)
	assert.InDelta(t, googleTemperature, captured.GenerationConfig.Temperature, 0.0001)
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "be brief", captured.SystemInstruction.Parts[0].Text)
}

func TestGoogleClient_Complete_MissingCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer server.Close()

	client := NewGoogleClient("test-key", ClientConfig{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), &CompletionRequest{UserPrompt: "x"})
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Contains(t, err.Error(), "candidates")
}

func TestAnthropicClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "" {
			t.Error("expected X-Api-Key header")
		}
		if r.Header.Get("Anthropic-Version") == "" {
			t.Error("expected Anthropic-Version header")
		}
		resp := anthropicResponse{
			ID:         "msg_test123",
			Type:       "message",
			Content:    []anthropicContent{{Type: "text", Text: "review text"}},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 100, OutputTokens: 50},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", ClientConfig{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), &CompletionRequest{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "review text", resp.Content)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
}

func TestAnthropicClient_Complete_ContextTooLong(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"prompt exceeds maximum context length"}}`)
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", ClientConfig{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), &CompletionRequest{UserPrompt: "x"})
	require.ErrorIs(t, err, ErrContextTooLong)
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", fmt.Errorf("wrap: %w", ErrRateLimited), true},
		{"server error", fmt.Errorf("%w: boom", ErrServerError), true},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", fmt.Errorf("send request: %w", timeoutError{}), true},
		{"auth", ErrAuthentication, false},
		{"quota", ErrQuotaExceeded, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestContainsContextLengthError(t *testing.T) {
	assert.True(t, containsContextLengthError("Too many tokens in request"))
	assert.True(t, containsContextLengthError("exceeds token limit"))
	assert.False(t, containsContextLengthError(strings.Repeat("fine ", 3)))
}
