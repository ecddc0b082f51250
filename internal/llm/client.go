package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/util"
)

// Common errors.
var (
	ErrNoAPIKey        = errors.New("no API key configured")
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrRateLimited     = errors.New("rate limited")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrContextTooLong  = errors.New("context too long")
	ErrAuthentication  = errors.New("authentication failed")
	ErrServerError     = errors.New("provider server error")
	ErrBadRequest      = errors.New("bad request")
	ErrAPIError        = errors.New("provider API error")
	ErrInvalidResponse = errors.New("invalid response from LLM")
)

// ProviderClient is the interface for a single LLM provider.
type ProviderClient interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Provider returns the provider identifier.
	Provider() Provider

	// IsAvailable returns true if the provider is configured.
	IsAvailable() bool
}

// CompletionRequest is a request to the LLM.
type CompletionRequest struct {
	Model          Model
	SystemPrompt   string
	UserPrompt     string
	MaxTokens      int
	Temperature    float64
	ResponseFormat ResponseFormat
}

// CompletionResponse is a response from the LLM.
type CompletionResponse struct {
	Content    string
	Usage      Usage
	StopReason string
	RequestID  string
	LatencyMS  int64
}

// NewProviderClient builds the client for the configured provider.
func NewProviderClient(cfg ClientConfig) (ProviderClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ResolveProvider(cfg.BaseURL, cfg.Model)
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg), nil
	case ProviderGoogle:
		return NewGoogleClient(cfg.APIKey, cfg), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// IsTransient reports whether err is worth retrying: rate limiting,
// upstream 5xx and network timeouts. Authentication, quota and request
// shape errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

func newHTTPClient(cfg ClientConfig) *http.Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	return &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
	}
}

// classifyStatus maps a non-200 provider status to a sentinel error.
func classifyStatus(statusCode int, errMsg string, contextTooLong bool) error {
	switch statusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, errMsg)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, errMsg)
	case http.StatusBadRequest:
		if contextTooLong {
			return fmt.Errorf("%w: %s", ErrContextTooLong, errMsg)
		}
		return fmt.Errorf("%w: %s", ErrBadRequest, errMsg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthentication, errMsg)
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w (status %d): %s", ErrServerError, statusCode, errMsg)
	default:
		return fmt.Errorf("%w (status %d): %s", ErrAPIError, statusCode, errMsg)
	}
}

// containsContextLengthError checks if an error message indicates context length issues.
func containsContextLengthError(msg string) bool {
	keywords := []string{
		"context_length",
		"too many tokens",
		"maximum context length",
		"token limit",
	}
	lower := strings.ToLower(msg)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func logCompletion(ctx context.Context, provider Provider, model string, resp *CompletionResponse) {
	util.Log(ctx).Debug("completion received",
		"provider", provider,
		"model", model,
		"latency_ms", resp.LatencyMS,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)
}
