package pipeline

import (
	"context"

	"github.com/antinvestor/decider/internal/llm"
)

// LLMReasoner answers reasoning calls with an llm provider. Responses that
// parse as a JSON object come back structured, everything else as text.
type LLMReasoner struct {
	client llm.ProviderClient
	model  llm.Model
}

// NewLLMReasoner creates a reasoner over client. An empty model lets the
// provider use its configured default.
func NewLLMReasoner(client llm.ProviderClient, model llm.Model) *LLMReasoner {
	return &LLMReasoner{client: client, model: model}
}

// Reason implements Reasoner.
func (r *LLMReasoner) Reason(ctx context.Context, req ReasonRequest) (RawOutput, error) {
	resp, err := r.client.Complete(ctx, &llm.CompletionRequest{
		Model:          r.model,
		SystemPrompt:   req.SystemPrompt,
		UserPrompt:     req.UserPrompt,
		ResponseFormat: llm.ResponseFormatJSON,
	})
	if err != nil {
		return RawOutput{}, err
	}
	return ParseRawOutput(resp.Content), nil
}
