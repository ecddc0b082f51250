package pipeline_test

import (
	"context"
	"sync"

	"github.com/antinvestor/decider/internal/pipeline"
)

// mockReasoner records every call and answers from respond.
type mockReasoner struct {
	mu      sync.Mutex
	calls   []pipeline.ReasonRequest
	respond func(call int, req pipeline.ReasonRequest) (pipeline.RawOutput, error)
}

func (m *mockReasoner) Reason(_ context.Context, req pipeline.ReasonRequest) (pipeline.RawOutput, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	call := len(m.calls)
	m.mu.Unlock()

	return m.respond(call, req)
}

func (m *mockReasoner) stages() []pipeline.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make([]pipeline.Stage, len(m.calls))
	for i, c := range m.calls {
		stages[i] = c.Stage
	}
	return stages
}

func (m *mockReasoner) call(stage pipeline.Stage) (pipeline.ReasonRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.calls {
		if c.Stage == stage {
			return c, true
		}
	}
	return pipeline.ReasonRequest{}, false
}

// happyReasoner answers every stage with a short text, and the historian
// with a labeled decision.
func happyReasoner() *mockReasoner {
	return &mockReasoner{
		respond: func(_ int, req pipeline.ReasonRequest) (pipeline.RawOutput, error) {
			if req.Stage == pipeline.StageHistorian {
				return pipeline.TextOutput("Summary: Ship it\n\nRationale: Risks are covered"), nil
			}
			return pipeline.TextOutput(string(req.Stage) + " output"), nil
		},
	}
}
