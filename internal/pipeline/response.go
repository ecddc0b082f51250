package pipeline

import (
	"time"

	"github.com/antinvestor/decider/internal/contract"
)

// TimestampLayout is the wire format for response timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// AgentMessage is one stage's contribution in the response.
type AgentMessage struct {
	AgentRole string `json:"agentRole"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// DecisionView is the persisted decision as returned to callers.
type DecisionView struct {
	ID        string `json:"_id"`
	Summary   string `json:"summary"`
	Rationale string `json:"rationale"`
	CreatedAt string `json:"createdAt"`
}

// Findings carries contract analysis output when the goal asked for it.
type Findings struct {
	Statistics contract.Statistics `json:"statistics"`
	Raw        []contract.Finding  `json:"raw"`
}

// Response is the outward shape of a successful run.
type Response struct {
	ToolReport    string         `json:"toolReport"`
	AgentMessages []AgentMessage `json:"agentMessages"`
	Decisions     []DecisionView `json:"decisions"`
	Findings      *Findings      `json:"findings,omitempty"`
}

// Assembly is everything the response is built from.
type Assembly struct {
	ToolReport string
	Result     *Result
	DecisionID string
	CreatedAt  time.Time
	// Contract is the analyzer result for this run, nil when not applicable.
	Contract *contract.Result
}

// Assemble maps a finished run to the response. Agent messages always come
// out in stage order whatever order the outputs were recorded in.
func Assemble(a Assembly) Response {
	createdAt := FormatTimestamp(a.CreatedAt)

	resp := Response{
		ToolReport:    a.ToolReport,
		AgentMessages: make([]AgentMessage, 0, len(Stages())),
		Decisions:     []DecisionView{},
	}

	if a.Result != nil {
		for _, stage := range Stages() {
			out, ok := a.Result.Output(stage)
			if !ok {
				continue
			}
			resp.AgentMessages = append(resp.AgentMessages, AgentMessage{
				AgentRole: string(stage),
				Message:   out.Message(),
				CreatedAt: createdAt,
			})
		}

		resp.Decisions = append(resp.Decisions, DecisionView{
			ID:        a.DecisionID,
			Summary:   a.Result.Decision.Summary,
			Rationale: a.Result.Decision.Rationale,
			CreatedAt: createdAt,
		})
	}

	if a.Contract != nil {
		raw := a.Contract.Findings
		if raw == nil {
			raw = []contract.Finding{}
		}
		resp.Findings = &Findings{
			Statistics: a.Contract.Metadata.Statistics,
			Raw:        raw,
		}
	}

	return resp
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
