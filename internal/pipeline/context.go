package pipeline

import (
	"github.com/antinvestor/decider/internal/directive"
)

// SimilarDecision is a past decision returned by similarity search.
type SimilarDecision struct {
	ID        string  `json:"id,omitempty"`
	Summary   string  `json:"summary"`
	Rationale string  `json:"rationale"`
	Score     float64 `json:"score"`
}

// PipelineContext accumulates everything one run knows. Stage outputs are
// written once, by the orchestrator, in stage order. A context belongs to a
// single run and must not be shared.
type PipelineContext struct {
	ArtifactText     string
	ReportText       string
	SimilarDecisions []SimilarDecision
	Goal             directive.Goal
	Followup         string

	AnalysisOutput string
	ReviewOutput   string
	TradeoffOutput string
}

// record stores the text output of a non-terminal stage.
func (pc *PipelineContext) record(stage Stage, text string) {
	switch stage {
	case StageAnalysis:
		pc.AnalysisOutput = text
	case StageReview:
		pc.ReviewOutput = text
	case StageTradeoff:
		pc.TradeoffOutput = text
	case StageHistorian:
	}
}
