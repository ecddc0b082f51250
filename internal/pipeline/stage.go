// Package pipeline runs the four reasoning stages that turn an artifact and
// its tool report into a decision.
//
// Stages execute strictly in order: analysis, review, tradeoff, historian.
// Each stage sees the outputs of every stage before it. A failure at any
// stage fails the whole run and nothing partial is returned.
package pipeline

// Stage identifies one reasoning role.
type Stage string

const (
	StageAnalysis  Stage = "analysis"
	StageReview    Stage = "review"
	StageTradeoff  Stage = "tradeoff"
	StageHistorian Stage = "historian"
)

// Stages returns the stages in execution order.
func Stages() []Stage {
	return []Stage{StageAnalysis, StageReview, StageTradeoff, StageHistorian}
}

// Terminal reports whether s produces the decision.
func (s Stage) Terminal() bool {
	return s == StageHistorian
}

// Valid reports whether s is one of the four known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageAnalysis, StageReview, StageTradeoff, StageHistorian:
		return true
	default:
		return false
	}
}

// Roles returns the stage names as strings, in execution order. This is the
// list recorded on every persisted decision.
func Roles() []string {
	stages := Stages()
	roles := make([]string, len(stages))
	for i, s := range stages {
		roles[i] = string(s)
	}
	return roles
}
