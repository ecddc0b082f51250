// Package directive extracts the analysis goal and follow-up markers that
// callers embed in artifact text.
package directive

import (
	"errors"
	"regexp"
	"strings"
)

// Goal selects the analysis lens for a run.
type Goal string

// Goal constants. The zero value means generic analysis.
const (
	GoalNone          Goal = ""
	GoalRisks         Goal = "RISKS"
	GoalImplementable Goal = "IMPLEMENTABLE"
	GoalAPIContract   Goal = "API_CONTRACT"
	GoalTestPlan      Goal = "TEST_PLAN"
	GoalDecision      Goal = "DECISION"
)

// Goals lists every known goal in display order.
func Goals() []Goal {
	return []Goal{GoalRisks, GoalImplementable, GoalAPIContract, GoalTestPlan, GoalDecision}
}

// Valid reports whether g is one of the known goals.
func (g Goal) Valid() bool {
	switch g {
	case GoalRisks, GoalImplementable, GoalAPIContract, GoalTestPlan, GoalDecision:
		return true
	case GoalNone:
		return false
	}
	return false
}

// Follow-up codes offered for each goal.
const (
	FollowupMitigations = "MITIGATIONS"
	FollowupPrioritize  = "PRIORITIZE"
	FollowupActionItems = "ACTION_ITEMS"
	FollowupDetails     = "DETAILS"
	FollowupChecklist   = "CHECKLIST"
	FollowupAuth        = "AUTH"
	FollowupErrorCodes  = "ERROR_CODES"
	FollowupExamples    = "EXAMPLES"
	FollowupEdgeCases   = "EDGE_CASES"
	FollowupLoadTests   = "LOAD_TESTS"
	FollowupCompare     = "COMPARE"
	FollowupRationale   = "RATIONALE"
)

// Followups returns the follow-up codes that narrow the given goal.
func Followups(g Goal) []string {
	switch g {
	case GoalRisks:
		return []string{FollowupMitigations, FollowupPrioritize, FollowupActionItems}
	case GoalImplementable:
		return []string{FollowupDetails, FollowupChecklist}
	case GoalAPIContract:
		return []string{FollowupAuth, FollowupErrorCodes, FollowupExamples}
	case GoalTestPlan:
		return []string{FollowupEdgeCases, FollowupLoadTests}
	case GoalDecision:
		return []string{FollowupCompare, FollowupRationale}
	case GoalNone:
		return nil
	}
	return nil
}

// ErrEmptyArtifact is returned when nothing but markers and whitespace remain.
var ErrEmptyArtifact = errors.New("artifact is empty after removing directives")

// Directive is the parsed form of one submitted artifact.
type Directive struct {
	Goal        Goal
	Followup    string
	CleanedText string
}

// markerPattern matches [GOAL=X] and [FOLLOWUP=X]. The VISIBL_ prefix is the
// form the first web client sent and is still accepted.
var markerPattern = regexp.MustCompile(`\[(?:VISIBL_)?(GOAL|FOLLOWUP)=([A-Za-z0-9_\-]*)\]\r?\n?`)

// Parse extracts at most one goal and one follow-up marker from raw and
// removes every marker occurrence, each with one trailing newline. The first
// marker of each kind wins. Unknown goal values are dropped but their markers
// are still stripped.
func Parse(raw string) (Directive, error) {
	var d Directive
	goalSeen, followupSeen := false, false

	for _, m := range markerPattern.FindAllStringSubmatch(raw, -1) {
		value := strings.ToUpper(strings.TrimSpace(m[2]))
		switch m[1] {
		case "GOAL":
			if goalSeen {
				continue
			}
			goalSeen = true
			if g := Goal(value); g.Valid() {
				d.Goal = g
			}
		case "FOLLOWUP":
			if followupSeen {
				continue
			}
			followupSeen = true
			d.Followup = value
		}
	}

	// Removal can splice a new marker together, so strip to a fixed point.
	cleaned := raw
	for markerPattern.MatchString(cleaned) {
		cleaned = markerPattern.ReplaceAllString(cleaned, "")
	}

	if strings.TrimSpace(cleaned) == "" {
		return Directive{}, ErrEmptyArtifact
	}

	d.CleanedText = cleaned
	return d, nil
}

// Compose prefixes text with markers for goal and followup, one per line.
// It is the inverse of Parse for well-formed input.
func Compose(goal Goal, followup, text string) string {
	var b strings.Builder
	if goal != GoalNone {
		b.WriteString("[GOAL=" + string(goal) + "]\n")
	}
	if followup != "" {
		b.WriteString("[FOLLOWUP=" + followup + "]\n")
	}
	b.WriteString(text)
	return b.String()
}
