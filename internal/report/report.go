// Package report builds the deterministic tool report that precedes the
// reasoning stages. It is keyword heuristics, not analysis: the same input
// always yields the same text.
package report

import (
	"fmt"
	"strings"

	"github.com/antinvestor/decider/internal/contract"
	"github.com/antinvestor/decider/internal/directive"
)

const largeArtifactLines = 500

var titles = map[directive.Goal]string{
	directive.GoalRisks:         "Risk Scan Report",
	directive.GoalImplementable: "Implementation Readiness Check",
	directive.GoalAPIContract:   "API Contract Analysis",
	directive.GoalTestPlan:      "Test Coverage Assessment",
	directive.GoalDecision:      "Decision Context Analysis",
}

// Title returns the report heading for goal.
func Title(goal directive.Goal) string {
	if title, ok := titles[goal]; ok {
		return title
	}
	return "Tool Report"
}

// signals are the keyword observations every goal draws from.
type signals struct {
	lines        int
	hasFunctions bool
	hasClasses   bool
	hasTests     bool
	hasErrors    bool
	hasAPI       bool
	hasAuth      bool
}

func observe(content string) signals {
	lower := strings.ToLower(content)
	return signals{
		lines:        strings.Count(content, "\n") + 1,
		hasFunctions: strings.Contains(content, "function") || strings.Contains(content, "=>"),
		hasClasses:   strings.Contains(content, "class "),
		hasTests:     strings.Contains(lower, "test"),
		hasErrors:    strings.Contains(content, "error") || strings.Contains(content, "Error"),
		hasAPI:       strings.Contains(lower, "api") || strings.Contains(lower, "endpoint"),
		hasAuth:      strings.Contains(lower, "auth"),
	}
}

// Generate renders the tool report for content under goal. When goal is
// API_CONTRACT and findings is non-nil the analyzer output is appended.
func Generate(content string, goal directive.Goal, findings *contract.Result) string {
	s := observe(content)
	issues, suggestions := assess(content, goal, s)

	title := Title(goal)
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	if len(issues) > 0 {
		b.WriteString("Issues Found:\n")
		for i, issue := range issues {
			fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
		}
		b.WriteString("\n")
	}

	if len(suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for i, suggestion := range suggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, suggestion)
		}
		b.WriteString("\n")
	}

	if len(issues) == 0 && len(suggestions) == 0 {
		b.WriteString("No issues detected. Structure looks good.\n")
	}

	if goal == directive.GoalAPIContract && findings != nil {
		b.WriteString("\n")
		b.WriteString(findings.Render())
	}

	fmt.Fprintf(&b, "\nAnalysis complete. Lines analyzed: %d", s.lines)
	if goal.Valid() {
		fmt.Fprintf(&b, " | Goal: %s", goal)
	}

	return b.String()
}

//nolint:gocognit,funlen // one branch per goal keeps the rules readable
func assess(content string, goal directive.Goal, s signals) ([]string, []string) {
	var issues, suggestions []string

	if !goal.Valid() {
		goal = directive.GoalNone
	}

	switch goal {
	case directive.GoalRisks:
		if s.hasErrors {
			issues = append(issues, "Error handling gaps detected - potential runtime failures")
		}
		if !s.hasTests {
			issues = append(issues, "Missing test coverage - unknown failure modes")
		}
		if s.hasAPI && !s.hasAuth {
			issues = append(issues, "API endpoints lack authentication - security risk")
		}
		if s.lines > largeArtifactLines {
			issues = append(issues, "High complexity increases maintenance risk")
		}
		suggestions = append(suggestions,
			"Perform security audit on external interfaces",
			"Add monitoring and alerting for critical paths",
		)

	case directive.GoalImplementable:
		if !s.hasFunctions && !s.hasClasses {
			issues = append(issues, "Design lacks implementation details - no clear structure")
		}
		if !strings.Contains(content, "interface") && !strings.Contains(content, "type") {
			issues = append(issues, "Missing type definitions - implementation unclear")
		}
		suggestions = append(suggestions,
			"Break down into smaller, testable modules",
			"Define clear input/output contracts",
		)
		if s.hasClasses && !strings.Contains(content, "constructor") {
			suggestions = append(suggestions, "Specify initialization requirements")
		}

	case directive.GoalAPIContract:
		if s.hasAPI {
			if !strings.Contains(content, "method") && !strings.Contains(content, "GET") &&
				!strings.Contains(content, "POST") {
				issues = append(issues, "HTTP methods not specified for endpoints")
			}
			if !strings.Contains(content, "status") && !strings.Contains(content, "code") {
				issues = append(issues, "Response status codes not defined")
			}
			suggestions = append(suggestions,
				"Define request/response schemas",
				"Specify authentication requirements per endpoint",
				"Document error response formats",
			)
		} else {
			issues = append(issues, "No API endpoints identified in design")
		}

	case directive.GoalTestPlan:
		if !s.hasTests {
			issues = append(issues, "No existing test structure found")
		}
		suggestions = append(suggestions,
			"Define unit test coverage targets",
			"Plan integration test scenarios",
			"Design load/performance test cases",
		)
		if s.hasAPI {
			suggestions = append(suggestions, "Include API contract testing")
		}

	case directive.GoalDecision:
		if !strings.Contains(content, "option") && !strings.Contains(content, "approach") {
			issues = append(issues, "No decision alternatives clearly defined")
		}
		suggestions = append(suggestions,
			"Identify all viable options",
			"Document trade-offs for each option",
			"Establish decision criteria",
		)

	case directive.GoalNone:
		if s.lines > largeArtifactLines {
			issues = append(issues, "Large file detected - consider splitting into smaller modules")
		}
		if !s.hasFunctions && !s.hasClasses {
			issues = append(issues, "No clear structure - missing function or class definitions")
		}
		if s.hasErrors {
			issues = append(issues, "Error handling could be improved")
		}
		if !s.hasTests {
			suggestions = append(suggestions, "Add unit tests for core functionality")
		}
		if s.hasClasses && !strings.Contains(content, "constructor") {
			suggestions = append(suggestions, "Classes should initialize properties in constructor")
		}
		if strings.Contains(content, "any") {
			suggestions = append(suggestions, "Avoid 'any' type - use specific TypeScript types")
		}
		if strings.Contains(content, "console.log") {
			suggestions = append(suggestions, "Replace console.log with proper logging")
		}
	}

	return issues, suggestions
}
