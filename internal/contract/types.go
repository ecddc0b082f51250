// Package contract implements the deterministic API contract analyzer that
// runs before any reasoning call when the goal is API_CONTRACT.
package contract

// Category classifies a finding.
type Category string

// Category constants.
const (
	CategoryMissing   Category = "missing"
	CategoryAmbiguous Category = "ambiguous"
	CategoryRisk      Category = "risk"
)

// Severity ranks a finding.
type Severity string

// Severity constants.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnalysisGoal is the only goal this analyzer serves.
const AnalysisGoal = "API_CONTRACT"

// Finding is one defect, ambiguity or risk detected in an artifact.
type Finding struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Rule        string   `json:"rule"`
	Evidence    []string `json:"evidence"`
	Severity    Severity `json:"severity"`
	AutoFixable bool     `json:"autoFixable"`
}

// SeverityCounts counts findings per severity.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// CategoryCounts counts findings per category.
type CategoryCounts struct {
	Missing   int `json:"missing"`
	Ambiguous int `json:"ambiguous"`
	Risk      int `json:"risk"`
}

// Statistics aggregates a finding list.
type Statistics struct {
	Total       int            `json:"total"`
	BySeverity  SeverityCounts `json:"bySeverity"`
	ByCategory  CategoryCounts `json:"byCategory"`
	AutoFixable int            `json:"autoFixable"`
}

// ComputeStatistics derives Statistics from findings by straight aggregation.
func ComputeStatistics(findings []Finding) Statistics {
	stats := Statistics{Total: len(findings)}
	for _, f := range findings {
		switch f.Severity {
		case SeverityHigh:
			stats.BySeverity.High++
		case SeverityMedium:
			stats.BySeverity.Medium++
		case SeverityLow:
			stats.BySeverity.Low++
		}
		switch f.Category {
		case CategoryMissing:
			stats.ByCategory.Missing++
		case CategoryAmbiguous:
			stats.ByCategory.Ambiguous++
		case CategoryRisk:
			stats.ByCategory.Risk++
		}
		if f.AutoFixable {
			stats.AutoFixable++
		}
	}
	return stats
}

// Metadata describes one analyzer run.
type Metadata struct {
	LinesAnalyzed int        `json:"linesAnalyzed"`
	AnalysisGoal  string     `json:"analysisGoal"`
	Statistics    Statistics `json:"statistics"`
}

// Section is a markdown section of the analyzed artifact.
type Section struct {
	Title     string
	Content   string
	LineStart int
}

// Result is the output of one analyzer run.
type Result struct {
	Findings []Finding `json:"findings"`
	Metadata Metadata  `json:"metadata"`

	// Sections are extracted for rules that need document structure.
	Sections []Section `json:"-"`
}
