package contract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pitabwire/util"
)

const (
	maxEndpointEvidence  = 5
	maxAmbiguousEvidence = 3
	maxExcerptLength     = 80
)

// Vocabulary shared by several rules.
var (
	endpointPattern      = regexp.MustCompile(`/[a-zA-Z0-9/\-_?={}]+`)
	lineVerbPattern      = regexp.MustCompile(`(?i)\b(get|post|put|patch|delete|head|options)\b`)
	verbPathPattern      = regexp.MustCompile(`(?i)\b(get|post|put|patch|delete)\s+/[a-zA-Z0-9/\-_]+`)
	endpointOrAPIPattern = regexp.MustCompile(`(?i)(endpoint|api|route|path|/[a-zA-Z0-9/\-_]+)`)
	apiDescribedPattern  = regexp.MustCompile(`(?i)(endpoint|api|request|response|post|put|patch)`)
	statusCodePattern    = regexp.MustCompile(`\b(200|201|202|204|400|401|403|404|409|422|500|502|503)\b`)
	schemaPattern        = regexp.MustCompile(`(?i)(schema|request|response|body|payload|dto|model|type|interface|structure)`)
	authPattern          = regexp.MustCompile(`(?i)(auth|authentication|authorization|jwt|token|bearer|api.?key|oauth|security|permission|role)`)
	cachePattern         = regexp.MustCompile(`(?i)(cache|caching|redis|memcached|ttl)`)
	invalidationPattern  = regexp.MustCompile(`(?i)(invalidation|invalidate|evict|expire|purge|clear|refresh|stale)`)
	ambiguousPattern     = regexp.MustCompile(`(?i)endpoint[^:]*[:]\s*/[^/\n]*(?:\n|$)`)
	rateLimitPattern     = regexp.MustCompile(`(?i)(rate.?limit|throttle|quota|rps|requests.?per.?second|qps)`)
	errorHandlingPattern = regexp.MustCompile(`(?i)(error|exception|failure|status.?code|4[0-9]{2}|5[0-9]{2})`)
	headerPattern        = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
)

// document is the artifact prepared once for all rules.
type document struct {
	text  string
	lines []string
}

// rule evaluates one contract check. A nil evidence slice means the rule passed.
type rule struct {
	Name     string
	Category Category
	Severity Severity
	Evaluate func(doc *document) []string
}

// Analyzer runs the contract rules in a fixed order. It holds no mutable
// state and is safe for concurrent use.
type Analyzer struct {
	rules []rule
}

// NewAnalyzer creates an analyzer with the standard rule set.
func NewAnalyzer() *Analyzer {
	return &Analyzer{rules: initRules()}
}

// initRules returns the rules in evaluation order.
func initRules() []rule {
	return []rule{
		{
			Name:     "Endpoints mentioned without HTTP methods",
			Category: CategoryMissing,
			Severity: SeverityHigh,
			Evaluate: endpointsWithoutMethods,
		},
		vocabularyRule(
			"Missing response status codes",
			CategoryMissing, SeverityMedium,
			endpointOrAPIPattern, statusCodePattern,
			"No HTTP status codes found (e.g., 200, 400, 404) in artifact",
		),
		vocabularyRule(
			"Missing request/response schemas",
			CategoryMissing, SeverityHigh,
			apiDescribedPattern, schemaPattern,
			"No schema, request/response, or type definitions found",
		),
		vocabularyRule(
			"Missing authentication/authorization definition",
			CategoryMissing, SeverityHigh,
			endpointOrAPIPattern, authPattern,
			"No authentication or authorization mechanisms defined",
		),
		vocabularyRule(
			"Caching mentioned without invalidation strategy",
			CategoryMissing, SeverityMedium,
			cachePattern, invalidationPattern,
			"Caching is mentioned but no invalidation strategy is defined",
		),
		{
			Name:     "Endpoint definitions may be incomplete or ambiguous",
			Category: CategoryAmbiguous,
			Severity: SeverityLow,
			Evaluate: ambiguousEndpoints,
		},
		vocabularyRule(
			"Rate limiting not mentioned",
			CategoryRisk, SeverityLow,
			endpointOrAPIPattern, rateLimitPattern,
			"No rate limiting or throttling strategy defined",
		),
		vocabularyRule(
			"Error handling not defined",
			CategoryRisk, SeverityMedium,
			endpointOrAPIPattern, errorHandlingPattern,
			"No error response formats or status codes defined",
		),
	}
}

// vocabularyRule fires when trigger matches the artifact and required does not.
func vocabularyRule(
	name string,
	category Category,
	severity Severity,
	trigger, required *regexp.Regexp,
	evidence string,
) rule {
	return rule{
		Name:     name,
		Category: category,
		Severity: severity,
		Evaluate: func(doc *document) []string {
			if trigger.MatchString(doc.text) && !required.MatchString(doc.text) {
				return []string{evidence}
			}
			return nil
		},
	}
}

// Analyze runs every rule against text. Empty input yields an empty result
// rather than an error.
func (a *Analyzer) Analyze(ctx context.Context, text string) *Result {
	log := util.Log(ctx)

	if text == "" {
		return &Result{
			Findings: []Finding{},
			Metadata: Metadata{AnalysisGoal: AnalysisGoal},
		}
	}

	doc := &document{
		text:  text,
		lines: strings.Split(text, "\n"),
	}

	log.Debug("starting contract analysis", "lines", len(doc.lines))

	findings := make([]Finding, 0, len(a.rules))
	for _, r := range a.rules {
		evidence := r.Evaluate(doc)
		if len(evidence) == 0 {
			continue
		}
		findings = append(findings, Finding{
			ID:          fmt.Sprintf("contract-%d", len(findings)+1),
			Category:    r.Category,
			Rule:        r.Name,
			Evidence:    evidence,
			Severity:    r.Severity,
			AutoFixable: false,
		})
	}

	result := &Result{
		Findings: findings,
		Metadata: Metadata{
			LinesAnalyzed: len(doc.lines),
			AnalysisGoal:  AnalysisGoal,
			Statistics:    ComputeStatistics(findings),
		},
		Sections: extractSections(doc.lines),
	}

	log.Debug("contract analysis complete",
		"findings", result.Metadata.Statistics.Total,
		"high", result.Metadata.Statistics.BySeverity.High,
	)

	return result
}

// endpointsWithoutMethods reports path tokens on lines that carry no HTTP
// verb, unless the document spells out at least one "VERB /path" pair.
func endpointsWithoutMethods(doc *document) []string {
	var evidence []string
	for idx, line := range doc.lines {
		matches := endpointPattern.FindAllString(line, -1)
		if len(matches) == 0 || lineVerbPattern.MatchString(line) {
			continue
		}
		for _, match := range matches {
			if len(match) > 1 {
				evidence = append(evidence, fmt.Sprintf("Line %d: %s", idx+1, strings.TrimSpace(line)))
			}
		}
	}

	if len(evidence) == 0 || verbPathPattern.MatchString(doc.text) {
		return nil
	}
	if len(evidence) > maxEndpointEvidence {
		evidence = evidence[:maxEndpointEvidence]
	}
	return evidence
}

// ambiguousEndpoints reports "endpoint...: /path" fragments with their line numbers.
func ambiguousEndpoints(doc *document) []string {
	locs := ambiguousPattern.FindAllStringIndex(doc.text, maxAmbiguousEvidence)
	if len(locs) == 0 {
		return nil
	}

	evidence := make([]string, 0, len(locs))
	for _, loc := range locs {
		lineNum := strings.Count(doc.text[:loc[0]], "\n") + 1
		excerpt := truncateRunes(strings.TrimSpace(doc.text[loc[0]:loc[1]]), maxExcerptLength)
		evidence = append(evidence, fmt.Sprintf("Line %d: %s", lineNum, excerpt))
	}
	return evidence
}

// extractSections splits lines at markdown headers. Content before the
// first header is not a section.
func extractSections(lines []string) []Section {
	var sections []Section
	var current *Section

	for idx, line := range lines {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &Section{
				Title:     strings.TrimSpace(m[2]),
				Content:   line + "\n",
				LineStart: idx,
			}
			continue
		}
		if current != nil {
			current.Content += line + "\n"
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
