package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxResponseLength is the largest accepted reasoning payload, in characters.
	MaxResponseLength = 10000

	// fallbackSummaryLength bounds the summary taken from unlabeled historian text.
	fallbackSummaryLength = 500
)

// labeledDecisionPattern captures "Summary: ... Rationale: ..." sections.
// Markdown emphasis and heading marks around the labels are not captured.
var labeledDecisionPattern = regexp.MustCompile(
	`(?is)\bsummary[*_]*\s*:[*_]*\s*(.*?)\s*[*_#]*\s*\brationale[*_]*\s*:[*_]*\s*(.*)$`)

// ReasonRequest is one reasoning call.
type ReasonRequest struct {
	Stage        Stage
	SystemPrompt string
	UserPrompt   string
}

// Reasoner performs the external reasoning call for a stage.
type Reasoner interface {
	Reason(ctx context.Context, req ReasonRequest) (RawOutput, error)
}

// Executor runs a single stage: one reasoning call plus normalization.
type Executor struct {
	reasoner Reasoner
}

// NewExecutor creates an executor backed by reasoner.
func NewExecutor(reasoner Reasoner) *Executor {
	return &Executor{reasoner: reasoner}
}

// Execute issues the reasoning call for stage and normalizes the response.
// Every failure is returned as an *ExternalAgentError carrying the stage.
func (e *Executor) Execute(ctx context.Context, stage Stage, prompt Prompt) (StageOutput, error) {
	raw, err := e.reasoner.Reason(ctx, ReasonRequest{
		Stage:        stage,
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
	})
	if err != nil {
		return StageOutput{}, &ExternalAgentError{Stage: stage, Err: err}
	}

	out, err := Normalize(stage, raw)
	if err != nil {
		return StageOutput{}, &ExternalAgentError{Stage: stage, Err: err}
	}
	return out, nil
}

// Normalize validates raw and converts it to the canonical stage output.
func Normalize(stage Stage, raw RawOutput) (StageOutput, error) {
	payload := raw.payload()
	if strings.TrimSpace(payload) == "" {
		return StageOutput{}, ErrEmptyResponse
	}
	if n := utf8.RuneCountInString(payload); n > MaxResponseLength {
		return StageOutput{}, fmt.Errorf("%w: %d characters, maximum %d", ErrResponseTooLarge, n, MaxResponseLength)
	}

	if !stage.Terminal() {
		text, err := displayText(raw)
		if err != nil {
			return StageOutput{}, err
		}
		return StageOutput{Stage: stage, Text: text}, nil
	}

	decision, err := extractDecision(raw)
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Stage: stage, Decision: &decision}, nil
}

// displayText renders a non-terminal payload as readable text. Structured
// payloads are re-serialized as indented JSON.
func displayText(raw RawOutput) (string, error) {
	if raw.Kind != OutputStructured || len(raw.Fields) == 0 {
		return strings.TrimSpace(raw.Text), nil
	}
	data, err := json.MarshalIndent(raw.Fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize structured output: %w", err)
	}
	return string(data), nil
}

// extractDecision tries labeled sections, then structured fields, then the
// raw-text fallback. A matched label or present field is authoritative: if
// it yields an empty value the output is invalid.
func extractDecision(raw RawOutput) (Decision, error) {
	var d Decision
	switch {
	case raw.Kind == OutputStructured && hasDecisionFields(raw.Fields):
		d = decisionFromFields(raw.Fields)
	default:
		text := strings.TrimSpace(raw.Text)
		if m := labeledDecisionPattern.FindStringSubmatch(text); m != nil {
			d = Decision{Summary: m[1], Rationale: m[2]}
		} else {
			d = Decision{Summary: truncateRunes(text, fallbackSummaryLength), Rationale: text}
		}
	}

	d.Summary = strings.TrimSpace(d.Summary)
	d.Rationale = strings.TrimSpace(d.Rationale)
	if d.Summary == "" || d.Rationale == "" {
		return Decision{}, ErrHistorianOutputInvalid
	}
	return d, nil
}

var (
	summaryKeys   = []string{"decisionSummary", "summary"}
	rationaleKeys = []string{"decisionRationale", "rationale"}
)

func hasDecisionFields(fields map[string]any) bool {
	for _, key := range append(append([]string{}, summaryKeys...), rationaleKeys...) {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func decisionFromFields(fields map[string]any) Decision {
	return Decision{
		Summary:   firstString(fields, summaryKeys),
		Rationale: firstString(fields, rationaleKeys),
	}
}

func firstString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
