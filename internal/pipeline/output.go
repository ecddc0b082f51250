package pipeline

import (
	"encoding/json"
	"strings"
)

// OutputKind tags the shape of a raw reasoning response.
type OutputKind string

const (
	OutputText       OutputKind = "text"
	OutputStructured OutputKind = "structured"
)

// RawOutput is what a reasoning call returned, before normalization. Text is
// the payload as received; Fields is set when the payload was a JSON object.
type RawOutput struct {
	Kind   OutputKind
	Text   string
	Fields map[string]any
}

// TextOutput wraps a plain-text payload.
func TextOutput(text string) RawOutput {
	return RawOutput{Kind: OutputText, Text: text}
}

// StructuredOutput wraps a decoded JSON object. raw is the payload as
// received and may be empty.
func StructuredOutput(fields map[string]any, raw string) RawOutput {
	return RawOutput{Kind: OutputStructured, Text: raw, Fields: fields}
}

// ParseRawOutput classifies a payload: a JSON object becomes structured
// output, anything else is text.
func ParseRawOutput(payload string) RawOutput {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil && fields != nil {
			return StructuredOutput(fields, payload)
		}
	}
	return TextOutput(payload)
}

// payload returns the text the size checks apply to.
func (o RawOutput) payload() string {
	if o.Text != "" || o.Kind != OutputStructured {
		return o.Text
	}
	if len(o.Fields) == 0 {
		return ""
	}
	data, err := json.Marshal(o.Fields)
	if err != nil {
		return ""
	}
	return string(data)
}

// Decision is the normalized output of the terminal stage.
type Decision struct {
	Summary   string `json:"decisionSummary"`
	Rationale string `json:"decisionRationale"`
}

// StageOutput is the normalized result of one stage: Text for the first
// three stages, Decision for the historian.
type StageOutput struct {
	Stage    Stage
	Text     string
	Decision *Decision
}

// Message renders the output as the text stored and shown for the stage.
func (o StageOutput) Message() string {
	if o.Decision == nil {
		return o.Text
	}
	data, err := json.MarshalIndent(o.Decision, "", "  ")
	if err != nil {
		return o.Decision.Summary + "\n\n" + o.Decision.Rationale
	}
	return string(data)
}
