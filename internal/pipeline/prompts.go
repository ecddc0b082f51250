package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/antinvestor/decider/internal/directive"
)

// Prompt is the pair of instructions sent for one stage.
type Prompt struct {
	System string
	User   string
}

// Composer builds stage prompts from a PipelineContext. It holds only parsed
// templates and is safe for concurrent use.
type Composer struct {
	system       *template.Template
	historian    *template.Template
	users        map[Stage]*template.Template
	similarLimit int
}

// NewComposer parses the stage templates. similarLimit caps how many similar
// decisions the historian sees; zero or less means no cap.
func NewComposer(similarLimit int) (*Composer, error) {
	c := &Composer{
		users:        make(map[Stage]*template.Template),
		similarLimit: similarLimit,
	}

	var err error
	c.system, err = template.New("system").Parse(systemTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template system: %w", err)
	}

	c.historian, err = template.New("historian-system").Funcs(templateFuncs).Parse(historianSystemTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template historian-system: %w", err)
	}

	userTemplates := map[Stage]string{
		StageAnalysis:  analysisUserTemplate,
		StageReview:    reviewUserTemplate,
		StageTradeoff:  tradeoffUserTemplate,
		StageHistorian: historianUserTemplate,
	}
	for stage, tmpl := range userTemplates {
		t, parseErr := template.New(string(stage)).Parse(tmpl)
		if parseErr != nil {
			return nil, fmt.Errorf("parse template %s: %w", stage, parseErr)
		}
		c.users[stage] = t
	}

	return c, nil
}

// Compose builds the prompts for stage from the current context.
func (c *Composer) Compose(stage Stage, pc *PipelineContext) (Prompt, error) {
	userTmpl, ok := c.users[stage]
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	base, err := c.baseSystemPrompt(stage, pc)
	if err != nil {
		return Prompt{}, err
	}

	system, err := execute(c.system, systemData{
		Base:            base,
		GoalContext:     GoalContext(pc.Goal),
		FollowupContext: FollowupContext(pc.Followup),
	})
	if err != nil {
		return Prompt{}, err
	}

	user, err := execute(userTmpl, pc)
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{System: system, User: user}, nil
}

func (c *Composer) baseSystemPrompt(stage Stage, pc *PipelineContext) (string, error) {
	switch stage {
	case StageAnalysis:
		return analysisSystemPrompt, nil
	case StageReview:
		return reviewSystemPrompt, nil
	case StageTradeoff:
		return tradeoffSystemPrompt, nil
	case StageHistorian:
		similar := pc.SimilarDecisions
		if c.similarLimit > 0 && len(similar) > c.similarLimit {
			similar = similar[:c.similarLimit]
		}
		return execute(c.historian, historianData{Similar: similar})
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

type systemData struct {
	Base            string
	GoalContext     string
	FollowupContext string
}

type historianData struct {
	Similar []SimilarDecision
}

//nolint:gochecknoglobals // Template functions are inherently global
var templateFuncs = template.FuncMap{
	"similar": renderSimilar,
}

func renderSimilar(decisions []SimilarDecision) string {
	items := make([]string, len(decisions))
	for i, d := range decisions {
		items[i] = fmt.Sprintf("\n%d. Summary: %s\n   Rationale: %s", i+1, d.Summary, d.Rationale)
	}
	return strings.Join(items, "\n")
}

// GoalContext returns the emphasis block for goal, or "" when no goal is set.
func GoalContext(goal directive.Goal) string {
	return goalContexts[goal]
}

// FollowupContext returns the emphasis block for a follow-up code, or ""
// when the code is empty or unknown.
func FollowupContext(code string) string {
	return followupContexts[code]
}

//nolint:gochecknoglobals // fixed lookup tables
var goalContexts = map[directive.Goal]string{
	directive.GoalRisks: "Analysis goal: RISKS\n" +
		"Scan this artifact for failure modes and risks. Prioritize failure modes, " +
		"how likely they are and how much of the system they take down.",
	directive.GoalImplementable: "Analysis goal: IMPLEMENTABLE\n" +
		"Check if the design has all details needed for implementation. Call out missing " +
		"interfaces, unspecified behavior and undefined data types.",
	directive.GoalAPIContract: "Analysis goal: API_CONTRACT\n" +
		"Turn this into endpoints, schemas, and error codes. Focus on endpoints, " +
		"request and response schemas, authentication and error handling.",
	directive.GoalTestPlan: "Analysis goal: TEST_PLAN\n" +
		"Generate unit, integration, and load test scenarios. Focus on coverage gaps " +
		"and behavior that can be verified.",
	directive.GoalDecision: "Analysis goal: DECISION\n" +
		"Recommend a decision with options, trade-offs, and rationale. Make the " +
		"alternatives and the decision criteria explicit.",
}

//nolint:gochecknoglobals // fixed lookup tables
var followupContexts = map[string]string{
	directive.FollowupMitigations: "Follow-up request: MITIGATIONS\n" +
		"Propose a concrete mitigation strategy for every identified risk.",
	directive.FollowupPrioritize: "Follow-up request: PRIORITIZE\n" +
		"Order the risks by severity, most severe first, and justify the ranking.",
	directive.FollowupActionItems: "Follow-up request: ACTION_ITEMS\n" +
		"Turn the findings into concrete action items an engineer can pick up.",
	directive.FollowupDetails: "Follow-up request: DETAILS\n" +
		"Fill in the missing details an implementer would need before starting.",
	directive.FollowupChecklist: "Follow-up request: CHECKLIST\n" +
		"Produce an implementation checklist covering every open item.",
	directive.FollowupAuth: "Follow-up request: AUTH\n" +
		"Add authentication, authorization and rate limiting requirements for each endpoint.",
	directive.FollowupErrorCodes: "Follow-up request: ERROR_CODES\n" +
		"Define the error codes and error response format for each endpoint.",
	directive.FollowupExamples: "Follow-up request: EXAMPLES\n" +
		"Generate example request and response payloads for each endpoint.",
	directive.FollowupEdgeCases: "Follow-up request: EDGE_CASES\n" +
		"Add edge cases and boundary conditions to the test scenarios.",
	directive.FollowupLoadTests: "Follow-up request: LOAD_TESTS\n" +
		"Add load and performance test scenarios with target throughput and latency.",
	directive.FollowupCompare: "Follow-up request: COMPARE\n" +
		"Compare the options side by side against the same criteria.",
	directive.FollowupRationale: "Follow-up request: RATIONALE\n" +
		"Expand the rationale behind the recommended decision.",
}

const systemTemplate = `{{.Base}}{{if .GoalContext}}

{{.GoalContext}}{{end}}{{if .FollowupContext}}

{{.FollowupContext}}{{end}}`

const analysisSystemPrompt = `You are an Analysis Agent. Your role is to deeply analyze artifacts and reports to extract key insights, patterns, and decision points.

Your task:
- Examine the provided artifact and report
- Identify critical decision points
- Extract relevant context and constraints
- Highlight important considerations and implications
- Produce a structured analysis

Output format: JSON with your analysis structured clearly.`

const reviewSystemPrompt = `You are a Review Agent. Your role is to critically challenge and validate the analysis provided by the Analysis Agent.

Your task:
- Critically challenge the analysis output from the Analysis Agent
- Question assumptions and probe for weaknesses
- Identify gaps, inconsistencies, contradictions, or missing information
- Surface potential blind spots or oversimplifications
- Validate that all important aspects have been addressed thoroughly
- Suggest improvements or additional considerations that were missed

You must be skeptical and thorough. Do not simply affirm the analysis—challenge it constructively.

Output format: JSON with your critical review, challenges, and validation results.`

const tradeoffSystemPrompt = `You are a Tradeoff Agent. Your role is to surface engineering tensions and evaluate trade-offs between competing options.

Your task:
- Examine the analysis and review outputs critically
- Identify key engineering tensions and competing priorities
- Evaluate explicit trade-offs: performance vs. maintainability, speed vs. correctness, simplicity vs. flexibility
- Surface hidden costs, risks, and long-term implications
- Contrast different approaches with their inherent tensions
- Highlight where there are no perfect solutions—only trade-offs

Focus on real engineering tensions, not hypothetical scenarios. Make the hard choices explicit.

Output format: JSON with trade-off analysis, engineering tensions, and balanced perspectives on alternatives.`

// NoSimilarDecisionsNotice is the instruction the historian receives when
// similarity search found nothing.
const NoSimilarDecisionsNotice = "IMPORTANT: No similar past decisions exist. Explicitly state this in your " +
	"rationale and explain why this decision context is novel or distinct from prior decisions. " +
	"Do not reference or hallucinate past decisions that do not exist."

const historianSystemTemplate = `You are a Historian Agent. Your role is to synthesize all previous agent outputs and reference similar past decisions to produce a final decision summary and rationale.

Your task:
- Review outputs from Analysis, Review, and Tradeoff agents
{{if .Similar}}- Reference and learn from similar past decisions provided below{{else}}- Explicitly acknowledge that no similar past decisions were found—this is a new context{{end}}
- Synthesize all insights into a coherent decision framework
- Produce a clear, concise decision summary (2-3 sentences)
- Provide a comprehensive decision rationale that explains the reasoning, incorporates all agent insights, and references past decisions if available

{{if .Similar}}Similar past decisions to consider:{{similar .Similar}}{{else}}` + NoSimilarDecisionsNotice + `{{end}}

Output format: JSON object with exactly these two string fields:
- decisionSummary: A clear, concise summary of the decision (must be a string)
- decisionRationale: A comprehensive explanation of the reasoning behind the decision (must be a string)

Both fields are required and must be non-empty strings. The rationale must incorporate insights from all agents and, if similar decisions exist, learnings from past decisions. If no similar decisions exist, explicitly state this fact.`

const analysisUserTemplate = `Analyze the following artifact and report:

Artifact:
{{.ArtifactText}}

Report:
{{.ReportText}}`

const reviewUserTemplate = `Review the following analysis output:

{{.AnalysisOutput}}`

const tradeoffUserTemplate = `Evaluate trade-offs based on the following:

Analysis:
{{.AnalysisOutput}}

Review:
{{.ReviewOutput}}`

const historianUserTemplate = `Synthesize the following outputs into a final decision:

Analysis:
{{.AnalysisOutput}}

Review:
{{.ReviewOutput}}

Tradeoff:
{{.TradeoffOutput}}`
