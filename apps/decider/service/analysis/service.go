// Package analysis runs one artifact through the whole decision flow:
// directive parsing, tool report, embedding, similarity lookup, the four
// stage pipeline and persistence of the outcome.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/util"

	"github.com/antinvestor/decider/apps/decider/service/repository"
	"github.com/antinvestor/decider/internal/contract"
	"github.com/antinvestor/decider/internal/directive"
	"github.com/antinvestor/decider/internal/embedding"
	"github.com/antinvestor/decider/internal/pipeline"
	"github.com/antinvestor/decider/internal/report"
)

// Input validation failures. Their messages are returned to API clients.
var (
	ErrInvalidArtifact = errors.New("artifactContent is required and must be a string")
	ErrEmptyArtifact   = errors.New("artifactContent cannot be empty")
)

// ValidationError is a rejected request. Message is safe to show clients.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &ValidationError{Field: "artifactContent", Message: err.Error(), Err: err}
}

// Service wires the pipeline to its collaborators.
type Service struct {
	repo         repository.Repository
	embedder     embedding.Engine
	orchestrator *pipeline.Orchestrator
	analyzer     *contract.Analyzer
	similarLimit int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSimilarityLimit sets how many past decisions are fetched per run.
func WithSimilarityLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.similarLimit = n
		}
	}
}

// WithClock replaces the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an analysis service.
func NewService(
	repo repository.Repository,
	embedder embedding.Engine,
	orchestrator *pipeline.Orchestrator,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repo,
		embedder:     embedder,
		orchestrator: orchestrator,
		analyzer:     contract.NewAnalyzer(),
		similarLimit: repository.DefaultSimilarityLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the full flow for one submitted artifact. Agent messages and
// the decision are persisted only when every stage succeeded.
func (s *Service) Analyze(ctx context.Context, content string) (*pipeline.Response, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalid(ErrEmptyArtifact)
	}

	d, err := directive.Parse(content)
	if err != nil {
		if errors.Is(err, directive.ErrEmptyArtifact) {
			return nil, invalid(ErrEmptyArtifact)
		}
		return nil, fmt.Errorf("parse directives: %w", err)
	}

	log := util.Log(ctx).WithField("goal", string(d.Goal)).WithField("followup", d.Followup)

	var findings *contract.Result
	if d.Goal == directive.GoalAPIContract {
		findings = s.analyzer.Analyze(ctx, d.CleanedText)
		log.Debug("contract analysis complete", "findings", findings.Metadata.Statistics.Total)
	}
	toolReport := report.Generate(d.CleanedText, d.Goal, findings)

	artifact, err := s.repo.UpsertArtifact(ctx, d.CleanedText)
	if err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	rep := &repository.Report{ArtifactID: artifact.ID, RawReport: toolReport, CreatedAt: s.now()}
	if err = s.repo.InsertReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	log = log.WithField("artifact_id", artifact.ID)

	vec, err := s.embedder.Embed(ctx, d.CleanedText+"\n\n"+toolReport)
	if err != nil {
		if !errors.Is(err, embedding.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", embedding.ErrEmbedding, err)
		}
		return nil, err
	}

	similar, err := s.repo.FindSimilar(ctx, vec, s.similarLimit)
	if err != nil {
		log.WithError(fmt.Errorf("%w: %w", pipeline.ErrSimilaritySearch, err)).
			Warn("continuing without similar decisions")
		similar = nil
	}

	pc := &pipeline.PipelineContext{
		ArtifactText:     d.CleanedText,
		ReportText:       toolReport,
		SimilarDecisions: similar,
		Goal:             d.Goal,
		Followup:         d.Followup,
	}
	result, err := s.orchestrator.Run(ctx, pc)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	messages := make([]*repository.AgentMessage, 0, len(pipeline.Stages()))
	for _, stage := range pipeline.Stages() {
		out, ok := result.Output(stage)
		if !ok {
			continue
		}
		messages = append(messages, &repository.AgentMessage{
			ArtifactID: artifact.ID,
			ReportID:   rep.ID,
			AgentRole:  string(stage),
			Message:    out.Message(),
			CreatedAt:  createdAt,
		})
	}
	decision := &repository.Decision{
		ArtifactID:         artifact.ID,
		Summary:            result.Decision.Summary,
		Rationale:          result.Decision.Rationale,
		Embedding:          vec,
		AgentRolesInvolved: pipeline.Roles(),
		CreatedAt:          createdAt,
	}
	if err = s.repo.RecordOutcome(ctx, messages, decision); err != nil {
		return nil, fmt.Errorf("save outcome: %w", err)
	}

	log.Info("decision recorded", "decision_id", decision.ID, "similar", len(similar))

	resp := pipeline.Assemble(pipeline.Assembly{
		ToolReport: toolReport,
		Result:     result,
		DecisionID: decision.ID,
		CreatedAt:  createdAt,
		Contract:   findings,
	})
	return &resp, nil
}

// HistoryEntry is one past decision as listed to clients.
type HistoryEntry struct {
	ID                 string   `json:"_id"`
	ArtifactID         string   `json:"artifactId"`
	Summary            string   `json:"summary"`
	Rationale          string   `json:"rationale"`
	AgentRolesInvolved []string `json:"agentRolesInvolved"`
	CreatedAt          string   `json:"createdAt"`
}

// History lists recent decisions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	decisions, err := s.repo.ListRecentDecisions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(decisions))
	for _, d := range decisions {
		entries = append(entries, HistoryEntry{
			ID:                 d.ID,
			ArtifactID:         d.ArtifactID,
			Summary:            d.Summary,
			Rationale:          d.Rationale,
			AgentRolesInvolved: d.AgentRolesInvolved,
			CreatedAt:          pipeline.FormatTimestamp(d.CreatedAt),
		})
	}
	return entries, nil
}
