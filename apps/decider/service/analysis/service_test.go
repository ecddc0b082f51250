package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antinvestor/decider/apps/decider/service/analysis"
	"github.com/antinvestor/decider/apps/decider/service/repository"
	"github.com/antinvestor/decider/internal/embedding"
	"github.com/antinvestor/decider/internal/llm"
	"github.com/antinvestor/decider/internal/pipeline"
)

type scriptedReasoner struct {
	mu    sync.Mutex
	calls []pipeline.ReasonRequest
	fail  pipeline.Stage
	err   error
}

func (r *scriptedReasoner) Reason(_ context.Context, req pipeline.ReasonRequest) (pipeline.RawOutput, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()

	if req.Stage == r.fail {
		return pipeline.RawOutput{}, r.err
	}
	if req.Stage == pipeline.StageHistorian {
		return pipeline.StructuredOutput(map[string]any{
			"decisionSummary":   "Proceed with the rollout",
			"decisionRationale": "Review and tradeoff agree",
		}, ""), nil
	}
	return pipeline.TextOutput(string(req.Stage) + " notes"), nil
}

func (r *scriptedReasoner) call(stage pipeline.Stage) (pipeline.ReasonRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Stage == stage {
			return c, true
		}
	}
	return pipeline.ReasonRequest{}, false
}

type fixedEmbedder struct {
	vec   []float32
	err   error
	input string
}

func (e *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.input = text
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *fixedEmbedder) Name() string { return "fixed" }

type brokenSearchRepository struct {
	*repository.MemoryRepository
}

func (brokenSearchRepository) FindSimilar(context.Context, []float32, int) ([]pipeline.SimilarDecision, error) {
	return nil, errors.New("vector index missing")
}

type failingOutcomeRepository struct {
	*repository.MemoryRepository
}

func (failingOutcomeRepository) RecordOutcome(context.Context, []*repository.AgentMessage, *repository.Decision) error {
	return errors.New("disk full")
}

var fixedTime = time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

func newService(
	t *testing.T,
	repo repository.Repository,
	embedder embedding.Engine,
	reasoner pipeline.Reasoner,
) *analysis.Service {
	t.Helper()
	composer, err := pipeline.NewComposer(repository.DefaultSimilarityLimit)
	require.NoError(t, err)
	orchestrator := pipeline.NewOrchestrator(composer, pipeline.NewExecutor(reasoner))
	return analysis.NewService(repo, embedder, orchestrator,
		analysis.WithClock(func() time.Time { return fixedTime }))
}

func TestAnalyze_PersistsAndAssembles(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}}
	reasoner := &scriptedReasoner{}
	svc := newService(t, repo, embedder, reasoner)

	resp, err := svc.Analyze(ctx, "[GOAL=RISKS]\nMigrate billing to the new ledger.\n")
	require.NoError(t, err)

	assert.Contains(t, resp.ToolReport, "Risk Scan Report")
	assert.Equal(t, "Migrate billing to the new ledger.\n\n"+resp.ToolReport, embedder.input)

	require.Len(t, resp.AgentMessages, 4)
	for i, role := range pipeline.Roles() {
		assert.Equal(t, role, resp.AgentMessages[i].AgentRole)
		assert.Equal(t, "2026-03-04T05:06:07.890Z", resp.AgentMessages[i].CreatedAt)
	}
	assert.Equal(t, "analysis notes", resp.AgentMessages[0].Message)

	var historian pipeline.Decision
	require.NoError(t, json.Unmarshal([]byte(resp.AgentMessages[3].Message), &historian))
	assert.Equal(t, "Proceed with the rollout", historian.Summary)

	require.Len(t, resp.Decisions, 1)
	assert.NotEmpty(t, resp.Decisions[0].ID)
	assert.Equal(t, "Review and tradeoff agree", resp.Decisions[0].Rationale)
	assert.Nil(t, resp.Findings)

	assert.Len(t, repo.Reports(), 1)
	assert.Len(t, repo.AgentMessages(), 4)
	stored, err := repo.ListRecentDecisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, resp.Decisions[0].ID, stored[0].ID)
	assert.Equal(t, []float32{1, 0, 0}, stored[0].Embedding)
	assert.Equal(t, pipeline.Roles(), stored[0].AgentRolesInvolved)
}

func TestAnalyze_GoalAndFollowupReachPrompts(t *testing.T) {
	reasoner := &scriptedReasoner{}
	svc := newService(t, repository.NewMemoryRepository(), &fixedEmbedder{vec: []float32{1}}, reasoner)

	_, err := svc.Analyze(context.Background(), "[GOAL=TEST_PLAN]\n[FOLLOWUP=EDGE_CASES]\nCheckout flow.")
	require.NoError(t, err)

	analysisCall, ok := reasoner.call(pipeline.StageAnalysis)
	require.True(t, ok)
	assert.Contains(t, analysisCall.SystemPrompt, pipeline.GoalContext("TEST_PLAN"))
	assert.NotContains(t, analysisCall.UserPrompt, "[GOAL=")
}

func TestAnalyze_APIContractIncludesFindings(t *testing.T) {
	svc := newService(t, repository.NewMemoryRepository(), &fixedEmbedder{vec: []float32{1}}, &scriptedReasoner{})

	resp, err := svc.Analyze(context.Background(), "[GOAL=API_CONTRACT]\nThe service exposes /users and /orders.")
	require.NoError(t, err)

	require.NotNil(t, resp.Findings)
	assert.Equal(t, len(resp.Findings.Raw), resp.Findings.Statistics.Total)
	assert.Positive(t, resp.Findings.Statistics.Total)
	assert.Contains(t, resp.ToolReport, "API Contract Analysis")
}

func TestAnalyze_HistorianSeesPastDecisions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{
		Summary: "Adopted the outbox pattern", Rationale: "Exactly-once delivery", Embedding: []float32{1, 0},
	}))

	reasoner := &scriptedReasoner{}
	svc := newService(t, repo, &fixedEmbedder{vec: []float32{1, 0}}, reasoner)

	_, err := svc.Analyze(ctx, "Publish order events.")
	require.NoError(t, err)

	historian, ok := reasoner.call(pipeline.StageHistorian)
	require.True(t, ok)
	assert.Contains(t, historian.SystemPrompt, "Adopted the outbox pattern")
	assert.NotContains(t, historian.SystemPrompt, pipeline.NoSimilarDecisionsNotice)
}

func TestAnalyze_SimilarityFailureDegradesToNoSimilarDecisions(t *testing.T) {
	repo := brokenSearchRepository{repository.NewMemoryRepository()}
	reasoner := &scriptedReasoner{}
	svc := newService(t, repo, &fixedEmbedder{vec: []float32{1, 0}}, reasoner)

	resp, err := svc.Analyze(context.Background(), "Add a retry budget.")
	require.NoError(t, err)
	assert.Len(t, resp.Decisions, 1)

	historian, ok := reasoner.call(pipeline.StageHistorian)
	require.True(t, ok)
	assert.Contains(t, historian.SystemPrompt, pipeline.NoSimilarDecisionsNotice)
}

func TestAnalyze_StageFailurePersistsNoDecision(t *testing.T) {
	repo := repository.NewMemoryRepository()
	reasoner := &scriptedReasoner{fail: pipeline.StageTradeoff, err: llm.ErrServerError}
	svc := newService(t, repo, &fixedEmbedder{vec: []float32{1}}, reasoner)

	resp, err := svc.Analyze(context.Background(), "Rewrite the scheduler.")
	require.Error(t, err)
	assert.Nil(t, resp)

	var agentErr *pipeline.ExternalAgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, pipeline.StageTradeoff, agentErr.Stage)
	require.ErrorIs(t, err, llm.ErrServerError)

	assert.Zero(t, repo.DecisionCount())
	assert.Empty(t, repo.AgentMessages())
	_, reached := reasoner.call(pipeline.StageHistorian)
	assert.False(t, reached)
}

func TestAnalyze_OutcomeWriteFailureLeavesNoMessages(t *testing.T) {
	mem := repository.NewMemoryRepository()
	svc := newService(t, failingOutcomeRepository{mem}, &fixedEmbedder{vec: []float32{1}}, &scriptedReasoner{})

	resp, err := svc.Analyze(context.Background(), "Shard the orders table.")
	require.ErrorContains(t, err, "disk full")
	assert.Nil(t, resp)

	assert.Empty(t, mem.AgentMessages())
	assert.Zero(t, mem.DecisionCount())
	assert.Len(t, mem.Reports(), 1)
}

func TestAnalyze_EmbeddingFailureIsFatal(t *testing.T) {
	repo := repository.NewMemoryRepository()
	reasoner := &scriptedReasoner{}
	svc := newService(t, repo, &fixedEmbedder{err: errors.New("connection refused")}, reasoner)

	_, err := svc.Analyze(context.Background(), "Anything.")
	require.ErrorIs(t, err, embedding.ErrEmbedding)
	assert.Empty(t, reasoner.calls)
	assert.Zero(t, repo.DecisionCount())
}

func TestAnalyze_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"blank", "  \n\t "},
		{"markers only", "[GOAL=RISKS]\n[FOLLOWUP=TOP_3]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasoner := &scriptedReasoner{}
			svc := newService(t, repository.NewMemoryRepository(), &fixedEmbedder{vec: []float32{1}}, reasoner)

			_, err := svc.Analyze(context.Background(), tt.content)
			require.ErrorIs(t, err, analysis.ErrEmptyArtifact)

			var verr *analysis.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "artifactContent cannot be empty", verr.Message)
			assert.Empty(t, reasoner.calls)
		})
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repository.NewMemoryRepository(), &fixedEmbedder{vec: []float32{1}}, &scriptedReasoner{})

	_, err := svc.Analyze(ctx, "First artifact.")
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, "Second artifact.")
	require.NoError(t, err)

	entries, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Proceed with the rollout", entries[0].Summary)
	assert.Equal(t, "2026-03-04T05:06:07.890Z", entries[0].CreatedAt)
	assert.NotEqual(t, entries[0].ArtifactID, entries[1].ArtifactID)
}
