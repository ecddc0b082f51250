package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antinvestor/decider/apps/decider/service/repository"
	"github.com/antinvestor/decider/internal/pipeline"
)

func TestMemoryRepository_UpsertArtifactByContent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	first, err := repo.UpsertArtifact(ctx, "GET /users")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	again, err := repo.UpsertArtifact(ctx, "GET /users")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
	assert.False(t, again.UpdatedAt.Before(first.UpdatedAt))

	other, err := repo.UpsertArtifact(ctx, "POST /users")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMemoryRepository_InsertAssignsIDs(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	report := &repository.Report{ArtifactID: "a1", RawReport: "Tool Report"}
	require.NoError(t, repo.InsertReport(ctx, report))
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.CreatedAt.IsZero())

	messages := []*repository.AgentMessage{
		{ArtifactID: "a1", ReportID: report.ID, AgentRole: "analysis", Message: "a"},
		{ArtifactID: "a1", ReportID: report.ID, AgentRole: "review", Message: "b"},
	}
	decision := &repository.Decision{ArtifactID: "a1", Summary: "s", Rationale: "r"}
	require.NoError(t, repo.RecordOutcome(ctx, messages, decision))
	assert.NotEqual(t, messages[0].ID, messages[1].ID)
	assert.NotEmpty(t, decision.ID)

	stored := repo.AgentMessages()
	require.Len(t, stored, 2)
	assert.Equal(t, "analysis", stored[0].AgentRole)
	assert.Equal(t, "review", stored[1].AgentRole)
	assert.Len(t, repo.Reports(), 1)
	assert.Equal(t, 1, repo.DecisionCount())
}

func TestMemoryRepository_RecordOutcomeIsAllOrNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		decision *repository.Decision
	}{
		{name: "missing decision"},
		{name: "decision for another artifact", decision: &repository.Decision{ArtifactID: "a2", Summary: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository()
			messages := []*repository.AgentMessage{
				{ArtifactID: "a1", AgentRole: "analysis", Message: "a"},
				{ArtifactID: "a1", AgentRole: "historian", Message: "d"},
			}

			err := repo.RecordOutcome(ctx, messages, tt.decision)
			require.ErrorIs(t, err, repository.ErrIncompleteOutcome)
			assert.Empty(t, repo.AgentMessages())
			assert.Equal(t, 0, repo.DecisionCount())
		})
	}
}

func TestMemoryRepository_FindSimilarRanksByScore(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	insert := func(summary string, vec []float32) {
		require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{
			ArtifactID: "a", Summary: summary, Rationale: summary + " because", Embedding: vec,
		}))
	}
	insert("orthogonal", []float32{0, 1})
	insert("exact", []float32{1, 0})
	insert("close", []float32{0.9, 0.1})
	insert("opposite", []float32{-1, 0})
	insert("wrong dimension", []float32{1, 0, 0})

	got, err := repo.FindSimilar(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)

	summaries := make([]string, len(got))
	for i, d := range got {
		summaries[i] = d.Summary
	}
	assert.Equal(t, []string{"exact", "close", "orthogonal"}, summaries)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "exact because", got[0].Rationale)
}

func TestMemoryRepository_FindSimilarDefaultsAndEmpty(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	got, err := repo.FindSimilar(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	for i := range 8 {
		require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{
			Summary: fmt.Sprintf("d%d", i), Embedding: []float32{1, float32(i)},
		}))
	}

	got, err = repo.FindSimilar(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, got, repository.DefaultSimilarityLimit)
}

func TestMemoryRepository_FindSimilarHonoursCandidateWindow(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository(repository.WithCandidateWindow(2))

	require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{Summary: "old match", Embedding: []float32{1, 0}}))
	require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{Summary: "new a", Embedding: []float32{0, 1}}))
	require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{Summary: "new b", Embedding: []float32{0.5, 0.5}}))

	got, err := repo.FindSimilar(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.NotEqual(t, "old match", d.Summary)
	}
}

func TestMemoryRepository_ListRecentDecisions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	for i := range 3 {
		require.NoError(t, repo.InsertDecision(ctx, &repository.Decision{
			Summary:            fmt.Sprintf("d%d", i),
			AgentRolesInvolved: pipeline.Roles(),
		}))
	}

	got, err := repo.ListRecentDecisions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d2", got[0].Summary)
	assert.Equal(t, "d1", got[1].Summary)
	assert.Equal(t, []string{"analysis", "review", "tradeoff", "historian"}, got[0].AgentRolesInvolved)

	all, err := repo.ListRecentDecisions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 3, repo.DecisionCount())
}

func TestMemoryRepository_StoredDecisionIsIsolated(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	vec := []float32{1, 0}
	d := &repository.Decision{Summary: "s", Embedding: vec}
	require.NoError(t, repo.InsertDecision(ctx, d))
	vec[0] = -1

	got, err := repo.FindSimilar(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestNewRepository_FallsBackToMemory(t *testing.T) {
	repo := repository.NewRepository(context.Background(), nil)
	_, ok := repo.(*repository.MemoryRepository)
	assert.True(t, ok)

	require.ErrorIs(t, repository.Migrate(context.Background(), nil), repository.ErrDatabaseUnavailable)
}
