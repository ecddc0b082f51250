package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/util"
	"github.com/rs/xid"

	"github.com/antinvestor/decider/internal/embedding"
	"github.com/antinvestor/decider/internal/pipeline"
)

// Defaults for search and listing.
const (
	DefaultSimilarityLimit = 5
	DefaultCandidateWindow = 1000
	DefaultListLimit       = 20
	maxListLimit           = 200
)

// ErrDatabaseUnavailable is returned when the database connection is not available.
var ErrDatabaseUnavailable = errors.New("database connection is not available")

// ErrIncompleteOutcome is returned when a run outcome has no decision or
// its records point at different artifacts.
var ErrIncompleteOutcome = errors.New("incomplete run outcome")

// Repository persists the records of analysis runs and answers similarity
// queries over past decisions.
type Repository interface {
	// UpsertArtifact returns the artifact with the given content, creating
	// it when absent and bumping UpdatedAt when present.
	UpsertArtifact(ctx context.Context, content string) (*Artifact, error)
	InsertReport(ctx context.Context, report *Report) error

	// RecordOutcome stores the agent messages and the decision of one run.
	// Either all of them are stored or none is.
	RecordOutcome(ctx context.Context, messages []*AgentMessage, decision *Decision) error

	// FindSimilar ranks the most recent decisions by cosine similarity to
	// vec, highest first.
	FindSimilar(ctx context.Context, vec []float32, limit int) ([]pipeline.SimilarDecision, error)

	// ListRecentDecisions returns decisions newest first.
	ListRecentDecisions(ctx context.Context, limit int) ([]*Decision, error)
}

// Option configures a repository.
type Option func(*options)

type options struct {
	candidateWindow int
}

// WithCandidateWindow bounds how many recent decisions FindSimilar scores.
func WithCandidateWindow(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.candidateWindow = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{candidateWindow: DefaultCandidateWindow}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRepository creates a repository. If a database pool is provided it
// uses PostgreSQL, otherwise it falls back to in-memory storage.
func NewRepository(ctx context.Context, p pool.Pool, opts ...Option) Repository {
	if p != nil {
		return NewPGRepository(p, opts...)
	}
	util.Log(ctx).Warn("no database pool configured, decisions are kept in memory")
	return NewMemoryRepository(opts...)
}

// Migrate creates or updates the tables of every model.
func Migrate(ctx context.Context, p pool.Pool) error {
	if p == nil {
		return ErrDatabaseUnavailable
	}
	db := p.DB(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// checkOutcome validates a run outcome before anything is written.
func checkOutcome(messages []*AgentMessage, decision *Decision) error {
	if decision == nil {
		return fmt.Errorf("%w: missing decision", ErrIncompleteOutcome)
	}
	for _, m := range messages {
		if m.ArtifactID != decision.ArtifactID {
			return fmt.Errorf("%w: message for artifact %q, decision for %q",
				ErrIncompleteOutcome, m.ArtifactID, decision.ArtifactID)
		}
	}
	return nil
}

func newID() string {
	return xid.New().String()
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// rankSimilar scores candidates against vec and keeps the best limit.
// Candidates whose embedding has a different dimension are skipped.
func rankSimilar(ctx context.Context, candidates []*Decision, vec []float32, limit int) []pipeline.SimilarDecision {
	limit = normalizeLimit(limit, DefaultSimilarityLimit)

	ranked := make([]pipeline.SimilarDecision, 0, len(candidates))
	skipped := 0
	for _, d := range candidates {
		score, err := embedding.CosineSimilarity(vec, d.Embedding)
		if err != nil {
			skipped++
			continue
		}
		ranked = append(ranked, pipeline.SimilarDecision{
			ID:        d.ID,
			Summary:   d.Summary,
			Rationale: d.Rationale,
			Score:     score,
		})
	}
	if skipped > 0 {
		util.Log(ctx).Debug("skipped decisions with mismatched embeddings", "count", skipped)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
