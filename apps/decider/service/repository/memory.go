package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/antinvestor/decider/internal/pipeline"
)

// MemoryRepository is an in-memory repository for tests, the CLI and
// deployments without a database. Records live for the process lifetime.
type MemoryRepository struct {
	mu   sync.RWMutex
	opts options
	now  func() time.Time

	artifacts map[string]*Artifact // keyed by content
	reports   []*Report
	messages  []*AgentMessage
	decisions []*Decision // insertion order
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(opts ...Option) *MemoryRepository {
	return &MemoryRepository{
		opts:      buildOptions(opts),
		now:       time.Now,
		artifacts: make(map[string]*Artifact),
	}
}

// UpsertArtifact implements Repository.
func (r *MemoryRepository) UpsertArtifact(_ context.Context, content string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if a, ok := r.artifacts[content]; ok {
		a.UpdatedAt = now
		out := *a
		return &out, nil
	}

	a := &Artifact{ID: newID(), Content: content, CreatedAt: now, UpdatedAt: now}
	r.artifacts[content] = a
	out := *a
	return &out, nil
}

// InsertReport implements Repository.
func (r *MemoryRepository) InsertReport(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report.ID == "" {
		report.ID = newID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = r.now()
	}
	stored := *report
	r.reports = append(r.reports, &stored)
	return nil
}

// RecordOutcome implements Repository. Messages and decision are committed
// under one lock.
func (r *MemoryRepository) RecordOutcome(
	_ context.Context,
	messages []*AgentMessage,
	decision *Decision,
) error {
	if err := checkOutcome(messages, decision); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stored := make([]*AgentMessage, 0, len(messages))
	for _, m := range messages {
		if m.ID == "" {
			m.ID = newID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		c := *m
		stored = append(stored, &c)
	}
	r.messages = append(r.messages, stored...)
	r.insertDecisionLocked(decision, now)
	return nil
}

// InsertDecision stores a decision on its own. Used to seed history.
func (r *MemoryRepository) InsertDecision(_ context.Context, decision *Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.insertDecisionLocked(decision, r.now())
	return nil
}

func (r *MemoryRepository) insertDecisionLocked(decision *Decision, now time.Time) {
	if decision.ID == "" {
		decision.ID = newID()
	}
	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = now
	}
	stored := *decision
	stored.Embedding = slices.Clone(decision.Embedding)
	stored.AgentRolesInvolved = slices.Clone(decision.AgentRolesInvolved)
	r.decisions = append(r.decisions, &stored)
}

// FindSimilar implements Repository.
func (r *MemoryRepository) FindSimilar(
	ctx context.Context,
	vec []float32,
	limit int,
) ([]pipeline.SimilarDecision, error) {
	r.mu.RLock()
	candidates := r.recentLocked(r.opts.candidateWindow)
	r.mu.RUnlock()

	return rankSimilar(ctx, candidates, vec, limit), nil
}

// ListRecentDecisions implements Repository.
func (r *MemoryRepository) ListRecentDecisions(_ context.Context, limit int) ([]*Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recent := r.recentLocked(normalizeLimit(limit, DefaultListLimit))
	out := make([]*Decision, len(recent))
	for i, d := range recent {
		c := *d
		out[i] = &c
	}
	return out, nil
}

// Reports returns the stored reports in insertion order.
func (r *MemoryRepository) Reports() []Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Report, len(r.reports))
	for i, rep := range r.reports {
		out[i] = *rep
	}
	return out
}

// AgentMessages returns the stored agent messages in insertion order.
func (r *MemoryRepository) AgentMessages() []AgentMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentMessage, len(r.messages))
	for i, m := range r.messages {
		out[i] = *m
	}
	return out
}

// DecisionCount returns the number of stored decisions.
func (r *MemoryRepository) DecisionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decisions)
}

// recentLocked returns up to n decisions, newest first. Callers hold r.mu.
func (r *MemoryRepository) recentLocked(n int) []*Decision {
	if n > len(r.decisions) {
		n = len(r.decisions)
	}
	out := make([]*Decision, 0, n)
	for i := len(r.decisions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.decisions[i])
	}
	return out
}
