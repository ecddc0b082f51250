package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/frame/datastore/pool"
	"gorm.io/gorm"

	"github.com/antinvestor/decider/internal/pipeline"
)

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool pool.Pool
	opts options
}

// NewPGRepository creates a repository backed by the frame datastore pool.
func NewPGRepository(p pool.Pool, opts ...Option) *PGRepository {
	return &PGRepository{pool: p, opts: buildOptions(opts)}
}

func (r *PGRepository) db(ctx context.Context, readOnly bool) *gorm.DB {
	if r.pool == nil {
		return nil
	}
	return r.pool.DB(ctx, readOnly)
}

// UpsertArtifact implements Repository.
func (r *PGRepository) UpsertArtifact(ctx context.Context, content string) (*Artifact, error) {
	db := r.db(ctx, false)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var artifact Artifact
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		findErr := tx.Where("content = ?", content).Order("created_at").First(&artifact).Error
		switch {
		case findErr == nil:
			artifact.UpdatedAt = now
			return tx.Model(&Artifact{}).Where("id = ?", artifact.ID).Update("updated_at", now).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			artifact = Artifact{ID: newID(), Content: content, CreatedAt: now, UpdatedAt: now}
			return tx.Create(&artifact).Error
		default:
			return findErr
		}
	})
	if err != nil {
		return nil, fmt.Errorf("upsert artifact: %w", err)
	}
	return &artifact, nil
}

// InsertReport implements Repository.
func (r *PGRepository) InsertReport(ctx context.Context, report *Report) error {
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	if report.ID == "" {
		report.ID = newID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	if err := db.Create(report).Error; err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// RecordOutcome implements Repository. Messages and decision are written
// in one transaction.
func (r *PGRepository) RecordOutcome(ctx context.Context, messages []*AgentMessage, decision *Decision) error {
	if err := checkOutcome(messages, decision); err != nil {
		return err
	}
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	now := time.Now()
	for _, m := range messages {
		if m.ID == "" {
			m.ID = newID()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
	}
	if decision.ID == "" {
		decision.ID = newID()
	}
	if decision.CreatedAt.IsZero() {
		decision.CreatedAt = now
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if len(messages) > 0 {
			if err := tx.Create(&messages).Error; err != nil {
				return fmt.Errorf("insert agent messages: %w", err)
			}
		}
		if err := tx.Create(decision).Error; err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// FindSimilar implements Repository. Scoring happens in process over the
// candidate window.
func (r *PGRepository) FindSimilar(
	ctx context.Context,
	vec []float32,
	limit int,
) ([]pipeline.SimilarDecision, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var candidates []*Decision
	err := db.Select("id", "summary", "rationale", "embedding", "created_at").
		Order("created_at DESC").
		Limit(r.opts.candidateWindow).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load candidate decisions: %w", err)
	}

	return rankSimilar(ctx, candidates, vec, limit), nil
}

// ListRecentDecisions implements Repository.
func (r *PGRepository) ListRecentDecisions(ctx context.Context, limit int) ([]*Decision, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var decisions []*Decision
	err := db.Order("created_at DESC").
		Limit(normalizeLimit(limit, DefaultListLimit)).
		Find(&decisions).Error
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return decisions, nil
}
