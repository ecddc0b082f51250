package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/util"
)

// Result is the outcome of a successful run.
type Result struct {
	// Outputs holds one entry per stage, in execution order.
	Outputs  []StageOutput
	Decision Decision
}

// Output returns the output recorded for stage.
func (r *Result) Output(stage Stage) (StageOutput, bool) {
	for _, o := range r.Outputs {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutput{}, false
}

// Orchestrator drives the four stages in order.
type Orchestrator struct {
	composer *Composer
	executor *Executor
	retry    RetryPolicy
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryPolicy sets the per-stage retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) {
		o.retry = p
	}
}

// NewOrchestrator creates an orchestrator. Without options no stage is retried.
func NewOrchestrator(composer *Composer, executor *Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		composer: composer,
		executor: executor,
		retry:    NoRetry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes analysis, review, tradeoff and historian against pc. Any
// stage failure aborts the run and no partial result is returned.
func (o *Orchestrator) Run(ctx context.Context, pc *PipelineContext) (*Result, error) {
	log := util.Log(ctx).WithField("goal", string(pc.Goal))
	runStart := time.Now()

	result := &Result{Outputs: make([]StageOutput, 0, len(Stages()))}

	for _, stage := range Stages() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline cancelled before %s: %w", stage, err)
		}

		stageStart := time.Now()
		out, err := o.runStage(ctx, stage, pc)
		if err != nil {
			log.WithError(err).Error("pipeline stage failed",
				"stage", stage,
				"duration_ms", time.Since(stageStart).Milliseconds(),
			)
			return nil, err
		}

		if stage.Terminal() {
			result.Decision = *out.Decision
		} else {
			pc.record(stage, out.Text)
		}
		result.Outputs = append(result.Outputs, out)

		log.Info("pipeline stage complete",
			"stage", stage,
			"duration_ms", time.Since(stageStart).Milliseconds(),
		)
	}

	log.Info("pipeline complete",
		"similar_decisions", len(pc.SimilarDecisions),
		"duration_ms", time.Since(runStart).Milliseconds(),
	)

	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, pc *PipelineContext) (StageOutput, error) {
	prompt, err := o.composer.Compose(stage, pc)
	if err != nil {
		return StageOutput{}, fmt.Errorf("compose %s prompt: %w", stage, err)
	}

	var out StageOutput
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		var execErr error
		out, execErr = o.executor.Execute(ctx, stage, prompt)
		return execErr
	}, func(attempt int, err error) {
		util.Log(ctx).WithError(err).Info("retrying pipeline stage",
			"stage", stage,
			"attempt", attempt,
			"delay_ms", o.retry.Delay(attempt).Milliseconds(),
		)
	})
	if err != nil {
		var agentErr *ExternalAgentError
		if !errors.As(err, &agentErr) {
			err = &ExternalAgentError{Stage: stage, Err: err}
		}
		return StageOutput{}, err
	}
	return out, nil
}
