package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/ceap-risk/internal/config"
	infra "github.com/dvloznov/ceap-risk/internal/infra/bigquery"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/metrics"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/google/uuid"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially, stopping at the first
// error.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) not started: %w", i+1, step.Name(), err)
		}
		start := time.Now()
		err := step.Execute(ctx, state)
		metrics.StepDuration.WithLabelValues(step.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		state.Log.Debug().Str(logger.FieldStep, step.Name()).Dur("elapsed", time.Since(start)).Msg("Step finished")
	}
	return nil
}

// Deps are the collaborators of a scoring run. Repo and Briefer are optional.
type Deps struct {
	Sources config.Sources
	Storage storage.Service
	Engine  *risk.Engine
	Writer  *report.Writer
	Repo    infra.RunRepository
	Briefer Briefer
	Clock   func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}

// Runner runs the scoring pipeline.
type Runner struct {
	deps     *Deps
	pipeline *Pipeline
}

// NewRunner builds the standard scoring pipeline. Warehouse steps are only
// included when a repository is set, and the briefing step only when a
// briefer is set.
func NewRunner(deps Deps) *Runner {
	d := &deps
	var steps []PipelineStep
	if d.Repo != nil {
		steps = append(steps, &StartRunStep{deps: d})
	}
	steps = append(steps,
		&LoadSourcesStep{deps: d},
		&ValidateExpensesStep{},
		&BuildAggregationsStep{},
		&ScoreLegislatorsStep{deps: d},
		&MapFraudFlagsStep{},
		&MapMismatchesStep{},
		&BuildManifestStep{deps: d},
		&ValidateOutputsStep{deps: d},
		&WriteOutputsStep{deps: d},
	)
	if d.Repo != nil {
		steps = append(steps, &PersistWarehouseStep{deps: d})
	}
	if d.Briefer != nil {
		steps = append(steps, &BriefingStep{deps: d})
	}
	return &Runner{deps: d, pipeline: NewPipeline(steps...)}
}

// Steps returns the step names this runner executes.
func (r *Runner) Steps() []string {
	return r.pipeline.Steps()
}

// Run executes one scoring run. An empty runID gets a fresh uuid. The state
// is returned even on failure so callers can inspect partial results and
// warnings.
func (r *Runner) Run(ctx context.Context, runID string) (*PipelineState, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.WithRun(logger.FromContext(ctx), runID)
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{
		RunID:     runID,
		StartedAt: r.deps.now(),
		Log:       log,
	}

	start := time.Now()
	log.Info().Strs("steps", r.Steps()).Msg("Scoring run started")
	err := r.pipeline.Execute(ctx, state)
	if err != nil {
		metrics.ObserveRun(runStatusFailed, time.Since(start))
		// A SUCCESS row is final; later optional steps cannot flip it.
		if state.runStarted && !state.runSucceeded {
			r.deps.Repo.MarkScoringRunFailed(context.WithoutCancel(ctx), state.RunID, err)
		}
		log.Error().Err(err).Msg("Scoring run failed")
		return state, err
	}

	metrics.ObserveRun(runStatusSuccess, time.Since(start))
	log.Info().
		Int("profiles", len(state.Result.Profiles)).
		Int("excluded", state.Result.Excluded).
		Int("warnings", len(state.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("Scoring run finished")
	return state, nil
}
