package jobs

import (
	"context"
	"errors"

	"github.com/dvloznov/ceap-risk/internal/ingest"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/google/uuid"
)

// Runner executes one scoring run.
type Runner interface {
	Run(ctx context.Context, runID string) (*pipeline.PipelineState, error)
}

// ScoringHandler returns a handler that runs the scoring pipeline once per
// attempt. Every attempt gets a fresh run id. onSuccess, when set, receives
// the state of each successful run.
func ScoringHandler(r Runner, onSuccess func(*pipeline.PipelineState)) JobHandler {
	return func(ctx context.Context, job *ScoringJob) error {
		job.RunID = uuid.NewString()
		log := logger.FromContext(ctx).With().Str(logger.FieldJobID, job.JobID).Logger()
		ctx = logger.WithContext(ctx, log)

		state, err := r.Run(ctx, job.RunID)
		if err != nil {
			if errors.Is(err, ingest.ErrMissingColumn) || storage.IsNotExist(err) {
				return Permanent(err)
			}
			return err
		}

		job.Warnings = len(state.Warnings)
		if state.Result != nil {
			job.Profiles = len(state.Result.Profiles)
		}
		if onSuccess != nil {
			onSuccess(state)
		}
		return nil
	}
}
