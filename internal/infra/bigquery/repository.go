package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// RunRepository persists scoring runs and their risk profiles.
type RunRepository interface {
	// StartScoringRun records a new run with status=RUNNING and returns its id.
	StartScoringRun(ctx context.Context, row *ScoringRunRow) (string, error)

	// MarkScoringRunSucceeded sets status=SUCCESS and records the summary.
	MarkScoringRunSucceeded(ctx context.Context, runID string, summary RunSummary) error

	// MarkScoringRunFailed sets status=FAILED with the error message. Best effort.
	MarkScoringRunFailed(ctx context.Context, runID string, runErr error)

	// InsertRiskProfiles appends the profile rows of a run.
	InsertRiskProfiles(ctx context.Context, rows []*RiskProfileRow) error

	// ListRiskProfiles returns the profile rows of a run.
	ListRiskProfiles(ctx context.Context, runID string) ([]*RiskProfileRow, error)

	// LatestSuccessfulRun returns the newest successful run or ErrRunNotFound.
	LatestSuccessfulRun(ctx context.Context) (*ScoringRunRow, error)
}

// BigQueryRunRepository is the RunRepository backed by BigQuery. It holds a
// shared client for all operations.
type BigQueryRunRepository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewBigQueryRunRepository creates a repository with its own client.
func NewBigQueryRunRepository(ctx context.Context, ds Dataset) (*BigQueryRunRepository, error) {
	client, err := bigquery.NewClient(ctx, ds.Project)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{client: client, ds: ds}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryRunRepository) StartScoringRun(ctx context.Context, row *ScoringRunRow) (string, error) {
	return StartScoringRunWithClient(ctx, r.client, r.ds, row)
}

func (r *BigQueryRunRepository) MarkScoringRunSucceeded(ctx context.Context, runID string, summary RunSummary) error {
	return MarkScoringRunSucceededWithClient(ctx, r.client, r.ds, runID, summary)
}

func (r *BigQueryRunRepository) MarkScoringRunFailed(ctx context.Context, runID string, runErr error) {
	MarkScoringRunFailedWithClient(ctx, r.client, r.ds, runID, runErr)
}

func (r *BigQueryRunRepository) InsertRiskProfiles(ctx context.Context, rows []*RiskProfileRow) error {
	return InsertRiskProfilesWithClient(ctx, r.client, r.ds, rows)
}

func (r *BigQueryRunRepository) ListRiskProfiles(ctx context.Context, runID string) ([]*RiskProfileRow, error) {
	return ListRiskProfilesWithClient(ctx, r.client, r.ds, runID)
}

func (r *BigQueryRunRepository) LatestSuccessfulRun(ctx context.Context) (*ScoringRunRow, error) {
	return LatestSuccessfulRunWithClient(ctx, r.client, r.ds)
}
