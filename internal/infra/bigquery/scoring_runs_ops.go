package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// ErrRunNotFound is returned when no scoring run matches a lookup.
var ErrRunNotFound = errors.New("scoring run not found")

const maxErrorMessageLen = 2000

// StartScoringRunWithClient inserts a scoring_runs row with status=RUNNING.
// A run id is generated when row.RunID is empty; the id is returned either way.
func StartScoringRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *ScoringRunRow) (string, error) {
	runID := row.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := row.StartedTS
	if started.IsZero() {
		started = time.Now()
	}
	metadata := "{}"
	if row.Metadata.Valid {
		metadata = row.Metadata.JSONVal
	}

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			started_ts,
			status,
			source_uri,
			source_sha256,
			metadata
		)
		VALUES (
			@run_id,
			@started_ts,
			@status,
			@source_uri,
			@source_sha256,
			PARSE_JSON(@metadata)
		)
	`, ds.table(scoringRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: StatusRunning},
		{Name: "source_uri", Value: row.SourceURI},
		{Name: "source_sha256", Value: row.SourceSHA256},
		{Name: "metadata", Value: metadata},
	}

	if err := runAndWait(ctx, q); err != nil {
		return "", fmt.Errorf("StartScoringRun: %w", err)
	}
	return runID, nil
}

// RunSummary is recorded on a run when it succeeds.
type RunSummary struct {
	ProfileCount int
	SourceSHA256 string
}

// MarkScoringRunSucceededWithClient sets status=SUCCESS, finished_ts, the
// number of profiles written and the digest of the source that was scored.
func MarkScoringRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, summary RunSummary) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    profile_count = @profile_count,
		    source_sha256 = @source_sha256,
		    error_message = ""
		WHERE run_id = @run_id
	`, ds.table(scoringRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "profile_count", Value: summary.ProfileCount},
		{Name: "source_sha256", Value: summary.SourceSHA256},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkScoringRunSucceeded: %w", err)
	}
	return nil
}

// MarkScoringRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned.
func MarkScoringRunFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, ds.table(scoringRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runAndWait(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str(logger.FieldRunID, runID).
			Msg("MarkScoringRunFailed: update failed")
	}
}

// LatestSuccessfulRunWithClient returns the most recently finished run with
// status=SUCCESS, or ErrRunNotFound.
func LatestSuccessfulRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) (*ScoringRunRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			started_ts,
			finished_ts,
			status,
			error_message,
			source_uri,
			source_sha256,
			profile_count,
			metadata
		FROM %s
		WHERE status = @status
		ORDER BY finished_ts DESC
		LIMIT 1
	`, ds.table(scoringRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LatestSuccessfulRun: query read: %w", err)
	}

	var row ScoringRunRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("LatestSuccessfulRun: iter next: %w", err)
	}
	return &row, nil
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
