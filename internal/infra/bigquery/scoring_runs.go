package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

type ScoringRunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	SourceURI    string             `bigquery:"source_uri"`    // NULLABLE
	SourceSHA256 string             `bigquery:"source_sha256"` // NULLABLE
	ProfileCount bigquery.NullInt64 `bigquery:"profile_count"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}
