package bigquery

import "fmt"

const (
	scoringRunsTable  = "scoring_runs"
	riskProfilesTable = "risk_profiles"
)

// Scoring run statuses.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Dataset names the project and dataset that hold the warehouse tables.
type Dataset struct {
	Project string
	ID      string
}

// table returns the fully qualified, backquoted table name.
func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.Project, d.ID, name)
}
