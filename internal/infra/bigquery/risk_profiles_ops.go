package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// insertBatchSize bounds the rows sent per streaming insert request.
const insertBatchSize = 500

// InsertRiskProfilesWithClient streams rows into risk_profiles in batches.
func InsertRiskProfilesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*RiskProfileRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(ds.Project, ds.ID).Table(riskProfilesTable).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertRiskProfiles: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// ListRiskProfilesWithClient returns the profiles of one run ordered by
// legislator id.
func ListRiskProfilesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string) ([]*RiskProfileRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			legislator_id,
			snapshot_date,
			name,
			party,
			region,
			total_spending,
			transaction_count,
			hhi_value,
			hhi_tier,
			hhi_defaulted,
			benford_chi2,
			benford_p_value,
			benford_significant,
			round_value_pct,
			risk_score,
			risk_level,
			red_flags,
			z_score_party,
			z_score_region,
			created_ts
		FROM %s
		WHERE run_id = @run_id
		ORDER BY legislator_id
	`, ds.table(riskProfilesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRiskProfiles: query read: %w", err)
	}

	var rows []*RiskProfileRow
	for {
		var r RiskProfileRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRiskProfiles: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
