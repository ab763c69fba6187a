package ingest

import "fmt"

// Year bounds outside of which the source is flagged as unusual.
const (
	minPlausibleYear = 2000
	maxPlausibleYear = 2030
)

// Report collects validation findings. Errors block scoring; warnings
// never do.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether there are no blocking errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateTable runs the structural checks on a raw expense table: every
// required column must resolve through its aliases.
func ValidateTable(t *Table) Report {
	var r Report
	if t.Len() == 0 {
		r.warnf("Expense source is empty")
	}
	for _, col := range requiredExpenseColumns {
		if _, ok := t.Resolve(expenseAliases[col]...); !ok {
			r.Errors = append(r.Errors, fmt.Sprintf("Missing required column: %s", describeAliases(expenseAliases[col])))
		}
	}
	return r
}

// Validate runs the data quality checks over normalized expenses. Every
// finding is a warning.
func Validate(e *Expenses) Report {
	var r Report
	s := e.Stats
	rows := len(e.Transactions)

	if s.LeadershipDropped > 0 {
		r.warnf("Dropped %d party leadership records without legislator tax id", s.LeadershipDropped)
	}
	if s.NegativeAmount > 0 {
		r.warnf("Found %d negative values in %s", s.NegativeAmount, e.Resolved[ColAmount])
	}
	if s.NullLegislator > 0 {
		r.warnf("Found %d null values in %s (%.1f%%)", s.NullLegislator, e.Resolved[ColLegislator], pct(s.NullLegislator, rows))
	}
	if s.NullAmount > 0 {
		r.warnf("Found %d null values in %s (%.1f%%)", s.NullAmount, e.Resolved[ColAmount], pct(s.NullAmount, rows))
	}
	if s.UnparsedAmount > 0 {
		r.warnf("Found %d unparseable values in %s", s.UnparsedAmount, e.Resolved[ColAmount])
	}
	if s.MinYear != 0 && (s.MinYear < minPlausibleYear || s.MaxYear > maxPlausibleYear) {
		r.warnf("Unusual year range: %d-%d", s.MinYear, s.MaxYear)
	}
	if s.InvalidMonth > 0 {
		r.warnf("Found %d records with invalid month values", s.InvalidMonth)
	}
	if s.EmptyPayeeTaxID > 0 {
		r.warnf("Found %d records with empty payee tax id (%.1f%%)", s.EmptyPayeeTaxID, pct(s.EmptyPayeeTaxID, rows))
	}
	return r
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
