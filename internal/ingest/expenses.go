package ingest

import (
	"fmt"
	"math"

	"github.com/dvloznov/ceap-risk/internal/domain"
)

// Canonical column names. Source headers are mapped onto these once, here,
// and nothing downstream looks at raw header names.
const (
	ColLegislator      = "legislator"
	ColLegislatorTaxID = "legislator_tax_id"
	ColPayee           = "payee"
	ColPayeeTaxID      = "payee_tax_id"
	ColAmount          = "amount"
	ColCategory        = "category"
	ColParty           = "party"
	ColRegion          = "region"
	ColYear            = "year"
	ColMonth           = "month"
)

// expenseAliases lists the accepted source headers per canonical column,
// in order of preference.
var expenseAliases = map[string][]string{
	ColLegislator:      {"txNomeParlamentar", "nomeParlamentar"},
	ColLegislatorTaxID: {"cpf"},
	ColPayee:           {"txtFornecedor", "fornecedor"},
	ColPayeeTaxID:      {"txtCNPJCPF"},
	ColAmount:          {"vlrLiquido", "vlrDocumento"},
	ColCategory:        {"txtDescricao"},
	ColParty:           {"sgPartido"},
	ColRegion:          {"sgUF"},
	ColYear:            {"numAno"},
	ColMonth:           {"numMes"},
}

// requiredExpenseColumns must resolve or the source is rejected.
var requiredExpenseColumns = []string{ColLegislator, ColAmount, ColYear, ColMonth}

// RowStats counts data quality findings collected while normalizing.
type RowStats struct {
	SourceRows        int
	LeadershipDropped int
	NullLegislator    int
	NullAmount        int
	UnparsedAmount    int
	NegativeAmount    int
	EmptyPayeeTaxID   int
	InvalidMonth      int
	MinYear           int
	MaxYear           int
}

// Expenses is the normalized expense source.
type Expenses struct {
	Transactions []domain.Transaction
	Columns      map[string]bool
	// Resolved maps canonical column to the source header that was used.
	Resolved map[string]string
	Stats    RowStats
}

// ResolveExpenseColumns maps every canonical column to its source header.
// Missing required columns are reported together, wrapping ErrMissingColumn.
func ResolveExpenseColumns(t *Table) (map[string]string, error) {
	resolved := make(map[string]string, len(expenseAliases))
	for col, aliases := range expenseAliases {
		if h, ok := t.Resolve(aliases...); ok {
			resolved[col] = h
		}
	}

	var missing []string
	for _, col := range requiredExpenseColumns {
		if _, ok := resolved[col]; !ok {
			missing = append(missing, describeAliases(expenseAliases[col]))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("ResolveExpenseColumns: %w: %v", ErrMissingColumn, missing)
	}
	return resolved, nil
}

func describeAliases(aliases []string) string {
	if len(aliases) == 1 {
		return aliases[0]
	}
	out := aliases[0]
	for _, a := range aliases[1:] {
		out += " or " + a
	}
	return out
}

// NormalizeExpenses converts the raw expense table into canonical
// transactions. When the legislator tax id column exists, rows with a blank
// tax id are party-leadership entries and are dropped.
func NormalizeExpenses(t *Table) (*Expenses, error) {
	resolved, err := ResolveExpenseColumns(t)
	if err != nil {
		return nil, fmt.Errorf("NormalizeExpenses: %w", err)
	}

	out := &Expenses{
		Transactions: make([]domain.Transaction, 0, t.Len()),
		Columns:      make(map[string]bool, len(resolved)),
		Resolved:     resolved,
	}
	for col := range resolved {
		out.Columns[col] = true
	}

	cell := func(row []string, col string) string {
		h, ok := resolved[col]
		if !ok {
			return ""
		}
		return t.Cell(row, h)
	}

	stats := &out.Stats
	stats.SourceRows = t.Len()
	filterLeadership := out.Columns[ColLegislatorTaxID]
	checkPayeeTaxID := out.Columns[ColPayeeTaxID]
	yearSeen := false

	for _, row := range t.Rows {
		legislatorTaxID := cleanText(cell(row, ColLegislatorTaxID))
		if filterLeadership && legislatorTaxID == "" {
			stats.LeadershipDropped++
			continue
		}

		amount, ok := parseFloat(cell(row, ColAmount))
		if !ok {
			stats.UnparsedAmount++
		}
		year, _ := parseInt(cell(row, ColYear))
		month, _ := parseInt(cell(row, ColMonth))

		tx := domain.Transaction{
			LegislatorName:  cleanText(cell(row, ColLegislator)),
			LegislatorTaxID: legislatorTaxID,
			PayeeName:       cleanText(cell(row, ColPayee)),
			PayeeTaxID:      cleanText(cell(row, ColPayeeTaxID)),
			Amount:          amount,
			Category:        cleanText(cell(row, ColCategory)),
			Party:           cleanText(cell(row, ColParty)),
			Region:          cleanText(cell(row, ColRegion)),
			Year:            year,
			Month:           month,
		}

		switch {
		case math.IsNaN(tx.Amount):
			stats.NullAmount++
		case tx.Amount < 0:
			stats.NegativeAmount++
		}
		if tx.LegislatorName == "" {
			stats.NullLegislator++
		}
		if checkPayeeTaxID && tx.PayeeTaxID == "" {
			stats.EmptyPayeeTaxID++
		}
		if tx.Month < 1 || tx.Month > 12 {
			stats.InvalidMonth++
		}
		if tx.Year != 0 {
			if !yearSeen || tx.Year < stats.MinYear {
				stats.MinYear = tx.Year
			}
			if !yearSeen || tx.Year > stats.MaxYear {
				stats.MaxYear = tx.Year
			}
			yearSeen = true
		}

		out.Transactions = append(out.Transactions, tx)
	}
	return out, nil
}
