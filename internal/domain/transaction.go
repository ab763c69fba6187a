package domain

import (
	"fmt"
	"math"
)

// Transaction represents one normalized reimbursement record.
// This is the canonical row produced by ingest.Normalize; every downstream
// component reads these fields and never the raw source columns.
type Transaction struct {
	LegislatorName  string // from "txNomeParlamentar" / "nomeParlamentar"
	LegislatorTaxID string // from "cpf", empty when the column is absent

	PayeeName  string // from "txtFornecedor" / "fornecedor"
	PayeeTaxID string // from "txtCNPJCPF", empty when unknown

	Amount   float64 // from "vlrLiquido" / "vlrDocumento"; NaN when the cell is null or not a number
	Category string  // from "txtDescricao"

	Party  string // from "sgPartido"
	Region string // from "sgUF"

	Year  int // from "numAno"
	Month int // from "numMes"
}

// MonthKey returns the "YYYY-MM" label used by the monthly breakdowns.
func (t Transaction) MonthKey() string {
	return fmt.Sprintf("%d-%02d", t.Year, t.Month)
}

// HasAmount reports whether Amount is a finite value that can be summed.
func (t Transaction) HasAmount() bool {
	return !math.IsNaN(t.Amount) && !math.IsInf(t.Amount, 0)
}
