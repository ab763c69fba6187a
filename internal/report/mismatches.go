package report

import (
	"sort"

	"github.com/dvloznov/ceap-risk/internal/domain"
)

// Mismatch is one supplier whose registered activity does not match the
// expense category it was reimbursed under.
type Mismatch struct {
	CNPJ             string  `json:"cnpj"`
	SupplierName     string  `json:"supplierName"`
	RazaoSocial      string  `json:"razaoSocial"`
	ExpenseCategory  string  `json:"expenseCategory"`
	CNAEPrincipal    string  `json:"cnaePrincipal"`
	TotalValue       float64 `json:"totalValue"`
	TransactionCount int     `json:"transactionCount"`
	DeputyCount      int     `json:"deputyCount"`
	Reason           string  `json:"reason"`
	UF               string  `json:"uf"`
}

// BuildMismatches flattens the mismatch table, largest total value first.
func BuildMismatches(rows []domain.MismatchRow) []Mismatch {
	out := make([]Mismatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, Mismatch{
			CNPJ:             r.TaxID,
			SupplierName:     r.SupplierName,
			RazaoSocial:      r.LegalName,
			ExpenseCategory:  r.ExpenseCategory,
			CNAEPrincipal:    r.ActivityCode,
			TotalValue:       r.TotalValue,
			TransactionCount: r.TransactionCount,
			DeputyCount:      r.LegislatorCount,
			Reason:           r.Reason,
			UF:               r.Region,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalValue > out[j].TotalValue })
	return out
}
