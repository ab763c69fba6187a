package ingest

import (
	"math"
	"strings"

	"github.com/dvloznov/ceap-risk/internal/domain"
)

// defaultConcentrationLabel matches the label written when the index is
// unknown upstream.
const defaultConcentrationLabel = "MEDIO"

// ReadConcentration maps the HHI table (Deputado, HHI, Nivel_Concentracao).
// Rows without a legislator are skipped; unparseable indexes are NaN so the
// engine falls back to its neutral default.
func ReadConcentration(t *Table) []domain.ConcentrationEntry {
	if !t.Has("Deputado") {
		return nil
	}
	out := make([]domain.ConcentrationEntry, 0, t.Len())
	for _, row := range t.Rows {
		name := cleanText(t.Cell(row, "Deputado"))
		if name == "" {
			continue
		}
		index, ok := parseFloat(t.Cell(row, "HHI"))
		if !ok {
			index = math.NaN()
		}
		label := strings.ToUpper(cleanText(t.Cell(row, "Nivel_Concentracao")))
		if label == "" {
			label = defaultConcentrationLabel
		}
		out = append(out, domain.ConcentrationEntry{LegislatorName: name, Index: index, Label: label})
	}
	return out
}

// ReadFraudMatrix maps the pre-computed fraud feature matrix. Missing
// numeric cells read as zero.
func ReadFraudMatrix(t *Table) []domain.FraudFeatureRow {
	out := make([]domain.FraudFeatureRow, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, domain.FraudFeatureRow{
			ID:             intOrZero(t.Cell(row, "id")),
			LegislatorName: cleanText(t.Cell(row, "Deputado")),
			Party:          cleanText(t.Cell(row, "Partido")),
			Region:         cleanText(t.Cell(row, "UF")),
			BenfordScore:   floatOrZero(t.Cell(row, "Score_Benford")),
			Chi2:           floatOrZero(t.Cell(row, "Chi2")),
			RoundPct:       floatOrZero(t.Cell(row, "Round_Pct")),
			HHI:            floatOrZero(t.Cell(row, "HHI")),
			TaxIDMismatch:  intOrZero(t.Cell(row, "CNPJ_Mismatches")),
			WeekendPct:     floatOrZero(t.Cell(row, "Weekend_Pct")),
			RiskScore:      floatOrZero(t.Cell(row, "Risk_Score_Final")),
			RiskCategory:   strings.ToUpper(cleanText(t.Cell(row, "Risk_Category"))),
		})
	}
	return out
}

// ReadMismatches maps the cross-registry activity mismatch table. Both the
// English and Portuguese header variants are accepted.
func ReadMismatches(t *Table) []domain.MismatchRow {
	col := func(aliases ...string) string {
		h, _ := t.Resolve(aliases...)
		return h
	}
	supplier := col("fornecedor_ceap", "fornecedor")
	category := col("expense_category", "categoria")
	total := col("total_value", "valor_total")
	count := col("transaction_count", "num_transacoes")
	legislators := col("deputy_count", "num_deputados")
	reason := col("reason", "motivo")

	out := make([]domain.MismatchRow, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, domain.MismatchRow{
			TaxID:            cleanText(t.Cell(row, "cnpj")),
			SupplierName:     cleanText(t.Cell(row, supplier)),
			LegalName:        cleanText(t.Cell(row, "razao_social")),
			ExpenseCategory:  cleanText(t.Cell(row, category)),
			ActivityCode:     cleanText(t.Cell(row, "cnae_principal")),
			TotalValue:       floatOrZero(t.Cell(row, total)),
			TransactionCount: intOrZero(t.Cell(row, count)),
			LegislatorCount:  intOrZero(t.Cell(row, legislators)),
			Reason:           cleanText(t.Cell(row, reason)),
			Region:           cleanText(t.Cell(row, "uf")),
		})
	}
	return out
}

// ReadEnrichment maps the biographic and attendance table. Rows are matched
// to legislators by name, case-insensitively, by the engine.
func ReadEnrichment(t *Table) []domain.Enrichment {
	if !t.Has("nome") {
		return nil
	}
	out := make([]domain.Enrichment, 0, t.Len())
	for _, row := range t.Rows {
		name := cleanText(t.Cell(row, "nome"))
		if name == "" {
			continue
		}
		out = append(out, domain.Enrichment{
			Name:           name,
			Education:      optionalText(t.Cell(row, "escolaridade")),
			Profession:     optionalText(t.Cell(row, "profissao")),
			BirthYear:      optionalInt(t.Cell(row, "birthYear")),
			Age:            optionalInt(t.Cell(row, "age")),
			MandateCount:   intOrZero(t.Cell(row, "mandateCount")),
			TotalEvents:    intOrZero(t.Cell(row, "totalEvents")),
			UniqueEvents:   intOrZero(t.Cell(row, "uniqueEvents")),
			AttendanceRate: floatOrZero(t.Cell(row, "avgAttendanceRate")),
			Events2023:     intOrZero(t.Cell(row, "attendance2023")),
			Events2024:     intOrZero(t.Cell(row, "attendance2024")),
			Events2025:     intOrZero(t.Cell(row, "attendance2025")),
		})
	}
	return out
}

func floatOrZero(s string) float64 {
	v, ok := parseFloat(s)
	if !ok || math.IsNaN(v) {
		return 0
	}
	return v
}

func intOrZero(s string) int {
	v, _ := parseInt(s)
	return v
}

func optionalText(s string) *string {
	if s = cleanText(s); s == "" {
		return nil
	}
	return &s
}

func optionalInt(s string) *int {
	v, ok := parseInt(s)
	if !ok {
		return nil
	}
	return &v
}
