package risk

import (
	"sort"

	"github.com/dvloznov/ceap-risk/internal/domain"
)

// modeOf returns the most frequent non-empty value of field. Ties resolve
// to the lexicographically smallest value.
func modeOf(txs []domain.Transaction, field func(domain.Transaction) string, fallback string) string {
	counts := make(map[string]int)
	for _, tx := range txs {
		if v := field(tx); v != "" {
			counts[v]++
		}
	}
	return mostFrequent(counts, fallback)
}

func mostFrequent(counts map[string]int, fallback string) string {
	best, bestN := fallback, 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

// payeeIdentity returns the number of distinct payee names and the distinct
// payee tax ids in first-seen order.
func payeeIdentity(txs []domain.Transaction) (int, []string) {
	names := make(map[string]struct{})
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, tx := range txs {
		if tx.PayeeName != "" {
			names[tx.PayeeName] = struct{}{}
		}
		if tx.PayeeTaxID == "" {
			continue
		}
		if _, ok := seen[tx.PayeeTaxID]; ok {
			continue
		}
		seen[tx.PayeeTaxID] = struct{}{}
		ids = append(ids, tx.PayeeTaxID)
	}
	return len(names), ids
}

type payeeTotal struct {
	value float64
	ids   map[string]int
}

// topPayees ranks payees by total value and keeps the first n.
func topPayees(txs []domain.Transaction, total float64, n int) []PayeeShare {
	byName := make(map[string]*payeeTotal)
	for _, tx := range txs {
		if tx.PayeeName == "" {
			continue
		}
		pt, ok := byName[tx.PayeeName]
		if !ok {
			pt = &payeeTotal{ids: make(map[string]int)}
			byName[tx.PayeeName] = pt
		}
		if tx.HasAmount() {
			pt.value += tx.Amount
		}
		if tx.PayeeTaxID != "" {
			pt.ids[tx.PayeeTaxID]++
		}
	}

	shares := make([]PayeeShare, 0, len(byName))
	for name, pt := range byName {
		shares = append(shares, PayeeShare{
			Name:  name,
			TaxID: mostFrequent(pt.ids, ""),
			Value: pt.value,
			Pct:   percentOf(pt.value, total),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Value != shares[j].Value {
			return shares[i].Value > shares[j].Value
		}
		return shares[i].Name < shares[j].Name
	})
	if len(shares) > n {
		shares = shares[:n]
	}
	return shares
}

func categoryBreakdown(txs []domain.Transaction, total float64) []CategoryShare {
	idx := make(map[string]int)
	out := []CategoryShare{}
	for _, tx := range txs {
		if tx.Category == "" {
			continue
		}
		i, ok := idx[tx.Category]
		if !ok {
			i = len(out)
			idx[tx.Category] = i
			out = append(out, CategoryShare{Category: tx.Category})
		}
		if tx.HasAmount() {
			out[i].Value += tx.Amount
		}
		out[i].TransactionCount++
	}
	for i := range out {
		out[i].Pct = percentOf(out[i].Value, total)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func monthBreakdown(txs []domain.Transaction) []MonthSpend {
	idx := make(map[string]int)
	var out []MonthSpend
	for _, tx := range txs {
		key := tx.MonthKey()
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, MonthSpend{Month: key})
		}
		if tx.HasAmount() {
			out[i].Value += tx.Amount
		}
		out[i].TransactionCount++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func applyEnrichment(p *LegislatorProfile, en *domain.Enrichment) {
	p.MandateCount = 1
	if en == nil {
		return
	}
	p.Education = en.Education
	p.Profession = en.Profession
	p.BirthYear = en.BirthYear
	p.Age = en.Age
	if en.MandateCount > 0 {
		p.MandateCount = en.MandateCount
	}
	if en.TotalEvents > 0 {
		p.Attendance = &Attendance{
			TotalEvents:  en.TotalEvents,
			UniqueEvents: en.UniqueEvents,
			Rate:         en.AttendanceRate,
			Events2023:   en.Events2023,
			Events2024:   en.Events2024,
			Events2025:   en.Events2025,
		}
	}
}

func percentOf(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return v / total * 100
}
