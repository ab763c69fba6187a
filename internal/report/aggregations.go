package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/ceap-risk/internal/domain"
	"github.com/dvloznov/ceap-risk/internal/ingest"
)

// Period is an inclusive "YYYY-MM" month range.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Meta holds the headline totals of a snapshot.
type Meta struct {
	TotalTransactions int       `json:"totalTransactions"`
	TotalSpending     float64   `json:"totalSpending"`
	TotalDeputies     int       `json:"totalDeputies"`
	TotalSuppliers    int       `json:"totalSuppliers"`
	Period            Period    `json:"period"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

type MonthTotal struct {
	Month            string  `json:"month"`
	Value            float64 `json:"value"`
	TransactionCount int     `json:"transactionCount"`
}

type CategoryTotal struct {
	Category         string  `json:"category"`
	Value            float64 `json:"value"`
	TransactionCount int     `json:"transactionCount"`
	Pct              float64 `json:"pct"`
}

type PartyTotal struct {
	Party        string  `json:"party"`
	Value        float64 `json:"value"`
	DeputyCount  int     `json:"deputyCount"`
	AvgPerDeputy float64 `json:"avgPerDeputy"`
}

type StateTotal struct {
	UF           string  `json:"uf"`
	Value        float64 `json:"value"`
	DeputyCount  int     `json:"deputyCount"`
	AvgPerDeputy float64 `json:"avgPerDeputy"`
}

// Aggregations is the snapshot-wide summary written to aggregations.json.
type Aggregations struct {
	Meta       Meta            `json:"meta"`
	ByMonth    []MonthTotal    `json:"byMonth"`
	ByCategory []CategoryTotal `json:"byCategory"`
	ByParty    []PartyTotal    `json:"byParty"`
	ByState    []StateTotal    `json:"byState"`
}

// BuildAggregations reduces every normalized transaction, active or not,
// into the snapshot summary. now stamps Meta.LastUpdated.
func BuildAggregations(ds *domain.Dataset, now time.Time) *Aggregations {
	txs := ds.Transactions
	agg := &Aggregations{
		Meta: Meta{
			TotalTransactions: len(txs),
			LastUpdated:       now,
		},
		ByMonth:    []MonthTotal{},
		ByCategory: []CategoryTotal{},
		ByParty:    []PartyTotal{},
		ByState:    []StateTotal{},
	}
	if len(txs) == 0 {
		return agg
	}

	legislators := make(map[string]struct{})
	suppliers := make(map[string]struct{})
	byTaxID := ds.HasColumn(ingest.ColPayeeTaxID)
	minYear, maxYear := 0, 0

	months := make(map[string]*MonthTotal)
	categories := make(map[string]*CategoryTotal)
	parties := newGroupTotals()
	states := newGroupTotals()

	for _, tx := range txs {
		amount := tx.Amount
		if !tx.HasAmount() {
			amount = 0
		}
		agg.Meta.TotalSpending += amount

		if tx.LegislatorName != "" {
			legislators[tx.LegislatorName] = struct{}{}
		}
		supplier := tx.PayeeName
		if byTaxID {
			supplier = tx.PayeeTaxID
		}
		if supplier != "" {
			suppliers[supplier] = struct{}{}
		}
		if tx.Year != 0 {
			if minYear == 0 || tx.Year < minYear {
				minYear = tx.Year
			}
			if tx.Year > maxYear {
				maxYear = tx.Year
			}
		}

		key := tx.MonthKey()
		m, ok := months[key]
		if !ok {
			m = &MonthTotal{Month: key}
			months[key] = m
		}
		m.Value += amount
		m.TransactionCount++

		if tx.Category != "" {
			c, ok := categories[tx.Category]
			if !ok {
				c = &CategoryTotal{Category: tx.Category}
				categories[tx.Category] = c
			}
			c.Value += amount
			c.TransactionCount++
		}
		parties.add(tx.Party, tx.LegislatorName, amount)
		states.add(tx.Region, tx.LegislatorName, amount)
	}

	agg.Meta.TotalDeputies = len(legislators)
	agg.Meta.TotalSuppliers = len(suppliers)
	if minYear != 0 {
		agg.Meta.Period = Period{Start: fmt.Sprintf("%d-01", minYear), End: fmt.Sprintf("%d-12", maxYear)}
	}

	for _, m := range months {
		agg.ByMonth = append(agg.ByMonth, *m)
	}
	sort.Slice(agg.ByMonth, func(i, j int) bool { return agg.ByMonth[i].Month < agg.ByMonth[j].Month })

	categoryTotal := 0.0
	for _, c := range categories {
		categoryTotal += c.Value
	}
	for _, c := range categories {
		c.Pct = round2(percentOf(c.Value, categoryTotal))
		agg.ByCategory = append(agg.ByCategory, *c)
	}
	sort.Slice(agg.ByCategory, func(i, j int) bool {
		a, b := agg.ByCategory[i], agg.ByCategory[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.Category < b.Category
	})

	for _, g := range parties.sorted() {
		agg.ByParty = append(agg.ByParty, PartyTotal{Party: g.key, Value: g.value, DeputyCount: g.members(), AvgPerDeputy: g.avg()})
	}
	for _, g := range states.sorted() {
		agg.ByState = append(agg.ByState, StateTotal{UF: g.key, Value: g.value, DeputyCount: g.members(), AvgPerDeputy: g.avg()})
	}
	return agg
}

type groupTotal struct {
	key         string
	value       float64
	legislators map[string]struct{}
}

func (g *groupTotal) members() int {
	return len(g.legislators)
}

func (g *groupTotal) avg() float64 {
	if len(g.legislators) == 0 {
		return 0
	}
	return round2(g.value / float64(len(g.legislators)))
}

type groupTotals map[string]*groupTotal

func newGroupTotals() groupTotals {
	return make(groupTotals)
}

// add skips blank keys, matching how the source treats missing party or
// state cells.
func (gt groupTotals) add(key, legislator string, amount float64) {
	if key == "" {
		return
	}
	g, ok := gt[key]
	if !ok {
		g = &groupTotal{key: key, legislators: make(map[string]struct{})}
		gt[key] = g
	}
	g.value += amount
	if legislator != "" {
		g.legislators[legislator] = struct{}{}
	}
}

func (gt groupTotals) sorted() []*groupTotal {
	out := make([]*groupTotal, 0, len(gt))
	for _, g := range gt {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return out[i].key < out[j].key
	})
	return out
}

func percentOf(v, total float64) float64 {
	if total == 0 {
		return 0
	}
	return v / total * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
