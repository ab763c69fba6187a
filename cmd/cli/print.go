package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/risk"
)

// printSummary writes the run totals and the top highest-risk legislators.
func printSummary(w io.Writer, state *pipeline.PipelineState, top int) {
	profiles := state.Result.Profiles

	counts := map[risk.Tier]int{}
	for _, p := range profiles {
		counts[p.RiskTier]++
	}

	fmt.Fprintf(w, "\n=== Run %s ===\n", state.RunID)
	fmt.Fprintf(w, "Legislators: %d scored, %d below the activity threshold\n", len(profiles), state.Result.Excluded)
	fmt.Fprintf(w, "Tiers:       CRITICAL %d | HIGH %d | MEDIUM %d | LOW %d\n",
		counts[risk.TierCritical], counts[risk.TierHigh], counts[risk.TierMedium], counts[risk.TierLow])
	fmt.Fprintf(w, "Warnings:    %d\n", len(state.Warnings))
	for _, msg := range state.Warnings {
		fmt.Fprintf(w, "  - %s\n", msg)
	}

	ranked := rankByScore(profiles)
	if top > len(ranked) {
		top = len(ranked)
	}
	if top > 0 {
		fmt.Fprintf(w, "\n=== Top %d by risk score ===\n", top)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPARTY\tUF\tSCORE\tTIER\tSPEND")
		for _, p := range ranked[:top] {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%s\t%.2f\n", p.ID, p.Name, p.Party, p.Region, p.RiskScore, p.RiskTier, p.TotalSpend)
		}
		tw.Flush()
	}

	if len(state.Written) > 0 {
		fmt.Fprintln(w, "\n=== Written ===")
		for _, path := range state.Written {
			fmt.Fprintf(w, "  %s\n", path)
		}
	}
	fmt.Fprintln(w)
}

// rankByScore orders by score descending, keeping the spend order on ties.
func rankByScore(profiles []*risk.LegislatorProfile) []*risk.LegislatorProfile {
	out := append([]*risk.LegislatorProfile(nil), profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RiskScore > out[j].RiskScore
	})
	return out
}

// findProfile looks a legislator up by id, or by name when id is zero.
func findProfile(profiles []*risk.LegislatorProfile, id int, name string) *risk.LegislatorProfile {
	for _, p := range profiles {
		if id != 0 && p.ID == id {
			return p
		}
		if id == 0 && strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p
		}
	}
	return nil
}

// printProfile writes one profile with its evidence.
func printProfile(w io.Writer, p *risk.LegislatorProfile) {
	fmt.Fprintln(w, "\n=== Legislator ===")
	fmt.Fprintf(w, "ID:           %d\n", p.ID)
	fmt.Fprintf(w, "Name:         %s (%s-%s)\n", p.Name, p.Party, p.Region)
	fmt.Fprintf(w, "Spending:     %.2f over %d transactions (avg %.2f)\n", p.TotalSpend, p.TransactionCount, p.AvgTicket)
	fmt.Fprintf(w, "Suppliers:    %d\n", p.PayeeCount)
	fmt.Fprintf(w, "Risk:         %.2f %s\n", p.RiskScore, p.RiskTier)

	hhi := fmt.Sprintf("%.0f %s", p.Concentration.Value, p.Concentration.Tier)
	if p.Concentration.Defaulted {
		hhi += " (no index, neutral default)"
	}
	fmt.Fprintf(w, "HHI:          %s\n", hhi)
	fmt.Fprintf(w, "Benford:      chi2 %.2f, p %.2f, significant %t\n", p.DigitTest.Statistic, p.DigitTest.PValue, p.DigitTest.Significant)
	fmt.Fprintf(w, "Round values: %.1f%%\n", p.RoundValuePct)
	fmt.Fprintf(w, "Z-scores:     party %.2f, state %.2f\n", p.ZScoreParty, p.ZScoreRegion)

	fmt.Fprintf(w, "\n=== Red flags (%d) ===\n", len(p.RedFlags))
	for i, flag := range p.RedFlags {
		fmt.Fprintf(w, "%d. %s\n", i+1, flag)
	}

	if len(p.ScoreBreakdown) > 0 {
		fmt.Fprintln(w, "\n=== Score breakdown ===")
		for _, c := range p.ScoreBreakdown {
			fmt.Fprintf(w, "  %-15s +%.2f\n", c.Signal, c.Weight)
		}
	}

	if len(p.TopPayees) > 0 {
		fmt.Fprintln(w, "\n=== Top suppliers ===")
		for i, s := range p.TopPayees {
			fmt.Fprintf(w, "%d. %s %s: %.2f (%.1f%%)\n", i+1, s.Name, s.TaxID, s.Value, s.Pct)
		}
	}
	fmt.Fprintln(w)
}
