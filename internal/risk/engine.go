package risk

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/dvloznov/ceap-risk/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// UnknownGroup is the party or region used when a legislator has none.
const UnknownGroup = "N/A"

// Result is the output of one scoring run.
type Result struct {
	Profiles    []*LegislatorProfile `json:"profiles"`
	PartyStats  map[string]PeerStats `json:"partyStats"`
	RegionStats map[string]PeerStats `json:"regionStats"`

	// Legislators seen in the source and how many the activity filter dropped.
	Legislators int `json:"legislators"`
	Excluded    int `json:"excluded"`
}

// Engine scores legislators in two passes: independent per-legislator
// profiling (parallel), then peer-group adjustment once every profile exists.
type Engine struct {
	params  Params
	workers int
	log     zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the pass-one fan-out. Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for pass summaries.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(params Params, opts ...Option) *Engine {
	e := &Engine{
		params:  params,
		workers: runtime.GOMAXPROCS(0),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the thresholds the engine scores with.
func (e *Engine) Params() Params {
	return e.params
}

// legislatorInput is the transaction subset and side signals of one legislator.
type legislatorInput struct {
	id            int
	name          string
	txs           []domain.Transaction
	concentration *concentrationLookup
	enrichment    *domain.Enrichment
}

// Score runs both passes over the dataset and returns profiles sorted by
// total spend, descending.
func (e *Engine) Score(ctx context.Context, ds *domain.Dataset) (*Result, error) {
	inputs := e.partition(ds)
	active := e.filterActive(inputs)

	e.log.Info().
		Int("legislators", len(inputs)).
		Int("active", len(active)).
		Int("excluded", len(inputs)-len(active)).
		Msg("Activity filter applied")

	// Pass 1: every legislator is independent. Each goroutine writes only
	// its own slot.
	profiles := make([]*LegislatorProfile, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	c := composer{params: e.params}
	for i, in := range active {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := e.profile(c, in)
			if err != nil {
				return err
			}
			profiles[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Score: first pass: %w", err)
	}

	// Barrier: peer statistics need every active profile.
	parties, regions := PeerGroups{}, PeerGroups{}
	for _, p := range profiles {
		parties.Add(p.Party, p.TotalSpend)
		regions.Add(p.Region, p.TotalSpend)
	}
	partyStats, regionStats := parties.Stats(), regions.Stats()

	// Pass 2.
	for _, p := range profiles {
		zParty := zScoreIn(partyStats, p.Party, p.TotalSpend)
		zRegion := zScoreIn(regionStats, p.Region, p.TotalSpend)
		if err := c.adjustForPeers(p, zParty, zRegion); err != nil {
			return nil, fmt.Errorf("Score: second pass: %w", err)
		}
		if err := c.finalize(p); err != nil {
			return nil, fmt.Errorf("Score: finalize: %w", err)
		}
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].TotalSpend != profiles[j].TotalSpend {
			return profiles[i].TotalSpend > profiles[j].TotalSpend
		}
		return profiles[i].Name < profiles[j].Name
	})

	e.logSummary(profiles)

	return &Result{
		Profiles:    profiles,
		PartyStats:  partyStats,
		RegionStats: regionStats,
		Legislators: len(inputs),
		Excluded:    len(inputs) - len(active),
	}, nil
}

// partition groups transactions by legislator. IDs follow name order so they
// are stable across runs over the same snapshot.
func (e *Engine) partition(ds *domain.Dataset) []legislatorInput {
	byName := make(map[string][]domain.Transaction)
	for _, tx := range ds.Transactions {
		if tx.LegislatorName == "" {
			continue
		}
		byName[tx.LegislatorName] = append(byName[tx.LegislatorName], tx)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	conc := make(map[string]*concentrationLookup, len(ds.Concentration))
	for _, row := range ds.Concentration {
		if _, dup := conc[row.LegislatorName]; dup {
			continue
		}
		conc[row.LegislatorName] = &concentrationLookup{index: row.Index, label: row.Label}
	}

	enrich := make(map[string]*domain.Enrichment, len(ds.Enrichment))
	for i := range ds.Enrichment {
		key := strings.ToLower(ds.Enrichment[i].Name)
		if _, dup := enrich[key]; dup {
			continue
		}
		enrich[key] = &ds.Enrichment[i]
	}

	inputs := make([]legislatorInput, len(names))
	for i, name := range names {
		inputs[i] = legislatorInput{
			id:            i + 1,
			name:          name,
			txs:           byName[name],
			concentration: conc[name],
			enrichment:    enrich[strings.ToLower(name)],
		}
	}
	return inputs
}

func (e *Engine) filterActive(inputs []legislatorInput) []legislatorInput {
	active := make([]legislatorInput, 0, len(inputs))
	for _, in := range inputs {
		if e.params.IsActive(sumAmounts(in.txs), len(in.txs)) {
			active = append(active, in)
		}
	}
	return active
}

// profile builds one legislator's profile and takes it through the
// base-scored and augmented states.
func (e *Engine) profile(c composer, in legislatorInput) (*LegislatorProfile, error) {
	amounts := make([]float64, len(in.txs))
	for i, tx := range in.txs {
		amounts[i] = tx.Amount
	}

	total := sumAmounts(in.txs)
	p := &LegislatorProfile{
		ID:               in.id,
		Name:             in.name,
		Party:            modeOf(in.txs, func(tx domain.Transaction) string { return tx.Party }, UnknownGroup),
		Region:           modeOf(in.txs, func(tx domain.Transaction) string { return tx.Region }, UnknownGroup),
		TotalSpend:       total,
		TransactionCount: len(in.txs),
		Concentration:    concentrationFor(in.concentration, e.params),
	}
	if p.TransactionCount > 0 {
		p.AvgTicket = total / float64(p.TransactionCount)
	}
	p.PayeeCount, p.PayeeTaxIDs = payeeIdentity(in.txs)
	p.TopPayees = topPayees(in.txs, total, e.params.TopPayeeCount)
	p.ByCategory = categoryBreakdown(in.txs, total)
	p.ByMonth = monthBreakdown(in.txs)
	applyEnrichment(p, in.enrichment)

	if err := c.scoreBase(p); err != nil {
		return nil, err
	}

	p.DigitTest = LeadingDigitTest(amounts, e.params)
	p.RoundValuePct = RoundValuePct(amounts)
	if err := c.augment(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) logSummary(profiles []*LegislatorProfile) {
	var byTier [4]int
	for _, p := range profiles {
		byTier[p.RiskTier]++
	}
	partyOutliers, regionOutliers := countOutliers(profiles, e.params.ZScoreThreshold)
	e.log.Info().
		Int("profiles", len(profiles)).
		Int("critical", byTier[TierCritical]).
		Int("high", byTier[TierHigh]).
		Int("party_outliers", partyOutliers).
		Int("region_outliers", regionOutliers).
		Msg("Scoring complete")
}

// countOutliers counts profiles spending above their peer groups. Spending
// below the peer mean never counts.
func countOutliers(profiles []*LegislatorProfile, threshold float64) (party, region int) {
	for _, p := range profiles {
		if p.ZScoreParty > threshold {
			party++
		}
		if p.ZScoreRegion > threshold {
			region++
		}
	}
	return party, region
}

// sumAmounts adds amounts, skipping missing values.
func sumAmounts(txs []domain.Transaction) float64 {
	total := 0.0
	for _, tx := range txs {
		if tx.HasAmount() {
			total += tx.Amount
		}
	}
	return total
}
