package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	bigquerylib "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ceap-risk/internal/domain"
	infra "github.com/dvloznov/ceap-risk/internal/infra/bigquery"
	"github.com/dvloznov/ceap-risk/internal/ingest"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/metrics"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/storage"
)

// PipelineStep represents a single step in the scoring pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// StartRunStep records the run in the warehouse with status=RUNNING.
type StartRunStep struct{ deps *Deps }

func (s *StartRunStep) Name() string { return StepStartRun }

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	metadata, err := json.Marshal(map[string]string{
		"expenses":      s.deps.Sources.Expenses,
		"hhi":           s.deps.Sources.Concentration,
		"fraud":         s.deps.Sources.FraudMatrix,
		"mismatches":    s.deps.Sources.Mismatches,
		"enrichment":    s.deps.Sources.Enrichment,
		"paramsVersion": report.ManifestVersion,
	})
	if err != nil {
		return fmt.Errorf("StartRun: encoding metadata: %w", err)
	}

	runID, err := s.deps.Repo.StartScoringRun(ctx, &infra.ScoringRunRow{
		RunID:     state.RunID,
		StartedTS: state.StartedAt,
		SourceURI: s.deps.Sources.Expenses,
		Metadata:  bigquerylib.NullJSON{JSONVal: string(metadata), Valid: true},
	})
	if err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	state.RunID = runID
	state.runStarted = true
	return nil
}

// LoadSourcesStep reads the expense source and the optional auxiliary tables.
// Only a missing or unreadable expense source is fatal.
type LoadSourcesStep struct{ deps *Deps }

func (s *LoadSourcesStep) Name() string { return StepLoadSources }

func (s *LoadSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	t, info, err := readTable(ctx, s.deps.Storage, s.deps.Sources.Expenses)
	if err != nil {
		return fmt.Errorf("LoadSources: expenses: %w", err)
	}
	state.Table = t
	state.Source = info
	state.Dataset = &domain.Dataset{}
	state.Log.Info().
		Str("source", s.deps.Sources.Expenses).
		Int("rows", t.Len()).
		Str("sha256", info.SHA256).
		Msg("Loaded expense source")

	if aux := s.readAuxiliary(ctx, state, s.deps.Sources.Concentration); aux != nil {
		state.Dataset.Concentration = ingest.ReadConcentration(aux)
	}
	if aux := s.readAuxiliary(ctx, state, s.deps.Sources.FraudMatrix); aux != nil {
		state.Dataset.FraudFeatures = ingest.ReadFraudMatrix(aux)
	}
	if aux := s.readAuxiliary(ctx, state, s.deps.Sources.Mismatches); aux != nil {
		state.Dataset.Mismatches = ingest.ReadMismatches(aux)
	}
	if aux := s.readAuxiliary(ctx, state, s.deps.Sources.Enrichment); aux != nil {
		state.Dataset.Enrichment = ingest.ReadEnrichment(aux)
	}
	return nil
}

// readAuxiliary returns nil, with a warning, when the table cannot be read.
func (s *LoadSourcesStep) readAuxiliary(ctx context.Context, state *PipelineState, uri string) *ingest.Table {
	if uri == "" {
		return nil
	}
	t, _, err := readTable(ctx, s.deps.Storage, uri)
	if err != nil {
		if storage.IsNotExist(err) {
			state.warn(stageSources, fmt.Sprintf("Auxiliary file not found: %s", uri))
		} else {
			state.warn(stageSources, fmt.Sprintf("Could not read auxiliary file %s: %v", uri, err))
		}
		return nil
	}
	return t
}

func readTable(ctx context.Context, svc storage.Service, uri string) (*ingest.Table, report.SourceInfo, error) {
	obj, err := svc.Open(ctx, uri)
	if err != nil {
		return nil, report.SourceInfo{}, err
	}
	defer obj.Close()

	digest := report.NewDigestReader(obj)
	t, err := ingest.ReadCSV(digest)
	if err != nil {
		return nil, report.SourceInfo{}, err
	}
	return t, report.SourceInfo{
		Name:     storage.BaseName(uri),
		SHA256:   digest.Sum(),
		Size:     digest.Size(),
		Modified: obj.Updated,
	}, nil
}

// ValidateExpensesStep checks the expense columns, normalizes the rows and
// runs the data quality checks. Missing required columns stop the run.
type ValidateExpensesStep struct{}

func (s *ValidateExpensesStep) Name() string { return StepValidateExpenses }

func (s *ValidateExpensesStep) Execute(ctx context.Context, state *PipelineState) error {
	structural := ingest.ValidateTable(state.Table)
	for _, w := range structural.Warnings {
		state.warn(stageStructure, w)
	}
	for _, e := range structural.Errors {
		state.Log.Error().Str(logger.FieldStep, stageStructure).Msg(e)
	}

	expenses, err := ingest.NormalizeExpenses(state.Table)
	if err != nil {
		return fmt.Errorf("ValidateExpenses: %w", err)
	}
	for _, w := range ingest.Validate(expenses).Warnings {
		state.warn(stageQuality, w)
	}

	state.Expenses = expenses
	state.Dataset.Transactions = expenses.Transactions
	state.Dataset.Columns = expenses.Columns
	state.Table = nil
	state.Log.Info().
		Int("transactions", len(expenses.Transactions)).
		Int("warnings", len(state.Warnings)).
		Msg("Expenses normalized")
	return nil
}

// BuildAggregationsStep summarizes every normalized transaction.
type BuildAggregationsStep struct{}

func (s *BuildAggregationsStep) Name() string { return StepBuildAggregations }

func (s *BuildAggregationsStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Aggregations = report.BuildAggregations(state.Dataset, state.StartedAt)
	return nil
}

// ScoreLegislatorsStep runs the two-pass risk engine.
type ScoreLegislatorsStep struct{ deps *Deps }

func (s *ScoreLegislatorsStep) Name() string { return StepScoreLegislators }

func (s *ScoreLegislatorsStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.deps.Engine.Score(ctx, state.Dataset)
	if err != nil {
		return fmt.Errorf("ScoreLegislators: %w", err)
	}
	state.Result = res

	counts := make(map[string]int)
	defaulted := 0
	for _, p := range res.Profiles {
		counts[p.RiskTier.String()]++
		if p.Concentration.Defaulted {
			defaulted++
		}
	}
	metrics.SetTierCounts(counts)
	if defaulted > 0 {
		state.warn(stageScoring, fmt.Sprintf("%d legislators have no concentration index; neutral default %.0f used", defaulted, s.deps.Engine.Params().ConcentrationDefault))
	}
	return nil
}

// MapFraudFlagsStep maps the pre-computed fraud matrix to flag records.
type MapFraudFlagsStep struct{}

func (s *MapFraudFlagsStep) Name() string { return StepMapFraudFlags }

func (s *MapFraudFlagsStep) Execute(ctx context.Context, state *PipelineState) error {
	state.FraudFlags = report.BuildFraudFlags(state.Dataset.FraudFeatures)
	return nil
}

// MapMismatchesStep flattens the activity mismatch table.
type MapMismatchesStep struct{}

func (s *MapMismatchesStep) Name() string { return StepMapMismatches }

func (s *MapMismatchesStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Mismatches = report.BuildMismatches(state.Dataset.Mismatches)
	return nil
}

// BuildManifestStep assembles the provenance record.
type BuildManifestStep struct{ deps *Deps }

func (s *BuildManifestStep) Name() string { return StepBuildManifest }

func (s *BuildManifestStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Manifest = report.BuildManifest(report.ManifestInput{
		RunID:       state.RunID,
		GeneratedAt: s.deps.now(),
		Source:      state.Source,
		Dataset:     state.Dataset,
		Deputies:    len(state.Result.Profiles),
		FraudFlags:  len(state.FraudFlags),
		Mismatches:  len(state.Mismatches),
		Params:      s.deps.Engine.Params(),
		Notes:       append([]string(nil), state.Warnings...),
	})
	return nil
}

// ValidateOutputsStep checks the documents before they are written. Findings
// are warnings and are added to the manifest.
type ValidateOutputsStep struct{ deps *Deps }

func (s *ValidateOutputsStep) Name() string { return StepValidateOutputs }

func (s *ValidateOutputsStep) Execute(ctx context.Context, state *PipelineState) error {
	issues := report.ValidateProfiles(state.Result.Profiles, s.deps.Engine.Params())
	issues = append(issues, report.ValidateAggregations(state.Aggregations)...)
	for _, issue := range issues {
		state.warn(stageOutput, issue)
		state.Manifest.ValidationNotes = append(state.Manifest.ValidationNotes, issue)
	}
	return nil
}

// WriteOutputsStep writes the JSON documents and uploads them when a bucket
// is configured.
type WriteOutputsStep struct{ deps *Deps }

func (s *WriteOutputsStep) Name() string { return StepWriteOutputs }

func (s *WriteOutputsStep) Execute(ctx context.Context, state *PipelineState) error {
	written, err := s.deps.Writer.Write(ctx, state.Bundle())
	state.Written = append(state.Written, written...)
	if err != nil {
		return fmt.Errorf("WriteOutputs: %w", err)
	}
	return nil
}

// PersistWarehouseStep stores the profiles and marks the run SUCCESS.
type PersistWarehouseStep struct{ deps *Deps }

func (s *PersistWarehouseStep) Name() string { return StepPersistWarehouse }

func (s *PersistWarehouseStep) Execute(ctx context.Context, state *PipelineState) error {
	profiles := state.Result.Profiles
	rows := infra.ProfileRows(state.RunID, civil.DateOf(state.StartedAt), s.deps.now(), profiles)
	if err := s.deps.Repo.InsertRiskProfiles(ctx, rows); err != nil {
		return fmt.Errorf("PersistWarehouse: %w", err)
	}
	summary := infra.RunSummary{ProfileCount: len(profiles), SourceSHA256: state.Source.SHA256}
	if err := s.deps.Repo.MarkScoringRunSucceeded(ctx, state.RunID, summary); err != nil {
		return fmt.Errorf("PersistWarehouse: %w", err)
	}
	state.runSucceeded = true
	return nil
}

// BriefingStep asks the briefer for summaries of the top profiles and writes
// them next to the other documents. Failures are warnings.
type BriefingStep struct{ deps *Deps }

func (s *BriefingStep) Name() string { return StepBriefing }

func (s *BriefingStep) Execute(ctx context.Context, state *PipelineState) error {
	briefings, err := s.deps.Briefer.Brief(ctx, state.Result.Profiles)
	if ctxErr := ctx.Err(); ctxErr != nil {
		state.warn(stageBriefing, fmt.Sprintf("Briefing cancelled: %v", ctxErr))
		return nil
	}
	if err != nil {
		state.warn(stageBriefing, fmt.Sprintf("Briefing incomplete: %v", err))
	}
	state.Briefings = briefings
	if len(briefings) == 0 {
		return nil
	}

	written, err := s.deps.Writer.WriteDocument(ctx, report.FileBriefings, briefings)
	state.Written = append(state.Written, written...)
	if err != nil {
		state.warn(stageBriefing, fmt.Sprintf("Could not write briefings: %v", err))
	}
	return nil
}
