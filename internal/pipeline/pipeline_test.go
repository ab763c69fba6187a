package pipeline_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/ceap-risk/internal/briefing"
	"github.com/dvloznov/ceap-risk/internal/config"
	infra "github.com/dvloznov/ceap-risk/internal/infra/bigquery"
	"github.com/dvloznov/ceap-risk/internal/ingest"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// MockStorageService serves sources from memory and records uploads.
type MockStorageService struct {
	Files   map[string]string
	Uploads []string
}

func (m *MockStorageService) Open(ctx context.Context, uri string) (*storage.Object, error) {
	content, ok := m.Files[uri]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", uri, fs.ErrNotExist)
	}
	return &storage.Object{
		ReadCloser: io.NopCloser(strings.NewReader(content)),
		URI:        uri,
		Size:       int64(len(content)),
		Updated:    fixedNow.Add(-24 * time.Hour),
	}, nil
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	m.Uploads = append(m.Uploads, storage.GCSURI(bucketName, objectName))
	return nil
}

// MockRunRepository records warehouse calls.
type MockRunRepository struct {
	Started   []*infra.ScoringRunRow
	Succeeded []infra.RunSummary
	Failed    []error
	Inserted  []*infra.RiskProfileRow
}

func (m *MockRunRepository) StartScoringRun(ctx context.Context, row *infra.ScoringRunRow) (string, error) {
	m.Started = append(m.Started, row)
	return row.RunID, nil
}

func (m *MockRunRepository) MarkScoringRunSucceeded(ctx context.Context, runID string, summary infra.RunSummary) error {
	m.Succeeded = append(m.Succeeded, summary)
	return nil
}

func (m *MockRunRepository) MarkScoringRunFailed(ctx context.Context, runID string, runErr error) {
	m.Failed = append(m.Failed, runErr)
}

func (m *MockRunRepository) InsertRiskProfiles(ctx context.Context, rows []*infra.RiskProfileRow) error {
	m.Inserted = append(m.Inserted, rows...)
	return nil
}

func (m *MockRunRepository) ListRiskProfiles(ctx context.Context, runID string) ([]*infra.RiskProfileRow, error) {
	return m.Inserted, nil
}

func (m *MockRunRepository) LatestSuccessfulRun(ctx context.Context) (*infra.ScoringRunRow, error) {
	return nil, infra.ErrRunNotFound
}

// MockBriefer returns one canned briefing per profile. When Cancel is set it
// is called before returning, as if the run was interrupted mid-briefing.
type MockBriefer struct {
	Err    error
	Cancel context.CancelFunc
}

func (m *MockBriefer) Brief(ctx context.Context, profiles []*risk.LegislatorProfile) ([]briefing.Briefing, error) {
	if m.Cancel != nil {
		m.Cancel()
		return nil, ctx.Err()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]briefing.Briefing, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, briefing.Briefing{LegislatorID: p.ID, Name: p.Name, Summary: "summary"})
	}
	return out, nil
}

const expenseHeader = "txNomeParlamentar,cpf,txtFornecedor,txtCNPJCPF,vlrLiquido,txtDescricao,sgPartido,sgUF,numAno,numMes\n"

func expensesCSV() string {
	var b strings.Builder
	b.WriteString(expenseHeader)
	legislators := []struct{ name, cpf, party, uf string }{
		{"Ana Lima", "11111111111", "PA", "SP"},
		{"Bruno Costa", "22222222222", "PA", "SP"},
		{"Carla Dias", "33333333333", "PB", "RJ"},
	}
	for _, l := range legislators {
		for i := 0; i < 25; i++ {
			fmt.Fprintf(&b, "%s,%s,FORNECEDOR %02d,%014d,2500.50,COMBUSTÍVEIS E LUBRIFICANTES.,%s,%s,2024,%d\n",
				l.name, l.cpf, i, i, l.party, l.uf, i%12+1)
		}
	}
	// Party leadership row, no legislator tax id.
	b.WriteString("LIDERANÇA DO PA,,FORNECEDOR X,00000000000100,900.00,PASSAGEM AÉREA,PA,DF,2024,5\n")
	return b.String()
}

func sources() config.Sources {
	return config.Sources{
		Expenses:      "despesas.csv",
		Concentration: "hhi.csv",
		FraudMatrix:   "fraud.csv",
		Mismatches:    "gs://ceap-data/mismatch.csv",
	}
}

func newStorage(expenses string) *MockStorageService {
	return &MockStorageService{Files: map[string]string{
		"despesas.csv": expenses,
		"hhi.csv":      "Deputado,HHI,Nivel_Concentracao\nAna Lima,3200,muito alto\n",
		"gs://ceap-data/mismatch.csv": "cnpj,fornecedor,razao_social,categoria,cnae_principal,valor_total,num_transacoes,num_deputados,motivo,uf\n" +
			"1,A,A LTDA,PASSAGEM AÉREA,5611-2/01,100.5,2,1,restaurant billed as airfare,SP\n" +
			"2,B,B LTDA,COMBUSTÍVEIS,4781-4/00,900,5,2,clothing store billed as fuel,RJ\n",
	}}
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

func newDeps(t *testing.T, store *MockStorageService) (pipeline.Deps, string) {
	t.Helper()
	dir := t.TempDir()
	return pipeline.Deps{
		Sources: sources(),
		Storage: store,
		Engine:  risk.NewEngine(risk.DefaultParams(), risk.WithWorkers(2)),
		Writer:  report.NewWriter(dir, store, "", "", zerolog.Nop()),
		Clock:   func() time.Time { return fixedNow },
	}, dir
}

func TestRunner_LocalRun(t *testing.T) {
	expenses := expensesCSV()
	deps, dir := newDeps(t, newStorage(expenses))
	runner := pipeline.NewRunner(deps)

	assert.Equal(t, []string{
		pipeline.StepLoadSources,
		pipeline.StepValidateExpenses,
		pipeline.StepBuildAggregations,
		pipeline.StepScoreLegislators,
		pipeline.StepMapFraudFlags,
		pipeline.StepMapMismatches,
		pipeline.StepBuildManifest,
		pipeline.StepValidateOutputs,
		pipeline.StepWriteOutputs,
	}, runner.Steps())

	state, err := runner.Run(testContext(), "run-1")
	require.NoError(t, err)

	require.Len(t, state.Result.Profiles, 3)
	ana := state.Result.Profiles[0]
	assert.Equal(t, "Ana Lima", ana.Name)
	assert.Equal(t, risk.TierCritical, ana.Concentration.Tier)
	assert.True(t, state.Result.Profiles[1].Concentration.Defaulted)

	assert.Equal(t, []string{
		"Auxiliary file not found: fraud.csv",
		"Dropped 1 party leadership records without legislator tax id",
		"2 legislators have no concentration index; neutral default 1500 used",
	}, state.Warnings)

	sum := sha256.Sum256([]byte(expenses))
	assert.Equal(t, hex.EncodeToString(sum[:]), state.Source.SHA256)
	assert.Equal(t, "despesas.csv", state.Manifest.SourceData.File)
	assert.Equal(t, "run-1", state.Manifest.RunID)
	assert.Equal(t, state.Warnings, state.Manifest.ValidationNotes)
	assert.Equal(t, 75, state.Aggregations.Meta.TotalTransactions)

	require.Len(t, state.Mismatches, 2)
	assert.Equal(t, "2", state.Mismatches[0].CNPJ)
	assert.Empty(t, state.FraudFlags)

	require.Len(t, state.Written, 5)
	for _, name := range []string{report.FileAggregations, report.FileDeputies, report.FileFraudFlags, report.FileMismatches, report.FileManifest} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	f, err := os.Open(filepath.Join(dir, report.FileManifest))
	require.NoError(t, err)
	defer f.Close()
	manifest, err := report.ReadManifest(f)
	require.NoError(t, err)
	assert.Equal(t, 3, manifest.OutputFiles[report.FileDeputies].RecordCount)
	assert.Equal(t, report.Period{Start: "2024-01", End: "2024-12"}, manifest.SourceData.Period)
}

func TestRunner_MissingRequiredColumnMarksRunFailed(t *testing.T) {
	csv := strings.ReplaceAll(expensesCSV(), ",numMes\n", ",mes\n")
	store := newStorage(csv)
	deps, dir := newDeps(t, store)
	repo := &MockRunRepository{}
	deps.Repo = repo

	state, err := pipeline.NewRunner(deps).Run(testContext(), "run-bad")

	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrMissingColumn)
	assert.Contains(t, err.Error(), "validate_expenses")
	require.Len(t, repo.Started, 1)
	require.Len(t, repo.Failed, 1)
	assert.ErrorIs(t, repo.Failed[0], ingest.ErrMissingColumn)
	assert.Empty(t, repo.Inserted)
	assert.Empty(t, repo.Succeeded)
	assert.Nil(t, state.Result)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_MissingExpenseSourceIsFatal(t *testing.T) {
	store := newStorage("")
	delete(store.Files, "despesas.csv")
	deps, _ := newDeps(t, store)

	_, err := pipeline.NewRunner(deps).Run(testContext(), "")

	require.Error(t, err)
	assert.True(t, storage.IsNotExist(err))
	assert.Contains(t, err.Error(), "load_sources")
}

func TestRunner_WarehouseAndBriefing(t *testing.T) {
	store := newStorage(expensesCSV())
	deps, dir := newDeps(t, store)
	repo := &MockRunRepository{}
	deps.Repo = repo
	deps.Briefer = &MockBriefer{}

	runner := pipeline.NewRunner(deps)
	steps := runner.Steps()
	assert.Equal(t, pipeline.StepStartRun, steps[0])
	assert.Equal(t, pipeline.StepPersistWarehouse, steps[len(steps)-2])
	assert.Equal(t, pipeline.StepBriefing, steps[len(steps)-1])

	state, err := runner.Run(testContext(), "run-42")
	require.NoError(t, err)

	require.Len(t, repo.Started, 1)
	assert.Equal(t, "run-42", repo.Started[0].RunID)
	assert.Equal(t, "despesas.csv", repo.Started[0].SourceURI)
	assert.True(t, repo.Started[0].Metadata.Valid)

	require.Len(t, repo.Inserted, 3)
	assert.Equal(t, "run-42", repo.Inserted[0].RunID)
	assert.Equal(t, "Ana Lima", repo.Inserted[0].Name)
	require.Len(t, repo.Succeeded, 1)
	assert.Equal(t, 3, repo.Succeeded[0].ProfileCount)
	assert.Equal(t, state.Source.SHA256, repo.Succeeded[0].SourceSHA256)
	assert.Empty(t, repo.Failed)

	require.Len(t, state.Briefings, 3)
	_, err = os.Stat(filepath.Join(dir, report.FileBriefings))
	assert.NoError(t, err)
}

func TestRunner_BriefingFailureIsWarning(t *testing.T) {
	deps, dir := newDeps(t, newStorage(expensesCSV()))
	deps.Briefer = &MockBriefer{Err: errors.New("model unavailable")}

	state, err := pipeline.NewRunner(deps).Run(testContext(), "run-2")

	require.NoError(t, err)
	assert.Contains(t, state.Warnings, "Briefing incomplete: model unavailable")
	_, statErr := os.Stat(filepath.Join(dir, report.FileBriefings))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_BriefingCancelledKeepsRunSucceeded(t *testing.T) {
	deps, dir := newDeps(t, newStorage(expensesCSV()))
	repo := &MockRunRepository{}
	deps.Repo = repo
	ctx, cancel := context.WithCancel(testContext())
	defer cancel()
	deps.Briefer = &MockBriefer{Cancel: cancel}

	state, err := pipeline.NewRunner(deps).Run(ctx, "run-5")

	require.NoError(t, err)
	require.Len(t, repo.Succeeded, 1)
	assert.Empty(t, repo.Failed)
	assert.Contains(t, state.Warnings, "Briefing cancelled: context canceled")
	assert.Empty(t, state.Briefings)
	_, statErr := os.Stat(filepath.Join(dir, report.FileBriefings))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_UploadsWhenBucketConfigured(t *testing.T) {
	store := newStorage(expensesCSV())
	deps, dir := newDeps(t, store)
	deps.Writer = report.NewWriter(dir, store, "ceap-public", "snapshots/2025-06-01", zerolog.Nop())

	state, err := pipeline.NewRunner(deps).Run(testContext(), "run-3")

	require.NoError(t, err)
	assert.Len(t, state.Written, 10)
	assert.Contains(t, store.Uploads, "gs://ceap-public/snapshots/2025-06-01/deputies.json")
}

func TestRunner_CancelledContext(t *testing.T) {
	deps, _ := newDeps(t, newStorage(expensesCSV()))
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, err := pipeline.NewRunner(deps).Run(ctx, "run-4")

	assert.ErrorIs(t, err, context.Canceled)
}
