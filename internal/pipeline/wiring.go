package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/ceap-risk/internal/briefing"
	"github.com/dvloznov/ceap-risk/internal/config"
	infra "github.com/dvloznov/ceap-risk/internal/infra/bigquery"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/rs/zerolog"
)

// DepsFromConfig builds the production collaborators described by cfg. The
// returned close function releases every client that was opened.
func DepsFromConfig(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Deps, func() error, error) {
	store := storage.NewStore(nil)
	closers := []func() error{store.Close}
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	deps := Deps{
		Sources: cfg.Sources,
		Storage: store,
		Engine:  risk.NewEngine(risk.DefaultParams(), risk.WithWorkers(cfg.Engine.Workers), risk.WithLogger(log)),
		Writer:  report.NewWriter(cfg.Output.Dir, store, cfg.Output.Bucket, cfg.Output.Prefix, log),
	}

	if cfg.BigQuery.Enabled {
		repo, err := infra.NewBigQueryRunRepository(ctx, infra.Dataset{Project: cfg.BigQuery.Project, ID: cfg.BigQuery.Dataset})
		if err != nil {
			closeAll()
			return Deps{}, nil, fmt.Errorf("DepsFromConfig: %w", err)
		}
		closers = append(closers, repo.Close)
		deps.Repo = repo
	}

	if cfg.Briefing.Enabled {
		gen, err := briefing.NewGeminiGenerator(ctx, cfg.Briefing.Model)
		if err != nil {
			closeAll()
			return Deps{}, nil, fmt.Errorf("DepsFromConfig: %w", err)
		}
		deps.Briefer = briefing.NewBriefer(gen, gen.Model(), cfg.Briefing.TopN, cfg.Briefing.Timeout)
	}

	return deps, closeAll, nil
}
