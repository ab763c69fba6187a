package main

import (
	"context"
	"flag"
	"io/fs"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/migrations"
)

var (
	configPath    = flag.String("config", "", "Path to YAML config (defaults to $CEAP_CONFIG)")
	projectID     = flag.String("project", "", "GCP project ID (overrides config)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (overrides config)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "", "Read migrations from this directory instead of the embedded set")
)

func main() {
	flag.Parse()
	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *projectID != "" {
		cfg.BigQuery.Project = *projectID
	}
	if *datasetID != "" {
		cfg.BigQuery.Dataset = *datasetID
	}
	if cfg.BigQuery.Project == "" {
		log.Fatal().Msg("GCP project is required: set -project, bigquery.project or $BQ_PROJECT")
	}
	target := target{project: cfg.BigQuery.Project, dataset: cfg.BigQuery.Dataset}

	client, err := bigquery.NewClient(ctx, target.project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", target.project).Str("dataset", target.dataset).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client, target); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	var src fs.FS
	if *migrationsDir != "" {
		src = os.DirFS(*migrationsDir)
	} else {
		src, err = fs.Sub(migrations.BigQuery, "bigquery")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open embedded migrations")
		}
	}

	pending, skipped, err := readMigrations(src, target)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	for _, name := range skipped {
		log.Warn().Str("file", name).Msg("Skipping file with invalid name")
	}
	log.Info().Int("count", len(pending)).Msg("Found migration files")

	applied, err := getAppliedMigrations(ctx, client, target)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found applied migrations")

	appliedCount := 0
	for _, m := range pendingMigrations(pending, applied) {
		mlog := log.With().Int("version", m.Version).Str("name", m.Name).Logger()
		mlog.Info().Msg("Applying migration")

		if err := runStatement(ctx, client, m.SQL, nil); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := recordMigration(ctx, client, target, m, *appliedBy); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to record migration")
		}

		mlog.Info().Msg("Migration applied")
		appliedCount++
	}

	if appliedCount == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}
	log.Info().Int("applied", appliedCount).Msg("Migrations applied")
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg.ApplyEnv(os.Getenv)
		return cfg, nil
	}
	return config.LoadFromEnv()
}
