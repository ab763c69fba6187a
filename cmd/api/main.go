package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ceap-risk/internal/api"
	"github.com/dvloznov/ceap-risk/internal/api/handlers"
	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/jobs"
	"github.com/dvloznov/ceap-risk/internal/jobs/inmemory"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (defaults to $CEAP_CONFIG)")
		addr       = flag.String("addr", "", "Listen address (overrides server.listen_address)")
		runOnStart = flag.Bool("run-on-start", false, "Enqueue a scoring run at startup")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	if *addr != "" {
		cfg.Server.ListenAddress = *addr
	}

	log, err := logger.NewWithLevel(cfg.Log.Level)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Invalid log level")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx := logger.WithContext(context.Background(), log)

	deps, closeDeps, err := pipeline.DepsFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline dependencies")
	}
	defer func() {
		if err := closeDeps(); err != nil {
			log.Error().Err(err).Msg("Failed to close clients")
		}
	}()
	runner := pipeline.NewRunner(deps)

	// Serve the previous run's documents until a new run completes.
	results := handlers.NewResults()
	if snap, err := handlers.LoadSnapshot(ctx, deps.Storage, cfg.Output.Dir); err == nil {
		results.Publish(snap)
		log.Info().Str("run_id", snap.RunID).Int("profiles", len(snap.Bundle.Deputies)).Msg("Loaded previous run")
	} else if storage.IsNotExist(err) {
		log.Info().Str("dir", cfg.Output.Dir).Msg("No previous run to serve")
	} else {
		log.Warn().Err(err).Msg("Failed to load previous run")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Server.QueueSize, cfg.Server.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.ScoringHandler(runner, results.PublishState)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	log.Info().Int("workers", cfg.Server.JobWorkers).Strs("steps", runner.Steps()).Msg("Job workers started")

	if *runOnStart {
		job := &jobs.ScoringJob{Sources: cfg.Sources, MaxRetries: cfg.Server.MaxRetries}
		if err := jobQueue.PublishScoring(ctx, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to enqueue startup run")
		}
		log.Info().Str("job_id", job.JobID).Msg("Startup scoring run enqueued")
	}

	handler := api.NewRouter(api.RouterDeps{
		Results:    results,
		Publisher:  jobQueue,
		JobStore:   jobStore,
		Sources:    cfg.Sources,
		MaxRetries: cfg.Server.MaxRetries,
		APIKey:     cfg.Server.APIKey,
		Log:        log,
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight runs finish before cancelling the workers.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyEnv(os.Getenv)
		return cfg, nil
	}
	return config.LoadFromEnv()
}
