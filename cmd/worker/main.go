package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/jobs"
	"github.com/dvloznov/ceap-risk/internal/jobs/inmemory"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/metrics"
	"github.com/dvloznov/ceap-risk/internal/pipeline"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config (defaults to $CEAP_CONFIG)")
		every       = flag.Duration("every", 24*time.Hour, "Interval between scheduled scoring runs")
		metricsAddr = flag.String("metrics-addr", ":9090", "Address for the /metrics endpoint; empty disables it")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load config")
	}
	log, err := logger.NewWithLevel(cfg.Log.Level)
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Invalid log level")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if *every <= 0 {
		log.Fatal().Msg("-every must be positive")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	deps, closeDeps, err := pipeline.DepsFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline dependencies")
	}
	defer closeDeps()
	runner := pipeline.NewRunner(deps)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(1, 1, jobStore)

	if err := jobQueue.Start(ctx, jobs.ScoringHandler(runner, nil)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	log.Info().Dur("every", *every).Strs("steps", runner.Steps()).Msg("Worker service started")

	schedule := func() {
		job := &jobs.ScoringJob{Sources: cfg.Sources, MaxRetries: cfg.Server.MaxRetries}
		if err := jobQueue.PublishScoring(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue scheduled run")
			return
		}
		log.Info().Str(logger.FieldJobID, job.JobID).Msg("Scheduled scoring run enqueued")
	}

	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	schedule()
	for {
		select {
		case <-ticker.C:
			schedule()
		case <-quit:
			log.Info().Msg("Shutting down worker service...")

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := jobQueue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping job queue")
			}
			cancelShutdown()
			log.Info().Msg("Worker service stopped")
			return
		}
	}
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
