package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/logger"
	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "score":
		runScore(log)
	case "upload":
		runUpload(log)
	case "inspect":
		runInspect(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("CEAP Risk CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  score     Score every legislator and write the output documents")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  inspect   Print one legislator profile from a deputies.json")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runScore(log zerolog.Logger) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config (defaults to $CEAP_CONFIG)")
	expenses := fs.String("expenses", "", "Expense CSV, local path or gs:// URI (overrides config)")
	outDir := fs.String("out", "", "Output directory (overrides config)")
	bucket := fs.String("bucket", "", "Upload outputs to this bucket (overrides config)")
	runID := fs.String("run-id", "", "Run id (defaults to a fresh uuid)")
	top := fs.Int("top", 10, "Number of highest-risk legislators to print")
	fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *expenses != "" {
		cfg.Sources.Expenses = *expenses
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *bucket != "" {
		cfg.Output.Bucket = *bucket
	}
	if lvl, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	deps, closeDeps, err := pipeline.DepsFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline dependencies")
	}
	defer closeDeps()

	state, err := pipeline.NewRunner(deps).Run(ctx, *runID)
	if err != nil {
		closeDeps()
		log.Fatal().Err(err).Msg("Scoring run failed")
	}

	printSummary(os.Stdout, state, *top)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv(config.EnvBucket), "GCS bucket name (or set GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file, e.g. an expense CSV")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	store := storage.NewStore(nil)
	defer store.Close()

	if err := store.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, storage.GCSURI(*bucketName, *objectName))
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	source := fs.String("deputies", "public/data/"+report.FileDeputies, "deputies.json, local path or gs:// URI")
	id := fs.Int("id", 0, "Legislator id")
	name := fs.String("name", "", "Legislator name (case-insensitive, used when -id is not set)")
	fs.Parse(os.Args[2:])

	if *id == 0 && *name == "" {
		log.Fatal().Msg("Error: -id or -name is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	store := storage.NewStore(nil)
	defer store.Close()

	obj, err := store.Open(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open deputies document")
	}
	profiles, err := report.ReadProfiles(obj)
	obj.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read deputies document")
	}

	p := findProfile(profiles, *id, *name)
	if p == nil {
		log.Fatal().Msg("Legislator not found")
	}
	printProfile(os.Stdout, p)
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
