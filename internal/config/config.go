package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvConfigPath = "CEAP_CONFIG"
	EnvBucket     = "GCS_BUCKET"
	EnvBQProject  = "BQ_PROJECT"
)

// Sources are the run inputs. Each is a local path or a gs:// URI.
// Only the expense source is required.
type Sources struct {
	Expenses      string `yaml:"expenses"`
	Concentration string `yaml:"hhi"`
	FraudMatrix   string `yaml:"fraud"`
	Mismatches    string `yaml:"mismatches"`
	Enrichment    string `yaml:"enrichment"`
}

type Output struct {
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"` // optional; outputs are uploaded when set
	Prefix string `yaml:"prefix"`
}

type BigQuery struct {
	Enabled bool   `yaml:"enabled"`
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

type Engine struct {
	Workers int `yaml:"workers"` // pass-one fan-out; 0 means GOMAXPROCS
}

type Log struct {
	Level string `yaml:"level"`
}

type Server struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	JobWorkers    int           `yaml:"job_workers"`
	QueueSize     int           `yaml:"queue_size"`
	MaxRetries    int           `yaml:"max_retries"`
	APIKey        string        `yaml:"api_key"` // empty disables auth
}

type Briefing struct {
	Enabled bool          `yaml:"enabled"`
	Model   string        `yaml:"model"`
	TopN    int           `yaml:"top_n"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	Sources  Sources  `yaml:"sources"`
	Output   Output   `yaml:"output"`
	BigQuery BigQuery `yaml:"bigquery"`
	Engine   Engine   `yaml:"engine"`
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
	Briefing Briefing `yaml:"briefing"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML file and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

// LoadFromEnv loads the file named by CEAP_CONFIG, or the defaults when the
// variable is unset, then applies the environment overrides.
func LoadFromEnv() (*Config, error) {
	c := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	c.ApplyEnv(os.Getenv)
	return c, nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvBucket); v != "" {
		c.Output.Bucket = v
	}
	if v := getenv(EnvBQProject); v != "" {
		c.BigQuery.Project = v
	}
}

func (c *Config) applyDefaults() {
	if c.Sources.Expenses == "" {
		c.Sources.Expenses = "data/processed/despesas_combined_2023_2025.csv"
	}
	if c.Sources.Concentration == "" {
		c.Sources.Concentration = "data/processed/hhi_analysis.csv"
	}
	if c.Sources.FraudMatrix == "" {
		c.Sources.FraudMatrix = "data/processed/fraud_analysis_full_matrix.csv"
	}
	if c.Sources.Mismatches == "" {
		c.Sources.Mismatches = "data/processed/mismatch_analysis.csv"
	}
	if c.Sources.Enrichment == "" {
		c.Sources.Enrichment = "data/processed/deputy_enrichment.csv"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "public/data"
	}
	if c.BigQuery.Dataset == "" {
		c.BigQuery.Dataset = "ceap_risk"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.JobWorkers == 0 {
		c.Server.JobWorkers = 1
	}
	if c.Server.QueueSize == 0 {
		c.Server.QueueSize = 16
	}
	if c.Server.MaxRetries == 0 {
		c.Server.MaxRetries = 2
	}
	if c.Briefing.Model == "" {
		c.Briefing.Model = "gemini-2.5-flash"
	}
	if c.Briefing.TopN == 0 {
		c.Briefing.TopN = 10
	}
	if c.Briefing.Timeout == 0 {
		c.Briefing.Timeout = 2 * time.Minute
	}
}

// Validate checks combinations the defaults cannot fix.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Workers < 0 {
		errs = append(errs, errors.New("engine.workers must not be negative"))
	}
	if c.BigQuery.Enabled && c.BigQuery.Project == "" {
		errs = append(errs, errors.New("bigquery.project is required when bigquery is enabled"))
	}
	if c.Briefing.Enabled && c.Briefing.TopN < 0 {
		errs = append(errs, errors.New("briefing.top_n must not be negative"))
	}
	return errors.Join(errs...)
}
