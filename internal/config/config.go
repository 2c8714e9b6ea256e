// Package config provides configuration management for the FinOps pipeline
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/lvonguyen/finops-pipeline/internal/anomaly"
)

// Config holds all configuration
type Config struct {
	Providers ProvidersConfig `yaml:"providers" toml:"providers" json:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline" json:"pipeline"`
	Reporter  ReporterConfig  `yaml:"reporter" toml:"reporter" json:"reporter"`
	Upload    UploadConfig    `yaml:"upload" toml:"upload" json:"upload"`
	Schedule  ScheduleConfig  `yaml:"schedule" toml:"schedule" json:"schedule"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" json:"telemetry"`
	Budgets   []Budget        `yaml:"budgets" toml:"budgets" json:"budgets"`
}

// ProvidersConfig lists the cost sources, merged in this order
type ProvidersConfig struct {
	AWS       AWSConfig       `yaml:"aws" toml:"aws" json:"aws"`
	Azure     AzureConfig     `yaml:"azure" toml:"azure" json:"azure"`
	GCP       GCPConfig       `yaml:"gcp" toml:"gcp" json:"gcp"`
	Simulated SimulatedConfig `yaml:"simulated" toml:"simulated" json:"simulated"`
}

// AWSConfig holds AWS-specific configuration
type AWSConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	RoleARN string `yaml:"role_arn" toml:"role_arn" json:"role_arn"`
	Region  string `yaml:"region" toml:"region" json:"region"`
	Profile string `yaml:"profile" toml:"profile" json:"profile"`
}

// AzureConfig holds Azure-specific configuration
type AzureConfig struct {
	Enabled         bool     `yaml:"enabled" toml:"enabled" json:"enabled"`
	TenantID        string   `yaml:"tenant_id" toml:"tenant_id" json:"tenant_id"`
	SubscriptionIDs []string `yaml:"subscription_ids" toml:"subscription_ids" json:"subscription_ids"`
	UseMSI          bool     `yaml:"use_msi" toml:"use_msi" json:"use_msi"`
}

// GCPConfig holds GCP-specific configuration
type GCPConfig struct {
	Enabled         bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	ProjectID       string `yaml:"project_id" toml:"project_id" json:"project_id"`
	BillingAccount  string `yaml:"billing_account" toml:"billing_account" json:"billing_account"`
	BillingTable    string `yaml:"billing_table" toml:"billing_table" json:"billing_table"` // dataset.table of the billing export
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file" json:"credentials_file"`
	ImportBudgets   bool   `yaml:"import_budgets" toml:"import_budgets" json:"import_budgets"`
}

// SimulatedConfig configures the synthetic cost source
type SimulatedConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Cloud   string `yaml:"cloud" toml:"cloud" json:"cloud"`
	Seed    int64  `yaml:"seed" toml:"seed" json:"seed"`
}

// PipelineConfig tunes the transformation stages
type PipelineConfig struct {
	LookbackDays       int    `yaml:"lookback_days" toml:"lookback_days" json:"lookback_days"`
	TopN               int    `yaml:"top_n" toml:"top_n" json:"top_n"`
	DetailedTopN       int    `yaml:"detailed_top_n" toml:"detailed_top_n" json:"detailed_top_n"`
	AnomalySensitivity string `yaml:"anomaly_sensitivity" toml:"anomaly_sensitivity" json:"anomaly_sensitivity"` // low, medium, high
	AnomalyEstimator   string `yaml:"anomaly_estimator" toml:"anomaly_estimator" json:"anomaly_estimator"`       // sample, population
}

// ReporterConfig configures artifact output
type ReporterConfig struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir" json:"output_dir"`
	RawDir    string `yaml:"raw_dir" toml:"raw_dir" json:"raw_dir"`
}

// UploadConfig configures the S3 cold-storage upload
type UploadConfig struct {
	Enabled         bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Bucket          string `yaml:"bucket" toml:"bucket" json:"bucket"`
	Region          string `yaml:"region" toml:"region" json:"region"`
	ProcessedPrefix string `yaml:"processed_prefix" toml:"processed_prefix" json:"processed_prefix"`
	ReportsPrefix   string `yaml:"reports_prefix" toml:"reports_prefix" json:"reports_prefix"`
	KPIsPrefix      string `yaml:"kpis_prefix" toml:"kpis_prefix" json:"kpis_prefix"`
}

// ScheduleConfig configures the recurring run
type ScheduleConfig struct {
	Cron       string `yaml:"cron" toml:"cron" json:"cron"`
	RunOnStart bool   `yaml:"run_on_start" toml:"run_on_start" json:"run_on_start"`
}

// TelemetryConfig configures tracing
type TelemetryConfig struct {
	Exporter    string `yaml:"exporter" toml:"exporter" json:"exporter"` // none, stdout, otlp
	Endpoint    string `yaml:"endpoint" toml:"endpoint" json:"endpoint"`
	ServiceName string `yaml:"service_name" toml:"service_name" json:"service_name"`
}

// Budget defines a budget threshold
type Budget struct {
	Name         string  `yaml:"name" toml:"name" json:"name"`
	Cloud        string  `yaml:"cloud" toml:"cloud" json:"cloud"` // aws, azure, gcp, or all
	Scope        string  `yaml:"scope" toml:"scope" json:"scope"` // account name
	MonthlyLimit float64 `yaml:"monthly_limit" toml:"monthly_limit" json:"monthly_limit"`
	AlertAt      []int   `yaml:"alert_at" toml:"alert_at" json:"alert_at"` // percentages to alert at (e.g., 50, 75, 90, 100)
}

// Default returns a configuration that runs the simulated source only
func Default() *Config {
	cfg := &Config{}
	cfg.Providers.Simulated.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML, TOML or JSON file, chosen by
// extension. A .env file in the working directory is loaded first so its
// variables can be referenced as ${VAR} in the file.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config file format: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.LookbackDays == 0 {
		c.Pipeline.LookbackDays = 30
	}
	if c.Pipeline.TopN == 0 {
		c.Pipeline.TopN = 3
	}
	if c.Pipeline.DetailedTopN == 0 {
		c.Pipeline.DetailedTopN = 10
	}
	if c.Pipeline.AnomalySensitivity == "" {
		c.Pipeline.AnomalySensitivity = string(anomaly.SensitivityMedium)
	}
	if c.Pipeline.AnomalyEstimator == "" {
		c.Pipeline.AnomalyEstimator = string(anomaly.EstimatorSample)
	}
	if c.Providers.AWS.Region == "" {
		c.Providers.AWS.Region = "us-east-1"
	}
	if c.Providers.Simulated.Cloud == "" {
		c.Providers.Simulated.Cloud = "AWS"
	}
	if c.Providers.Simulated.Seed == 0 {
		c.Providers.Simulated.Seed = 42
	}
	if c.Reporter.OutputDir == "" {
		c.Reporter.OutputDir = "data/processed"
	}
	if c.Reporter.RawDir == "" {
		c.Reporter.RawDir = "data/raw"
	}
	if c.Upload.Region == "" {
		c.Upload.Region = c.Providers.AWS.Region
	}
	if c.Upload.ProcessedPrefix == "" {
		c.Upload.ProcessedPrefix = "processed/daily"
	}
	if c.Upload.ReportsPrefix == "" {
		c.Upload.ReportsPrefix = "reports"
	}
	if c.Upload.KPIsPrefix == "" {
		c.Upload.KPIsPrefix = "kpis"
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 8 * * *"
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "none"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "finops-pipeline"
	}
}

// Validate rejects values no run could use
func (c *Config) Validate() error {
	var errs []error

	if c.Pipeline.LookbackDays < 1 {
		errs = append(errs, fmt.Errorf("pipeline.lookback_days must be >= 1, got %d", c.Pipeline.LookbackDays))
	}
	if c.Pipeline.TopN < 1 {
		errs = append(errs, fmt.Errorf("pipeline.top_n must be >= 1, got %d", c.Pipeline.TopN))
	}
	if c.Pipeline.DetailedTopN < 1 {
		errs = append(errs, fmt.Errorf("pipeline.detailed_top_n must be >= 1, got %d", c.Pipeline.DetailedTopN))
	}
	if !anomaly.ValidSensitivity(anomaly.Sensitivity(c.Pipeline.AnomalySensitivity)) {
		errs = append(errs, fmt.Errorf("pipeline.anomaly_sensitivity: unknown value %q", c.Pipeline.AnomalySensitivity))
	}
	if !anomaly.ValidEstimator(anomaly.Estimator(c.Pipeline.AnomalyEstimator)) {
		errs = append(errs, fmt.Errorf("pipeline.anomaly_estimator: unknown value %q", c.Pipeline.AnomalyEstimator))
	}
	if c.Providers.GCP.Enabled && c.Providers.GCP.BillingTable != "" && strings.Count(c.Providers.GCP.BillingTable, ".") != 1 {
		errs = append(errs, fmt.Errorf("providers.gcp.billing_table must be dataset.table, got %q", c.Providers.GCP.BillingTable))
	}
	if c.Upload.Enabled && c.Upload.Bucket == "" {
		errs = append(errs, errors.New("upload.bucket is required when upload is enabled"))
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter: unknown value %q", c.Telemetry.Exporter))
	}
	for i, b := range c.Budgets {
		if b.MonthlyLimit < 0 {
			errs = append(errs, fmt.Errorf("budgets[%d] %q: monthly_limit must be >= 0", i, b.Name))
		}
	}

	return errors.Join(errs...)
}
