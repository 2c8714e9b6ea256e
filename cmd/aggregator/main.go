// Package main provides the FinOps cost pipeline CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvonguyen/finops-pipeline/internal/anomaly"
	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/kpi"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
	"github.com/lvonguyen/finops-pipeline/internal/pipeline"
	"github.com/lvonguyen/finops-pipeline/internal/providers/gcp"
	"github.com/lvonguyen/finops-pipeline/internal/telemetry"
)

// version is set at build time
var version = "dev"

type app struct {
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	shutdown telemetry.Shutdown
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:               "aggregator",
		Short:             "Multi-cloud FinOps cost pipeline",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML, TOML or JSON config file (default: simulated source only)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		a.runCmd(),
		a.extractCmd(),
		a.transformCmd(),
		a.uploadCmd(),
		a.scheduleCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.verbose {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if a.configPath == "" {
		a.cfg = config.Default()
	} else if a.cfg, err = config.Load(a.configPath); err != nil {
		return err
	}

	a.shutdown, err = telemetry.InitTracer(cmd.Context(), a.cfg.Telemetry, version)
	if err != nil {
		return err
	}

	a.logger.Info("Starting FinOps cost pipeline",
		zap.String("command", cmd.Name()),
		zap.String("config", a.configPath),
		zap.String("exporter", a.cfg.Telemetry.Exporter))
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			a.logger.Warn("failed to shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// window returns the extraction range [start, end) ending at the start of
// today, UTC.
func window(now time.Time, lookbackDays int) (start, end time.Time) {
	end = normalizer.Day(now.UTC())
	return end.AddDate(0, 0, -lookbackDays), end
}

func detectorFrom(cfg config.PipelineConfig) *anomaly.Detector {
	return anomaly.NewDetector(anomaly.DetectorConfig{
		Sensitivity: anomaly.Sensitivity(cfg.AnomalySensitivity),
		Estimator:   anomaly.Estimator(cfg.AnomalyEstimator),
	})
}

// budgets merges configured budgets with GCP billing budgets when importing
// is enabled. An import failure is logged and the configured budgets kept.
func (a *app) budgets(ctx context.Context) []kpi.Budget {
	out := make([]kpi.Budget, 0, len(a.cfg.Budgets))
	for _, b := range a.cfg.Budgets {
		out = append(out, kpi.Budget(b))
	}

	gcpCfg := a.cfg.Providers.GCP
	if !gcpCfg.Enabled || !gcpCfg.ImportBudgets {
		return out
	}

	imported, err := gcp.ImportBudgets(ctx, gcpCfg)
	if err != nil {
		a.logger.Warn("failed to import GCP budgets", zap.Error(err))
		return out
	}
	a.logger.Info("imported GCP budgets", zap.Int("count", len(imported)))
	return append(out, imported...)
}

func (a *app) pipeline(ctx context.Context) *pipeline.Pipeline {
	return pipeline.New(a.logger, pipeline.Options{
		TopN:         a.cfg.Pipeline.TopN,
		DetailedTopN: a.cfg.Pipeline.DetailedTopN,
		Detector:     detectorFrom(a.cfg.Pipeline),
		Budgets:      a.budgets(ctx),
	})
}
