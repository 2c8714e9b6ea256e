package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
	"github.com/lvonguyen/finops-pipeline/internal/pipeline"
	"github.com/lvonguyen/finops-pipeline/internal/providers"
	"github.com/lvonguyen/finops-pipeline/internal/reporter"
	"github.com/lvonguyen/finops-pipeline/internal/uploader"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Extract, transform and upload once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runOnce(cmd.Context())
		},
	}
}

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Pull costs from every provider into a raw dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.extract(cmd.Context())
			return err
		},
	}
}

func (a *app) transformCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Clean, enrich and aggregate a raw dataset and write the artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.transform(cmd.Context(), input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Raw dataset to transform (default: newest in the raw dir)")
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload the newest artifacts to S3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.upload(cmd.Context())
		},
	}
}

func (a *app) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.schedule(cmd.Context())
		},
	}
}

// runOnce mirrors the daily job: extract, transform, then upload when enabled
func (a *app) runOnce(ctx context.Context) error {
	path, err := a.extract(ctx)
	if err != nil {
		return err
	}
	if err := a.transform(ctx, path); err != nil {
		return err
	}
	if !a.cfg.Upload.Enabled {
		a.logger.Info("upload disabled, skipping")
		return nil
	}
	return a.upload(ctx)
}

func (a *app) extract(ctx context.Context) (string, error) {
	start, end := window(time.Now(), a.cfg.Pipeline.LookbackDays)
	a.logger.Info("Running cost extraction",
		zap.String("start", start.Format(normalizer.DateLayout)),
		zap.String("end", end.Format(normalizer.DateLayout)))

	sources, cleanup := providers.Sources(ctx, a.cfg.Providers, a.logger)
	defer cleanup()

	records, err := pipeline.New(a.logger, pipeline.Options{}).Extract(ctx, sources, start, end)
	if err != nil {
		return "", err
	}

	path, err := reporter.New(a.cfg.Reporter).WriteRaw(records)
	if err != nil {
		return "", fmt.Errorf("failed to save raw dataset: %w", err)
	}
	a.logger.Info("Raw dataset saved", zap.String("path", path), zap.Int("records", len(records)))

	printExtraction(normalizer.Summarize(records))
	return path, nil
}

func (a *app) transform(ctx context.Context, input string) error {
	rep := reporter.New(a.cfg.Reporter)

	if input == "" {
		latest, err := rep.LatestRaw()
		if err != nil {
			return fmt.Errorf("no raw dataset to transform, run extract first: %w", err)
		}
		input = latest
	}

	records, err := reporter.ReadRaw(input)
	if err != nil {
		return err
	}
	a.logger.Info("Loaded raw dataset", zap.String("path", input), zap.Int("records", len(records)))

	res, err := a.pipeline(ctx).Transform(ctx, records)
	if err != nil {
		return err
	}

	artifacts, err := rep.WriteArtifacts(res)
	if err != nil {
		return fmt.Errorf("failed to save artifacts: %w", err)
	}
	a.logger.Info("Artifacts saved",
		zap.String("dir", a.cfg.Reporter.OutputDir),
		zap.String("timestamp", artifacts.Timestamp),
		zap.Int("files", len(artifacts.Files)))

	printReport(res)
	return nil
}

func (a *app) upload(ctx context.Context) error {
	up, err := uploader.New(ctx, a.cfg.Upload, a.cfg.Reporter.OutputDir, a.logger)
	if err != nil {
		return err
	}

	uploads, err := up.UploadLatest(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Upload complete", zap.Int("files", len(uploads)))
	return nil
}

func (a *app) schedule(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	job := func() {
		started := time.Now()
		if err := a.runOnce(ctx); err != nil {
			var stageErr *pipeline.StageError
			if errors.As(err, &stageErr) {
				a.logger.Error("Scheduled run failed",
					zap.String("stage", stageErr.Stage),
					zap.String("kind", pipeline.ErrorKind(err)),
					zap.Error(err))
				return
			}
			a.logger.Error("Scheduled run failed", zap.Error(err))
			return
		}
		a.logger.Info("Scheduled run complete", zap.Duration("duration", time.Since(started)))
	}

	id, err := c.AddFunc(a.cfg.Schedule.Cron, job)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", a.cfg.Schedule.Cron, err)
	}

	c.Start()
	a.logger.Info("Scheduler started",
		zap.String("cron", a.cfg.Schedule.Cron),
		zap.Time("next", c.Entry(id).Schedule.Next(time.Now())))

	if a.cfg.Schedule.RunOnStart {
		go job()
	}

	<-ctx.Done()
	a.logger.Info("Received shutdown signal")
	<-c.Stop().Done()
	return nil
}
