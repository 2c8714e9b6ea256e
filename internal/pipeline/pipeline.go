// Package pipeline sequences the cost stages: extraction and merge, then
// cleaning, enrichment, aggregation and KPI computation over one in-memory
// snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lvonguyen/finops-pipeline/internal/aggregator"
	"github.com/lvonguyen/finops-pipeline/internal/anomaly"
	"github.com/lvonguyen/finops-pipeline/internal/cleaning"
	"github.com/lvonguyen/finops-pipeline/internal/enrich"
	"github.com/lvonguyen/finops-pipeline/internal/kpi"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

const tracerName = "github.com/lvonguyen/finops-pipeline/internal/pipeline"

// Stage names
const (
	StageExtract   = "extract"
	StageMerge     = "merge"
	StageClean     = "clean"
	StageEnrich    = "enrich"
	StageAggregate = "aggregate"
	StageKPI       = "kpi"
)

// Options tunes the transformation
type Options struct {
	TopN         int
	DetailedTopN int
	Detector     *anomaly.Detector
	Budgets      []kpi.Budget
	Now          func() time.Time
}

// Result holds everything one run derives
type Result struct {
	Cleaning cleaning.Stats
	Records  []enrich.Record
	Views    aggregator.Views
	Daily    []anomaly.DailyCost
	Report   kpi.Report
	Summary  kpi.Summary
}

// StageError reports which stage failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, ErrorKind(e.Err), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrorKind names the error taxonomy entry of err
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, aggregator.ErrNoDataFromAnySource):
		return "NoDataFromAnySource"
	case errors.Is(err, kpi.ErrInsufficientData):
		return "InsufficientData"
	case errors.Is(err, kpi.ErrUndefinedTrendBase):
		return "UndefinedTrendBase"
	case errors.Is(err, normalizer.ErrSourceUnavailable):
		return "SourceUnavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	default:
		return "Unexpected"
	}
}

// Pipeline runs the stages with logging and tracing
type Pipeline struct {
	logger *zap.Logger
	tracer trace.Tracer
	opts   Options
}

// New creates a pipeline. Spans go to the global tracer provider.
func New(logger *zap.Logger, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DetailedTopN < 1 {
		opts.DetailedTopN = kpi.DetailedTopN
	}
	return &Pipeline{
		logger: logger,
		tracer: otel.Tracer(tracerName),
		opts:   opts,
	}
}

// Extract collects every source over [start, end) and merges the results.
// Failed providers become placeholders dated start.
func (p *Pipeline) Extract(ctx context.Context, sources []aggregator.Source, start, end time.Time) ([]normalizer.CostRecord, error) {
	extractCtx, span := p.tracer.Start(ctx, StageExtract, trace.WithAttributes(
		attribute.Int("sources", len(sources)),
		attribute.String("start", start.Format(normalizer.DateLayout)),
		attribute.String("end", end.Format(normalizer.DateLayout)),
	))
	results := aggregator.Collect(extractCtx, p.logger, sources, start, end)
	span.SetAttributes(attribute.StringSlice("available", aggregator.Available(results)))
	span.End()

	if err := ctx.Err(); err != nil {
		return nil, p.fail(StageExtract, err)
	}

	_, span = p.tracer.Start(ctx, StageMerge)
	defer span.End()

	records, err := aggregator.Merge(results, start)
	if err != nil {
		recordSpanError(span, err)
		return nil, p.fail(StageMerge, err)
	}

	summary := normalizer.Summarize(records)
	span.SetAttributes(attribute.Int("records", len(records)))
	p.logger.Info("merged provider data",
		zap.Int("records", len(records)),
		zap.Strings("clouds", summary.Clouds),
		zap.Float64("total_cost", summary.TotalCost))

	return records, nil
}

// Transform runs clean, enrich, aggregate and kpi over records
func (p *Pipeline) Transform(ctx context.Context, records []normalizer.CostRecord) (*Result, error) {
	res := &Result{}

	_, span := p.tracer.Start(ctx, StageClean)
	cleaned, stats := cleaning.Clean(records)
	res.Cleaning = stats
	span.SetAttributes(
		attribute.Int("input", stats.Input),
		attribute.Int("output", stats.Output),
		attribute.Int("dropped", stats.Dropped()),
	)
	span.End()
	p.logger.Info("cleaned records",
		zap.Int("input", stats.Input),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("negative_cost", stats.NegativeCost),
		zap.Int("invalid_dates", stats.InvalidDates),
		zap.Int("filled_fields", stats.FilledFields),
		zap.Int("rounded", stats.Rounded),
		zap.Int("output", stats.Output))

	_, span = p.tracer.Start(ctx, StageEnrich)
	res.Records = enrich.Enrich(cleaned)
	span.SetAttributes(attribute.Int("records", len(res.Records)))
	span.End()

	_, span = p.tracer.Start(ctx, StageAggregate)
	res.Views = aggregator.Build(res.Records)
	for _, v := range res.Views.All() {
		span.SetAttributes(attribute.Int(v.Name, len(v.Rows)))
	}
	span.End()

	_, span = p.tracer.Start(ctx, StageKPI)
	defer span.End()

	report, daily, err := kpi.Compute(res.Records, res.Views.Daily, kpi.Options{
		TopN:     p.opts.TopN,
		Detector: p.opts.Detector,
		Budgets:  p.opts.Budgets,
		Now:      p.opts.Now,
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, p.fail(StageKPI, err)
	}
	res.Report = report
	res.Daily = daily
	res.Summary = kpi.Summarize(res.Records, p.opts.DetailedTopN)

	if report.TrendUndefined() {
		p.logger.Warn("trend undefined",
			zap.String("kind", ErrorKind(kpi.ErrUndefinedTrendBase)),
			zap.Error(kpi.ErrUndefinedTrendBase))
	}
	for _, alert := range report.BudgetAlerts {
		p.logger.Warn("budget threshold reached",
			zap.String("budget", alert.BudgetName),
			zap.String("severity", alert.Severity),
			zap.Float64("percent_used", alert.PercentUsed))
	}

	span.SetAttributes(
		attribute.Float64("total_cost", report.TotalCost),
		attribute.Int("anomalies", report.AnomalyCount),
	)
	p.logger.Info("computed KPIs",
		zap.Float64("total_cost", report.TotalCost),
		zap.Float64("avg_daily_cost", report.AvgDailyCost),
		zap.Int("anomalies", report.AnomalyCount),
		zap.Float64("weekend_pct", report.WeekendPct))

	return res, nil
}

// Run extracts then transforms
func (p *Pipeline) Run(ctx context.Context, sources []aggregator.Source, start, end time.Time) (*Result, error) {
	records, err := p.Extract(ctx, sources, start, end)
	if err != nil {
		return nil, err
	}
	return p.Transform(ctx, records)
}

func (p *Pipeline) fail(stage string, err error) error {
	p.logger.Error("pipeline stage failed",
		zap.String("stage", stage),
		zap.String("kind", ErrorKind(err)),
		zap.Error(err))
	return &StageError{Stage: stage, Err: err}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
