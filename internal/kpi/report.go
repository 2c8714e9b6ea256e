// Package kpi computes the summary statistics of a pipeline run: totals,
// month-over-month trend, top services, weekend split, daily anomalies and
// budget alerts.
package kpi

import (
	"errors"
	"fmt"
	"time"

	"github.com/lvonguyen/finops-pipeline/internal/aggregator"
	"github.com/lvonguyen/finops-pipeline/internal/anomaly"
	"github.com/lvonguyen/finops-pipeline/internal/enrich"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// DefaultTopN is the number of services listed in the KPI report
const DefaultTopN = 3

// Report is the KPI summary of one run
type Report struct {
	TotalCost    float64       `json:"total_cost"`
	AvgDailyCost float64       `json:"avg_daily_cost"`
	TrendPct     *float64      `json:"trend_pct"` // nil when the first month total is zero
	AnomalyCount int           `json:"anomaly_count"`
	WeekendPct   float64       `json:"weekend_pct"`
	WeekdayPct   float64       `json:"weekday_pct"`
	Days         int           `json:"days"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	Threshold    float64       `json:"anomaly_threshold"`
	TopServices  []ServiceCost `json:"top_services"`
	BudgetAlerts []BudgetAlert `json:"budget_alerts,omitempty"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// TrendUndefined reports whether the trend could not be computed
func (r Report) TrendUndefined() bool {
	return r.TrendPct == nil
}

// Options tunes Compute
type Options struct {
	TopN     int
	Detector *anomaly.Detector
	Budgets  []Budget
	Now      func() time.Time
}

// Compute builds the KPI report and the anomaly-flagged daily series. It
// fails with an *InsufficientDataError when records or the daily view are
// empty.
func Compute(records []enrich.Record, daily aggregator.Aggregate, opts Options) (Report, []anomaly.DailyCost, error) {
	if len(records) == 0 {
		return Report{}, nil, insufficient("total cost")
	}
	if opts.TopN < 1 {
		opts.TopN = DefaultTopN
	}
	if opts.Detector == nil {
		opts.Detector = anomaly.NewDetector(anomaly.DetectorConfig{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	days, err := DailyCosts(daily)
	if err != nil {
		return Report{}, nil, err
	}

	flagged, baseline, err := opts.Detector.Detect(days)
	if errors.Is(err, anomaly.ErrNoDailyCosts) {
		return Report{}, nil, insufficient("daily cost standard deviation")
	}
	if err != nil {
		return Report{}, nil, fmt.Errorf("failed to detect anomalies: %w", err)
	}

	weekendPct, weekdayPct, err := WeekendSplit(records)
	if err != nil {
		return Report{}, nil, err
	}

	report := Report{
		TotalCost:    daily.Total(),
		AvgDailyCost: baseline.Mean,
		AnomalyCount: anomaly.Count(flagged),
		WeekendPct:   weekendPct,
		WeekdayPct:   weekdayPct,
		Days:         len(days),
		StartDate:    days[0].Date.Format(normalizer.DateLayout),
		EndDate:      days[len(days)-1].Date.Format(normalizer.DateLayout),
		Threshold:    baseline.Threshold,
		TopServices:  TopN(records, opts.TopN),
		BudgetAlerts: CheckBudgets(opts.Budgets, records, opts.Now()),
		GeneratedAt:  opts.Now(),
	}

	trend, err := Trend(MonthlyTotals(records))
	switch {
	case errors.Is(err, ErrUndefinedTrendBase):
		// left nil
	case err != nil:
		return Report{}, nil, err
	default:
		report.TrendPct = &trend
	}

	return report, flagged, nil
}

// DailyCosts converts the daily view into the series the detector consumes
func DailyCosts(daily aggregator.Aggregate) ([]anomaly.DailyCost, error) {
	if len(daily.Rows) == 0 {
		return nil, insufficient("daily cost standard deviation")
	}

	days := make([]anomaly.DailyCost, 0, len(daily.Rows))
	for _, row := range daily.Rows {
		if len(row.Keys) != 1 {
			return nil, fmt.Errorf("daily view %q has %d key columns, want 1", daily.Name, len(row.Keys))
		}
		d, err := time.Parse(normalizer.DateLayout, row.Keys[0])
		if err != nil {
			return nil, fmt.Errorf("daily view %q: invalid date %q: %w", daily.Name, row.Keys[0], err)
		}
		days = append(days, anomaly.DailyCost{Date: d, TotalCost: row.Cost})
	}
	return days, nil
}
