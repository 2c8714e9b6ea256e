package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
	"github.com/lvonguyen/finops-pipeline/internal/pipeline"
)

// printExtraction prints per-cloud totals of the merged dataset
func printExtraction(summary normalizer.CostSummary) {
	data := pterm.TableData{{"Cloud", "Cost", "Share"}}
	for _, cloud := range summary.Clouds {
		cost := summary.ByCloud[cloud]
		share := 0.0
		if summary.TotalCost > 0 {
			share = cost * 100 / summary.TotalCost
		}
		data = append(data, []string{cloud, fmt.Sprintf("$%.2f", cost), fmt.Sprintf("%.1f%%", share)})
	}

	pterm.DefaultSection.Println("Multi-Cloud Cost Summary")
	pterm.Info.Printfln("Total spend: $%.2f over %d records", summary.TotalCost, summary.Records)
	if !summary.StartDate.IsZero() {
		pterm.Info.Printfln("Period: %s to %s",
			summary.StartDate.Format(normalizer.DateLayout),
			summary.EndDate.Format(normalizer.DateLayout))
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// printReport prints the KPI summary of a run
func printReport(res *pipeline.Result) {
	r := res.Report

	trend := pterm.FgYellow.Sprint("undefined (zero base month)")
	if r.TrendPct != nil {
		switch t := *r.TrendPct; {
		case t > 0:
			trend = pterm.FgRed.Sprintf("⬆ %.2f%%", t)
		case t < 0:
			trend = pterm.FgGreen.Sprintf("⬇ %.2f%%", -t)
		default:
			trend = pterm.FgYellow.Sprint("➡ 0.00%")
		}
	}

	anomalies := pterm.FgGreen.Sprint("0")
	if r.AnomalyCount > 0 {
		anomalies = pterm.FgRed.Sprintf("%d (threshold $%.2f)", r.AnomalyCount, r.Threshold)
	}

	pterm.DefaultSection.Println("Key Performance Indicators")
	_ = pterm.DefaultTable.WithData(pterm.TableData{
		{"Period", fmt.Sprintf("%s to %s (%d days)", r.StartDate, r.EndDate, r.Days)},
		{"Total cost", pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprintf("$%.2f", r.TotalCost)},
		{"Average daily cost", fmt.Sprintf("$%.2f", r.AvgDailyCost)},
		{"Trend", trend},
		{"Anomalous days", anomalies},
		{"Weekend / weekday", fmt.Sprintf("%.1f%% / %.1f%%", r.WeekendPct, r.WeekdayPct)},
	}).Render()

	services := pterm.TableData{{"Service", "Cost", "Share"}}
	for _, s := range r.TopServices {
		services = append(services, []string{s.Service, fmt.Sprintf("$%.2f", s.Cost), fmt.Sprintf("%.1f%%", s.Percentage)})
	}
	pterm.DefaultSection.WithLevel(2).Println("Top services")
	_ = pterm.DefaultTable.WithHasHeader().WithData(services).Render()

	for _, alert := range r.BudgetAlerts {
		pterm.Warning.Printfln("%s: $%.2f of $%.2f (%.1f%%, %s)",
			pterm.FgRed.Sprint(alert.BudgetName), alert.CurrentSpend, alert.BudgetLimit, alert.PercentUsed, alert.Severity)
	}
}
