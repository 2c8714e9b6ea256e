package kpi

import (
	"sort"

	"github.com/lvonguyen/finops-pipeline/internal/enrich"
)

// DetailedTopN is the number of services in the summary report
const DetailedTopN = 10

// Share is a named cost with its percentage of the total
type Share struct {
	Name       string  `json:"name"`
	Cost       float64 `json:"cost"`
	Percentage float64 `json:"percentage"`
}

// Summary is the detailed report written next to the KPIs
type Summary struct {
	TopServices      []ServiceCost `json:"top_services"`
	MonthlyEvolution []MonthTotal  `json:"monthly_evolution"`
	Accounts         []Share       `json:"accounts"`
	Categories       []Share       `json:"categories"`
}

// Summarize builds the detailed report. Accounts and categories are sorted
// by cost, highest first.
func Summarize(records []enrich.Record, topN int) Summary {
	if topN < 1 {
		topN = DetailedTopN
	}
	return Summary{
		TopServices:      TopN(records, topN),
		MonthlyEvolution: MonthlyTotals(records),
		Accounts:         shares(records, func(r enrich.Record) string { return r.AccountName }),
		Categories:       shares(records, func(r enrich.Record) string { return r.ServiceCategory }),
	}
}

func shares(records []enrich.Record, key func(enrich.Record) string) []Share {
	out := sumBy(records, key)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost > out[j].Cost })
	return out
}
