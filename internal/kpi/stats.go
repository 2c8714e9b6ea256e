package kpi

import (
	"sort"

	"github.com/lvonguyen/finops-pipeline/internal/enrich"
)

// MonthTotal is the cost of one year-month bucket
type MonthTotal struct {
	Month     string  `json:"month"`
	TotalCost float64 `json:"total_cost"`
}

// ServiceCost is the cost of one service
type ServiceCost struct {
	Service    string  `json:"service"`
	Cost       float64 `json:"cost"`
	Percentage float64 `json:"percentage"`
}

// MonthlyTotals groups cost by year-month bucket, sorted chronologically
func MonthlyTotals(records []enrich.Record) []MonthTotal {
	sums := make(map[string]float64)
	for _, r := range records {
		sums[r.YearMonth] += r.Cost
	}

	out := make([]MonthTotal, 0, len(sums))
	for m, c := range sums {
		out = append(out, MonthTotal{Month: m, TotalCost: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Trend returns the percentage change between the first and last month.
// With fewer than two months the trend is 0. A zero first month yields
// ErrUndefinedTrendBase.
func Trend(months []MonthTotal) (float64, error) {
	if len(months) < 2 {
		return 0, nil
	}
	first := months[0].TotalCost
	last := months[len(months)-1].TotalCost
	if first == 0 {
		return 0, ErrUndefinedTrendBase
	}
	return (last - first) / first * 100, nil
}

// TopN sums cost per service and returns the n most expensive, ties kept in
// the order services were first seen. Percentage is the share of total cost,
// 0 when the total is 0.
func TopN(records []enrich.Record, n int) []ServiceCost {
	sums := sumBy(records, func(r enrich.Record) string { return r.Service })

	sort.SliceStable(sums, func(i, j int) bool {
		return sums[i].Cost > sums[j].Cost
	})

	if n < len(sums) {
		sums = sums[:n]
	}

	services := make([]ServiceCost, len(sums))
	for i, s := range sums {
		services[i] = ServiceCost{Service: s.Name, Cost: s.Cost, Percentage: s.Percentage}
	}
	return services
}

// WeekendSplit returns the weekend and weekday shares of total cost in
// percent. Both are 0 when the total is 0.
func WeekendSplit(records []enrich.Record) (weekendPct, weekdayPct float64, err error) {
	if len(records) == 0 {
		return 0, 0, insufficient("weekend cost share")
	}

	var weekend, weekday float64
	for _, r := range records {
		if r.IsWeekend {
			weekend += r.Cost
		} else {
			weekday += r.Cost
		}
	}

	total := weekend + weekday
	if total == 0 {
		return 0, 0, nil
	}
	return weekend * 100 / total, weekday * 100 / total, nil
}

// sumBy groups cost by key in encounter order and fills percentages
func sumBy(records []enrich.Record, key func(enrich.Record) string) []Share {
	index := make(map[string]int)
	out := make([]Share, 0)
	var total float64

	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Share{Name: k})
		}
		out[i].Cost += r.Cost
		total += r.Cost
	}

	if total > 0 {
		for i := range out {
			out[i].Percentage = out[i].Cost * 100 / total
		}
	}
	return out
}
