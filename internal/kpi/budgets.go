package kpi

import (
	"sort"
	"strings"
	"time"

	"github.com/lvonguyen/finops-pipeline/internal/enrich"
)

// Budget defines a monthly spend limit
type Budget struct {
	Name         string
	Cloud        string // cloud name or "all"
	Scope        string // account name, empty for the whole cloud
	MonthlyLimit float64
	AlertAt      []int // percentages, e.g. 50, 75, 90, 100
}

// BudgetAlert represents a budget threshold alert
type BudgetAlert struct {
	BudgetName   string    `json:"budget_name"`
	Cloud        string    `json:"cloud"`
	Scope        string    `json:"scope,omitempty"`
	Month        string    `json:"month"`
	BudgetLimit  float64   `json:"budget_limit"`
	CurrentSpend float64   `json:"current_spend"`
	PercentUsed  float64   `json:"percent_used"`
	Severity     string    `json:"severity"`
	AlertedAt    time.Time `json:"alerted_at"`
}

// CheckBudgets compares each budget against spend in the latest month bucket
// and raises at most one alert per budget, for the highest threshold crossed.
func CheckBudgets(budgets []Budget, records []enrich.Record, now time.Time) []BudgetAlert {
	alerts := make([]BudgetAlert, 0)
	if len(budgets) == 0 || len(records) == 0 {
		return alerts
	}

	month := ""
	for _, r := range records {
		if r.YearMonth > month {
			month = r.YearMonth
		}
	}

	for _, budget := range budgets {
		if budget.MonthlyLimit <= 0 {
			continue
		}

		var currentSpend float64
		for _, r := range records {
			if r.YearMonth != month {
				continue
			}
			if budget.Cloud != "all" && !strings.EqualFold(budget.Cloud, r.Cloud) {
				continue
			}
			if budget.Scope != "" && budget.Scope != r.AccountName {
				continue
			}
			currentSpend += r.Cost
		}

		percentUsed := currentSpend * 100 / budget.MonthlyLimit

		thresholds := append([]int(nil), budget.AlertAt...)
		sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))

		for _, alertAt := range thresholds {
			if percentUsed < float64(alertAt) {
				continue
			}
			alerts = append(alerts, BudgetAlert{
				BudgetName:   budget.Name,
				Cloud:        budget.Cloud,
				Scope:        budget.Scope,
				Month:        month,
				BudgetLimit:  budget.MonthlyLimit,
				CurrentSpend: currentSpend,
				PercentUsed:  percentUsed,
				Severity:     severityFor(alertAt),
				AlertedAt:    now,
			})
			break
		}
	}

	return alerts
}

func severityFor(alertAt int) string {
	switch {
	case alertAt >= 90:
		return "high"
	case alertAt >= 75:
		return "medium"
	case alertAt >= 50:
		return "low"
	default:
		return "info"
	}
}
