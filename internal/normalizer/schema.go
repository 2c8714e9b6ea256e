// Package normalizer provides common schema for multi-cloud cost data.
package normalizer

import (
	"strconv"
	"strings"
	"time"
)

// Default values for fields a provider does not report
const (
	Unknown         = "Unknown"
	DefaultCurrency = "USD"
)

// DateLayout is the canonical day key used across every stage and artifact
const DateLayout = "2006-01-02"

// CostRecord represents a normalized cost record from any cloud provider
type CostRecord struct {
	Date        time.Time `json:"date"`
	Cloud       string    `json:"cloud"`   // AWS, Azure, GCP, ...
	Service     string    `json:"service"` // Provider-specific service name
	Region      string    `json:"region"`
	AccountID   string    `json:"account_id"` // Account/Subscription/Project ID
	AccountName string    `json:"account_name"`
	Cost        float64   `json:"cost"`
	Currency    string    `json:"currency"`
}

// DateKey returns the record's day formatted with DateLayout
func (r CostRecord) DateKey() string {
	return r.Date.Format(DateLayout)
}

// RawRow is one provider result row before normalization.
// Date may be in any of the layouts accepted by ParseDate.
type RawRow struct {
	Date        string
	Service     string
	Region      string
	AccountID   string
	AccountName string
	Cost        float64
	Currency    string
}

var dateLayouts = []string{
	DateLayout,
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a provider date and truncates it to a UTC day.
// Azure returns UsageDate as an integer like 20240131, AWS and GCP use ISO dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	// float-encoded integer dates (e.g. "2.0240131e+07")
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 1e7 {
		if t, err := time.Parse("20060102", strconv.FormatInt(int64(f), 10)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize converts raw rows from one provider into canonical records.
// Absent region/account fields become Unknown and absent currency becomes USD.
// An unparseable date yields a zero Date, which the cleaning stage drops.
func Normalize(cloud string, rows []RawRow) []CostRecord {
	records := make([]CostRecord, 0, len(rows))
	for _, row := range rows {
		date, _ := ParseDate(row.Date)
		records = append(records, CostRecord{
			Date:        date,
			Cloud:       cloud,
			Service:     strings.TrimSpace(row.Service),
			Region:      orDefault(row.Region, Unknown),
			AccountID:   orDefault(row.AccountID, Unknown),
			AccountName: orDefault(row.AccountName, Unknown),
			Cost:        row.Cost,
			Currency:    orDefault(row.Currency, DefaultCurrency),
		})
	}
	return records
}

func orDefault(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// CostSummary holds per-cloud totals of a merged dataset
type CostSummary struct {
	TotalCost float64            `json:"total_cost"`
	Records   int                `json:"records"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	ByCloud   map[string]float64 `json:"by_cloud"`
	Clouds    []string           `json:"clouds"` // encounter order
}

// Summarize totals cost records per cloud
func Summarize(records []CostRecord) CostSummary {
	summary := CostSummary{
		Records: len(records),
		ByCloud: make(map[string]float64),
	}

	for _, r := range records {
		summary.TotalCost += r.Cost
		if _, seen := summary.ByCloud[r.Cloud]; !seen {
			summary.Clouds = append(summary.Clouds, r.Cloud)
		}
		summary.ByCloud[r.Cloud] += r.Cost

		if r.Date.IsZero() {
			continue
		}
		if summary.StartDate.IsZero() || r.Date.Before(summary.StartDate) {
			summary.StartDate = r.Date
		}
		if r.Date.After(summary.EndDate) {
			summary.EndDate = r.Date
		}
	}

	return summary
}
