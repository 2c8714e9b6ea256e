// Package enrich derives calendar dimensions and service categories for
// cleaned cost records.
package enrich

import (
	"time"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// YearMonthLayout formats year-month buckets
const YearMonthLayout = "2006-01"

// Record is a cost record extended with derived dimensions
type Record struct {
	normalizer.CostRecord

	Year            int    `json:"year"`
	Month           int    `json:"month"`
	MonthName       string `json:"month_name"`
	ISOWeek         int    `json:"iso_week"`
	WeekdayIndex    int    `json:"weekday_index"` // Monday = 0
	WeekdayName     string `json:"weekday_name"`
	IsWeekend       bool   `json:"is_weekend"`
	YearMonth       string `json:"year_month"`
	ServiceCategory string `json:"service_category"`
}

// Enrich derives calendar fields and the service category of each record.
// The input slice is left untouched.
func Enrich(records []normalizer.CostRecord) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, EnrichRecord(r))
	}
	return out
}

// EnrichRecord enriches a single record
func EnrichRecord(r normalizer.CostRecord) Record {
	d := normalizer.Day(r.Date)
	_, week := d.ISOWeek()
	idx := WeekdayIndex(d)

	return Record{
		CostRecord:      r,
		Year:            d.Year(),
		Month:           int(d.Month()),
		MonthName:       d.Month().String(),
		ISOWeek:         week,
		WeekdayIndex:    idx,
		WeekdayName:     d.Weekday().String(),
		IsWeekend:       idx >= 5,
		YearMonth:       d.Format(YearMonthLayout),
		ServiceCategory: Categorize(r.Service),
	}
}

// WeekdayIndex returns the Monday-first weekday index (Monday=0 ... Sunday=6)
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
