// Package cleaning removes duplicate and invalid cost records and fills gaps.
package cleaning

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// Stats counts the rows affected by each cleaning rule
type Stats struct {
	Input        int `json:"input"`
	Duplicates   int `json:"duplicates"`
	NegativeCost int `json:"negative_cost"`
	InvalidDates int `json:"invalid_dates"`
	FilledFields int `json:"filled_fields"` // individual field values, not rows
	Rounded      int `json:"rounded"`
	Output       int `json:"output"`
}

// Dropped returns the number of records removed
func (s Stats) Dropped() int {
	return s.Duplicates + s.NegativeCost + s.InvalidDates
}

// Clean applies, in order: duplicate removal, invalid record removal
// (negative cost, missing date), categorical gap filling and rounding to cents.
// The input slice is not modified.
//
// Duplicates are compared in canonical form (gaps filled, cost rounded) so that
// cleaning an already clean dataset is a no-op.
func Clean(records []normalizer.CostRecord) ([]normalizer.CostRecord, Stats) {
	stats := Stats{Input: len(records)}

	// 1. duplicates
	seen := make(map[recordKey]struct{}, len(records))
	unique := make([]normalizer.CostRecord, 0, len(records))
	for _, r := range records {
		key := keyOf(r)
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, r)
	}

	// 2. invalid records
	valid := make([]normalizer.CostRecord, 0, len(unique))
	for _, r := range unique {
		if r.Cost < 0 {
			stats.NegativeCost++
			continue
		}
		if r.Date.IsZero() {
			stats.InvalidDates++
			continue
		}
		valid = append(valid, r)
	}

	// 3. fill missing categoricals, 4. round
	cleaned := make([]normalizer.CostRecord, 0, len(valid))
	for _, r := range valid {
		filled, n := canonical(r)
		stats.FilledFields += n

		rounded := RoundCost(filled.Cost)
		if rounded != filled.Cost {
			stats.Rounded++
		}
		filled.Cost = rounded
		cleaned = append(cleaned, filled)
	}

	stats.Output = len(cleaned)
	return cleaned, stats
}

type recordKey struct {
	date, cloud, service, region, accountID, accountName, currency string
	cost                                                          float64
}

func keyOf(r normalizer.CostRecord) recordKey {
	c, _ := canonical(r)
	return recordKey{
		date:        c.DateKey(),
		cloud:       c.Cloud,
		service:     c.Service,
		region:      c.Region,
		accountID:   c.AccountID,
		accountName: c.AccountName,
		currency:    c.Currency,
		cost:        RoundCost(c.Cost),
	}
}

// canonical fills empty service, region and account name with Unknown and
// returns how many fields were filled.
func canonical(r normalizer.CostRecord) (normalizer.CostRecord, int) {
	filled := 0
	for _, f := range []*string{&r.Service, &r.Region, &r.AccountName} {
		if strings.TrimSpace(*f) == "" {
			*f = normalizer.Unknown
			filled++
		}
	}
	return r, filled
}

// RoundCost rounds a cost to 2 decimal places, half away from zero
func RoundCost(cost float64) float64 {
	return decimal.NewFromFloat(cost).Round(2).InexactFloat64()
}
