package normalizer

import (
	"errors"
	"fmt"
	"time"
)

// ErrSourceUnavailable marks a provider whose data could not be obtained
var ErrSourceUnavailable = errors.New("source unavailable")

// Reason explains why a provider produced no real data
type Reason string

const (
	ReasonNotConfigured      Reason = "Not Configured"
	ReasonConfigurationError Reason = "Configuration Error"
	ReasonNoData             Reason = "No Data"
)

// Placeholder field values
const (
	PlaceholderRegion    = "N/A"
	PlaceholderAccountID = "not-configured"
)

// Result is the outcome of one provider extraction: either Success with rows,
// or Unavailable with a reason. Both collapse into records through Records.
type Result struct {
	Cloud  string
	Rows   []RawRow
	Reason Reason // empty on success
	Err    error  // cause of an Unavailable result, wraps ErrSourceUnavailable
}

// Success builds a successful result
func Success(cloud string, rows []RawRow) Result {
	return Result{Cloud: cloud, Rows: rows}
}

// Unavailable builds a failed result. cause may be nil.
func Unavailable(cloud string, reason Reason, cause error) Result {
	err := fmt.Errorf("%s: %s: %w", cloud, reason, ErrSourceUnavailable)
	if cause != nil {
		err = fmt.Errorf("%s: %s: %w: %w", cloud, reason, ErrSourceUnavailable, cause)
	}
	return Result{Cloud: cloud, Reason: reason, Err: err}
}

// OK reports whether the provider returned real rows
func (r Result) OK() bool {
	return r.Reason == "" && len(r.Rows) > 0
}

// Records collapses the result into canonical records. A failed or empty result
// yields exactly one zero-cost placeholder dated at placeholderDate.
func (r Result) Records(placeholderDate time.Time) []CostRecord {
	if r.Reason != "" {
		return []CostRecord{Placeholder(r.Cloud, r.Reason, placeholderDate)}
	}
	if len(r.Rows) == 0 {
		return []CostRecord{Placeholder(r.Cloud, ReasonNoData, placeholderDate)}
	}
	return Normalize(r.Cloud, r.Rows)
}

// Placeholder builds the synthetic record that keeps a provider visible
// in every downstream aggregate with a zero contribution.
func Placeholder(cloud string, reason Reason, date time.Time) CostRecord {
	return CostRecord{
		Date:        Day(date),
		Cloud:       cloud,
		Service:     string(reason),
		Region:      PlaceholderRegion,
		AccountID:   PlaceholderAccountID,
		AccountName: cloud + " Account",
		Cost:        0,
		Currency:    DefaultCurrency,
	}
}

// IsPlaceholder reports whether r was synthesized by Placeholder
func IsPlaceholder(r CostRecord) bool {
	if r.Cost != 0 || r.AccountID != PlaceholderAccountID || r.Region != PlaceholderRegion {
		return false
	}
	switch Reason(r.Service) {
	case ReasonNotConfigured, ReasonConfigurationError, ReasonNoData:
		return true
	}
	return false
}
