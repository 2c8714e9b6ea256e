// Package anomaly provides cost anomaly detection.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoDailyCosts is returned when detection runs on an empty series
var ErrNoDailyCosts = errors.New("no daily costs to analyze")

// Sensitivity levels for anomaly detection
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Estimator selects the standard deviation formula
type Estimator string

const (
	EstimatorSample     Estimator = "sample"     // divide by n-1
	EstimatorPopulation Estimator = "population" // divide by n
)

// DetectorConfig holds configuration for anomaly detection
type DetectorConfig struct {
	Sensitivity Sensitivity
	Estimator   Estimator
}

// DailyCost is one row of the daily aggregate with its anomaly flag
type DailyCost struct {
	Date      time.Time `json:"date"`
	TotalCost float64   `json:"total_cost"`
	IsAnomaly bool      `json:"is_anomaly"`
}

// Baseline holds the statistics a detection ran with
type Baseline struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Threshold float64 `json:"threshold"`
	Count     int     `json:"count"`
	Defined   bool    `json:"defined"` // false with fewer than 2 days
}

// Detector flags days whose total exceeds mean + k standard deviations
type Detector struct {
	config     DetectorConfig
	thresholds map[Sensitivity]float64 // standard deviations above the mean
}

// NewDetector creates a new anomaly detector. Zero values select medium
// sensitivity and the sample estimator.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Sensitivity == "" {
		cfg.Sensitivity = SensitivityMedium
	}
	if cfg.Estimator == "" {
		cfg.Estimator = EstimatorSample
	}
	return &Detector{
		config: cfg,
		thresholds: map[Sensitivity]float64{
			SensitivityLow:    3.0,
			SensitivityMedium: 2.0,
			SensitivityHigh:   1.5,
		},
	}
}

// ValidSensitivity reports whether s names a known level
func ValidSensitivity(s Sensitivity) bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// ValidEstimator reports whether e names a known estimator
func ValidEstimator(e Estimator) bool {
	return e == EstimatorSample || e == EstimatorPopulation
}

// Detect returns a copy of days with IsAnomaly set for every day whose total
// is strictly greater than the threshold. With a single day no standard
// deviation exists and nothing is flagged.
func (d *Detector) Detect(days []DailyCost) ([]DailyCost, Baseline, error) {
	if len(days) == 0 {
		return nil, Baseline{}, ErrNoDailyCosts
	}

	values := make([]float64, len(days))
	for i, day := range days {
		values[i] = day.TotalCost
	}

	baseline := d.calculateBaseline(values)

	flagged := make([]DailyCost, len(days))
	for i, day := range days {
		day.IsAnomaly = baseline.Defined && day.TotalCost > baseline.Threshold
		flagged[i] = day
	}

	return flagged, baseline, nil
}

// calculateBaseline computes mean, standard deviation and threshold
func (d *Detector) calculateBaseline(values []float64) Baseline {
	mean, stdDev, ok := MeanStdDev(values, d.config.Estimator)
	b := Baseline{Mean: mean, StdDev: stdDev, Count: len(values), Defined: ok}
	if ok {
		b.Threshold = mean + d.thresholds[d.config.Sensitivity]*stdDev
	}
	return b
}

// MeanStdDev returns the mean and standard deviation of values. ok is false
// when the deviation is undefined (empty input, or fewer than 2 values for
// the sample estimator).
func MeanStdDev(values []float64, est Estimator) (mean, stdDev float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, 0, false
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	if n < 2 {
		return mean, 0, false
	}

	var sumSqDiff float64
	for _, v := range values {
		diff := v - mean
		sumSqDiff += diff * diff
	}

	denom := float64(n - 1)
	if est == EstimatorPopulation {
		denom = float64(n)
	}
	return mean, math.Sqrt(sumSqDiff / denom), true
}

// Count returns how many days are flagged
func Count(days []DailyCost) int {
	n := 0
	for _, day := range days {
		if day.IsAnomaly {
			n++
		}
	}
	return n
}

// String describes the baseline for logs
func (b Baseline) String() string {
	if !b.Defined {
		return fmt.Sprintf("mean=%.2f over %d day(s), deviation undefined", b.Mean, b.Count)
	}
	return fmt.Sprintf("mean=%.2f sd=%.2f threshold=%.2f over %d days", b.Mean, b.StdDev, b.Threshold, b.Count)
}
