package kpi

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData marks a statistic that cannot be computed from the
	// available data. Returned wrapped in *InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUndefinedTrendBase is returned by Trend when the first month total is zero
	ErrUndefinedTrendBase = errors.New("trend base is zero")
)

// InsufficientDataError names the statistic that could not be computed
type InsufficientDataError struct {
	Statistic string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("cannot compute %s: %v", e.Statistic, ErrInsufficientData)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

func insufficient(statistic string) error {
	return &InsufficientDataError{Statistic: statistic}
}
