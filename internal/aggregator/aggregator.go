// Package aggregator collects cost data from every configured provider,
// merges it into one dataset and derives the grouped cost views.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// ErrNoDataFromAnySource is returned by Merge when no provider contributed a
// single record, placeholders included.
var ErrNoDataFromAnySource = errors.New("no data from any source")

// Extractor fetches raw daily cost rows from one provider
type Extractor interface {
	Name() string
	Extract(ctx context.Context, start, end time.Time) ([]normalizer.RawRow, error)
}

// Source is one configured provider slot. A nil Extractor means the provider
// is disabled or its client could not be built; InitErr carries the cause.
type Source struct {
	Cloud     string
	Extractor Extractor
	InitErr   error
}

// Collect runs every source concurrently and returns one Result per source in
// the order given. Extraction failures, panics and empty answers are turned
// into Unavailable results; Collect itself never fails.
func Collect(ctx context.Context, logger *zap.Logger, sources []Source, start, end time.Time) []normalizer.Result {
	results := make([]normalizer.Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = extractOne(gctx, src, start, end)
			r := results[i]
			if r.Err != nil {
				logger.Warn("provider unavailable, using placeholder",
					zap.String("cloud", r.Cloud),
					zap.String("reason", string(r.Reason)),
					zap.Error(r.Err))
			} else {
				logger.Info("provider extracted",
					zap.String("cloud", r.Cloud),
					zap.Int("rows", len(r.Rows)))
			}
			return nil
		})
	}
	// goroutines never return an error
	_ = g.Wait()

	return results
}

func extractOne(ctx context.Context, src Source, start, end time.Time) (res normalizer.Result) {
	if src.Extractor == nil {
		return normalizer.Unavailable(src.Cloud, normalizer.ReasonNotConfigured, src.InitErr)
	}

	defer func() {
		if p := recover(); p != nil {
			res = normalizer.Unavailable(src.Cloud, normalizer.ReasonConfigurationError,
				fmt.Errorf("panic during extraction: %v", p))
		}
	}()

	rows, err := src.Extractor.Extract(ctx, start, end)
	if err != nil {
		return normalizer.Unavailable(src.Cloud, normalizer.ReasonConfigurationError, err)
	}
	if len(rows) == 0 {
		return normalizer.Unavailable(src.Cloud, normalizer.ReasonNoData, nil)
	}
	return normalizer.Success(src.Cloud, rows)
}

// Merge concatenates the records of every result in order, substituting a
// placeholder dated placeholderDate for each failed or empty provider.
func Merge(results []normalizer.Result, placeholderDate time.Time) ([]normalizer.CostRecord, error) {
	merged := make([]normalizer.CostRecord, 0)
	for _, r := range results {
		merged = append(merged, r.Records(placeholderDate)...)
	}

	if len(merged) == 0 {
		return nil, ErrNoDataFromAnySource
	}
	return merged, nil
}

// Available returns the clouds that delivered real rows
func Available(results []normalizer.Result) []string {
	clouds := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK() {
			clouds = append(clouds, r.Cloud)
		}
	}
	return clouds
}
