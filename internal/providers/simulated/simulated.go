// Package simulated generates realistic synthetic daily cost data for
// development and demos.
package simulated

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

type service struct {
	name     string
	baseCost float64 // USD per day
}

type account struct {
	id   string
	name string
}

var (
	services = []service{
		{"Amazon EC2", 15.0},
		{"Amazon S3", 5.0},
		{"Amazon RDS", 10.0},
		{"AWS Lambda", 2.0},
		{"Amazon CloudFront", 8.0},
		{"Amazon DynamoDB", 3.0},
		{"Amazon ECS", 12.0},
		{"Amazon VPC", 1.0},
		{"AWS Data Transfer", 4.0},
	}

	regions = []string{"us-east-1", "us-west-2", "eu-west-1", "ap-southeast-1"}

	accounts = []account{
		{"123456789012", "Production"},
		{"123456789013", "Development"},
		{"123456789014", "Testing"},
	}
)

const (
	weekdayMultiplier = 1.2
	weekendMultiplier = 0.6
	dailyGrowth       = 0.001
	minVariation      = 0.8
	maxVariation      = 1.3
)

// Extractor produces one row per day, service and account. Output depends
// only on the seed and the window.
type Extractor struct {
	seed int64
}

// New creates a simulated extractor
func New(seed int64) *Extractor {
	return &Extractor{seed: seed}
}

// Name returns the provider name
func (e *Extractor) Name() string {
	return "simulated"
}

// Extract generates rows for every day in [start, end)
func (e *Extractor) Extract(ctx context.Context, start, end time.Time) ([]normalizer.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(e.seed))
	first := normalizer.Day(start)
	last := normalizer.Day(end)

	var rows []normalizer.RawRow
	for day := first; day.Before(last); day = day.AddDate(0, 0, 1) {
		multiplier := weekdayMultiplier
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			multiplier = weekendMultiplier
		}
		daysSinceStart := int(day.Sub(first).Hours() / 24)
		growth := 1 + float64(daysSinceStart)*dailyGrowth

		for _, svc := range services {
			for _, acct := range accounts {
				variation := minVariation + rng.Float64()*(maxVariation-minVariation)
				cost := svc.baseCost * variation * multiplier * growth

				rows = append(rows, normalizer.RawRow{
					Date:        day.Format(normalizer.DateLayout),
					Service:     svc.name,
					Region:      regions[rng.Intn(len(regions))],
					AccountID:   acct.id,
					AccountName: acct.name,
					Cost:        decimal.NewFromFloat(cost).Round(2).InexactFloat64(),
					Currency:    normalizer.DefaultCurrency,
				})
			}
		}
	}

	return rows, nil
}
