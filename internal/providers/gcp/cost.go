// Package gcp provides GCP billing integration: daily costs from the
// BigQuery billing export and budgets from the Cloud Billing Budget API.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// Cloud is the provider identifier carried by GCP records
const Cloud = "GCP"

// BillingRow is one aggregated row of the billing export query
type BillingRow struct {
	UsageDate   string  `bigquery:"usage_date"`
	Service     string  `bigquery:"service"`
	Region      string  `bigquery:"region"`
	ProjectID   string  `bigquery:"project_id"`
	ProjectName string  `bigquery:"project_name"`
	Cost        float64 `bigquery:"cost"`
	Currency    string  `bigquery:"currency"`
}

// RowSource runs the billing query. The BigQuery-backed implementation is
// returned by New; tests substitute a fake.
type RowSource interface {
	Query(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]BillingRow, error)
}

const billingQuery = `
SELECT
  FORMAT_DATE('%%Y-%%m-%%d', DATE(usage_start_time)) AS usage_date,
  service.description AS service,
  IFNULL(location.region, '') AS region,
  IFNULL(project.id, '') AS project_id,
  IFNULL(project.name, '') AS project_name,
  SUM(cost) AS cost,
  ANY_VALUE(currency) AS currency
FROM %s
WHERE DATE(usage_start_time) >= DATE(@start)
  AND DATE(usage_start_time) < DATE(@end)
GROUP BY 1, 2, 3, 4, 5
ORDER BY 1, 2`

// Extractor pulls daily costs from the billing export table
type Extractor struct {
	source RowSource
	table  string // fully qualified `project.dataset.table`
	closer func() error
}

// New creates an extractor backed by a BigQuery client
func New(ctx context.Context, cfg config.GCPConfig) (*Extractor, error) {
	if cfg.ProjectID == "" || cfg.BillingTable == "" {
		return nil, errors.New("GCP project_id and billing_table are required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	e := NewWithSource(&bigQuerySource{client: client}, cfg.ProjectID, cfg.BillingTable)
	e.closer = client.Close
	return e, nil
}

// NewWithSource wires a prebuilt row source. table is dataset.table inside project.
func NewWithSource(source RowSource, project, table string) *Extractor {
	return &Extractor{
		source: source,
		table:  fmt.Sprintf("`%s.%s`", project, table),
		closer: func() error { return nil },
	}
}

// Name returns the provider name
func (e *Extractor) Name() string {
	return "gcp-billing-export"
}

// Extract retrieves daily cost per service, region and project for [start, end)
func (e *Extractor) Extract(ctx context.Context, start, end time.Time) ([]normalizer.RawRow, error) {
	sql := fmt.Sprintf(billingQuery, e.table)
	params := []bigquery.QueryParameter{
		{Name: "start", Value: start.Format(normalizer.DateLayout)},
		{Name: "end", Value: end.Format(normalizer.DateLayout)},
	}

	result, err := e.source.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing export %s: %w", e.table, err)
	}

	rows := make([]normalizer.RawRow, 0, len(result))
	for _, r := range result {
		rows = append(rows, normalizer.RawRow{
			Date:        r.UsageDate,
			Service:     r.Service,
			Region:      r.Region,
			AccountID:   r.ProjectID,
			AccountName: r.ProjectName,
			Cost:        r.Cost,
			Currency:    strings.ToUpper(r.Currency),
		})
	}
	return rows, nil
}

// Close releases the BigQuery client
func (e *Extractor) Close() error {
	return e.closer()
}

type bigQuerySource struct {
	client *bigquery.Client
}

func (s *bigQuerySource) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]BillingRow, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}

	var rows []BillingRow
	for {
		var row BillingRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
