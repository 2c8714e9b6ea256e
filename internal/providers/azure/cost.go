// Package azure provides Azure Cost Management integration
package azure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"

	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// Cloud is the provider identifier carried by Azure records
const Cloud = "Azure"

// UsageAPI is the subset of the cost management query client used here
type UsageAPI interface {
	Usage(ctx context.Context, scope string, parameters armcostmanagement.QueryDefinition, options *armcostmanagement.QueryClientUsageOptions) (armcostmanagement.QueryClientUsageResponse, error)
}

// Extractor queries daily actual cost per subscription
type Extractor struct {
	client        UsageAPI
	subscriptions []string
}

// New creates an Azure extractor
func New(cfg config.AzureConfig) (*Extractor, error) {
	if len(cfg.SubscriptionIDs) == 0 {
		return nil, fmt.Errorf("no Azure subscription configured")
	}

	var cred *azidentity.DefaultAzureCredential
	var err error

	if cfg.UseMSI {
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			TenantID: cfg.TenantID,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	client, err := armcostmanagement.NewQueryClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client: %w", err)
	}

	return NewWithClient(client, cfg.SubscriptionIDs), nil
}

// NewWithClient wires a prebuilt query client
func NewWithClient(client UsageAPI, subscriptions []string) *Extractor {
	return &Extractor{client: client, subscriptions: subscriptions}
}

// Name returns the provider name
func (e *Extractor) Name() string {
	return "azure-cost-management"
}

// Extract retrieves daily actual cost for [start, end)
func (e *Extractor) Extract(ctx context.Context, start, end time.Time) ([]normalizer.RawRow, error) {
	// the query period is inclusive on both ends
	to := end.Add(-time.Second)

	rows := make([]normalizer.RawRow, 0)
	for _, subscriptionID := range e.subscriptions {
		scope := fmt.Sprintf("/subscriptions/%s", subscriptionID)

		result, err := e.client.Usage(ctx, scope, query(start, to), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query costs for %s: %w", subscriptionID, err)
		}

		if result.Properties == nil {
			continue
		}
		parsed, err := parseRows(result.Properties.Columns, result.Properties.Rows, subscriptionID)
		if err != nil {
			return nil, fmt.Errorf("subscription %s: %w", subscriptionID, err)
		}
		rows = append(rows, parsed...)
	}

	return rows, nil
}

func query(from, to time.Time) armcostmanagement.QueryDefinition {
	return armcostmanagement.QueryDefinition{
		Type:      toPtr(armcostmanagement.ExportTypeActualCost),
		Timeframe: toPtr(armcostmanagement.TimeframeTypeCustom),
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &from,
			To:   &to,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: toPtr(armcostmanagement.GranularityTypeDaily),
			Grouping: []*armcostmanagement.QueryGrouping{
				dimension("ServiceName"),
				dimension("ResourceLocation"),
				dimension("SubscriptionName"),
			},
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     toPtr("Cost"),
					Function: toPtr(armcostmanagement.FunctionTypeSum),
				},
			},
		},
	}
}

func dimension(name string) *armcostmanagement.QueryGrouping {
	return &armcostmanagement.QueryGrouping{
		Type: toPtr(armcostmanagement.QueryColumnTypeDimension),
		Name: toPtr(name),
	}
}

// parseRows maps result rows by column name; the column order of the
// response is not fixed.
func parseRows(columns []*armcostmanagement.QueryColumn, rows [][]any, subscriptionID string) ([]normalizer.RawRow, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c != nil && c.Name != nil {
			index[strings.ToLower(*c.Name)] = i
		}
	}

	get := func(row []any, names ...string) any {
		for _, n := range names {
			if i, ok := index[strings.ToLower(n)]; ok && i < len(row) {
				return row[i]
			}
		}
		return nil
	}

	out := make([]normalizer.RawRow, 0, len(rows))
	for _, row := range rows {
		cost, err := toFloat(get(row, "Cost", "totalCost", "PreTaxCost"))
		if err != nil {
			return nil, err
		}

		out = append(out, normalizer.RawRow{
			Date:        toString(get(row, "UsageDate", "Date")),
			Service:     toString(get(row, "ServiceName")),
			Region:      toString(get(row, "ResourceLocation")),
			AccountID:   subscriptionID,
			AccountName: toString(get(row, "SubscriptionName")),
			Cost:        cost,
			Currency:    toString(get(row, "Currency")),
		})
	}
	return out, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// UsageDate arrives as a number such as 20240131
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cost %q: %w", t, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected cost type %T", v)
	}
}

func toPtr[T any](v T) *T {
	return &v
}
