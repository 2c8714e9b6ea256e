package gcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/billing/budgets/apiv1/budgetspb"
	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/money"
)

type fakeSource struct {
	sql    string
	params []bigquery.QueryParameter
	rows   []BillingRow
	err    error
}

func (f *fakeSource) Query(_ context.Context, sql string, params []bigquery.QueryParameter) ([]BillingRow, error) {
	f.sql, f.params = sql, params
	return f.rows, f.err
}

func TestExtract(t *testing.T) {
	src := &fakeSource{rows: []BillingRow{
		{UsageDate: "2024-01-01", Service: "Compute Engine", Region: "europe-west1", ProjectID: "shop-prod", ProjectName: "Shop", Cost: 3.5, Currency: "usd"},
		{UsageDate: "2024-01-01", Service: "Cloud Storage", ProjectID: "shop-prod", Cost: 0.2, Currency: "USD"},
	}}
	e := NewWithSource(src, "billing-proj", "billing.gcp_billing_export_v1_0000")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows, err := e.Extract(context.Background(), start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Compute Engine", rows[0].Service)
	assert.Equal(t, "europe-west1", rows[0].Region)
	assert.Equal(t, "shop-prod", rows[0].AccountID)
	assert.Equal(t, "Shop", rows[0].AccountName)
	assert.Equal(t, "USD", rows[0].Currency)
	assert.Equal(t, "", rows[1].Region)

	assert.Contains(t, src.sql, "FROM `billing-proj.billing.gcp_billing_export_v1_0000`")
	assert.Contains(t, src.sql, "FORMAT_DATE('%Y-%m-%d'")
	require.Len(t, src.params, 2)
	assert.Equal(t, "2024-01-01", src.params[0].Value)
	assert.Equal(t, "2024-01-08", src.params[1].Value)
	assert.NoError(t, e.Close())
}

func TestExtract_QueryError(t *testing.T) {
	e := NewWithSource(&fakeSource{err: errors.New("notFound: dataset")}, "p", "d.t")

	_, err := e.Extract(context.Background(), time.Now(), time.Now())
	assert.ErrorContains(t, err, "notFound")
}

func TestConvertBudgets(t *testing.T) {
	list := []*budgetspb.Budget{
		{
			DisplayName: "gcp-monthly",
			Amount: &budgetspb.BudgetAmount{BudgetAmount: &budgetspb.BudgetAmount_SpecifiedAmount{
				SpecifiedAmount: &money.Money{CurrencyCode: "USD", Units: 1500, Nanos: 500000000},
			}},
			ThresholdRules: []*budgetspb.ThresholdRule{{ThresholdPercent: 0.5}, {ThresholdPercent: 0.9}, {ThresholdPercent: 1.0}},
		},
		{
			DisplayName: "last-period",
			Amount: &budgetspb.BudgetAmount{BudgetAmount: &budgetspb.BudgetAmount_LastPeriodAmount{
				LastPeriodAmount: &budgetspb.LastPeriodAmount{},
			}},
		},
	}

	out := convertBudgets(list)

	require.Len(t, out, 1)
	assert.Equal(t, "gcp-monthly", out[0].Name)
	assert.Equal(t, Cloud, out[0].Cloud)
	assert.Equal(t, 1500.5, out[0].MonthlyLimit)
	assert.Equal(t, []int{50, 90, 100}, out[0].AlertAt)
}
