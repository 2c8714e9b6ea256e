package gcp

import (
	"context"
	"fmt"
	"math"

	budgets "cloud.google.com/go/billing/budgets/apiv1"
	"cloud.google.com/go/billing/budgets/apiv1/budgetspb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/kpi"
)

// ImportBudgets lists the budgets of the configured billing account
func ImportBudgets(ctx context.Context, cfg config.GCPConfig) ([]kpi.Budget, error) {
	if cfg.BillingAccount == "" {
		return nil, fmt.Errorf("GCP billing_account is required to import budgets")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := budgets.NewBudgetClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget client: %w", err)
	}
	defer client.Close()

	req := &budgetspb.ListBudgetsRequest{
		Parent: fmt.Sprintf("billingAccounts/%s", cfg.BillingAccount),
	}

	var list []*budgetspb.Budget
	it := client.ListBudgets(ctx, req)
	for {
		b, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list budgets: %w", err)
		}
		list = append(list, b)
	}

	return convertBudgets(list), nil
}

// convertBudgets keeps budgets with a specified amount; last-period
// budgets carry no fixed limit.
func convertBudgets(list []*budgetspb.Budget) []kpi.Budget {
	out := make([]kpi.Budget, 0, len(list))
	for _, b := range list {
		money := b.GetAmount().GetSpecifiedAmount()
		if money == nil {
			continue
		}

		limit := float64(money.GetUnits()) + float64(money.GetNanos())/1e9

		var alertAt []int
		for _, rule := range b.GetThresholdRules() {
			alertAt = append(alertAt, int(math.Round(rule.GetThresholdPercent()*100)))
		}

		out = append(out, kpi.Budget{
			Name:         b.GetDisplayName(),
			Cloud:        Cloud,
			MonthlyLimit: limit,
			AlertAt:      alertAt,
		})
	}
	return out
}
