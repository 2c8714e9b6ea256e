// Package aws provides AWS Cost Explorer integration
package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/shopspring/decimal"

	internalConfig "github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// Cloud is the provider identifier carried by AWS records
const Cloud = "AWS"

const costMetric = "UnblendedCost"

// CostExplorerAPI is the subset of the Cost Explorer client used here
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// IdentityAPI is the subset of the STS client used here
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Extractor pulls daily costs grouped by service and region
type Extractor struct {
	ce       CostExplorerAPI
	identity IdentityAPI
}

// New creates an extractor from the default credential chain, assuming
// cfg.RoleARN when set.
func New(ctx context.Context, cfg internalConfig.AWSConfig) (*Extractor, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// If role ARN specified, assume role
	if cfg.RoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		creds := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN)
		awsCfg.Credentials = aws.NewCredentialsCache(creds)
	}

	return NewWithClients(costexplorer.NewFromConfig(awsCfg), sts.NewFromConfig(awsCfg)), nil
}

// NewWithClients wires prebuilt clients
func NewWithClients(ce CostExplorerAPI, identity IdentityAPI) *Extractor {
	return &Extractor{ce: ce, identity: identity}
}

// Name returns the provider name
func (e *Extractor) Name() string {
	return "aws-cost-explorer"
}

// Extract retrieves daily unblended cost for [start, end)
func (e *Extractor) Extract(ctx context.Context, start, end time.Time) ([]normalizer.RawRow, error) {
	accountID := ""
	if e.identity != nil {
		out, err := e.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return nil, fmt.Errorf("failed to get caller identity: %w", err)
		}
		accountID = aws.ToString(out.Account)
	}

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(start.Format(normalizer.DateLayout)),
			End:   aws.String(end.Format(normalizer.DateLayout)),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{costMetric},
		GroupBy: []types.GroupDefinition{
			{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
			{Type: types.GroupDefinitionTypeDimension, Key: aws.String("REGION")},
		},
	}

	rows := make([]normalizer.RawRow, 0)

	// Handle pagination manually
	for {
		output, err := e.ce.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get cost data: %w", err)
		}

		parsed, err := parseResults(output.ResultsByTime, accountID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parsed...)

		if output.NextPageToken == nil {
			break
		}
		input.NextPageToken = output.NextPageToken
	}

	return rows, nil
}

func parseResults(results []types.ResultByTime, accountID string) ([]normalizer.RawRow, error) {
	var rows []normalizer.RawRow

	for _, result := range results {
		if result.TimePeriod == nil {
			continue
		}
		date := aws.ToString(result.TimePeriod.Start)

		for _, group := range result.Groups {
			row := normalizer.RawRow{
				Date:      date,
				AccountID: accountID,
				Currency:  normalizer.DefaultCurrency,
			}
			if len(group.Keys) > 0 {
				row.Service = group.Keys[0]
			}
			if len(group.Keys) > 1 {
				row.Region = group.Keys[1]
			}

			if m, ok := group.Metrics[costMetric]; ok && m.Amount != nil {
				amount, err := decimal.NewFromString(*m.Amount)
				if err != nil {
					return nil, fmt.Errorf("invalid cost amount %q for %s: %w", *m.Amount, row.Service, err)
				}
				row.Cost = amount.InexactFloat64()
				if m.Unit != nil {
					row.Currency = *m.Unit
				}
			}

			rows = append(rows, row)
		}
	}

	return rows, nil
}
