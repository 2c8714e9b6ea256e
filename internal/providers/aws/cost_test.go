package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCE struct {
	pages  []*costexplorer.GetCostAndUsageOutput
	inputs []costexplorer.GetCostAndUsageInput
	err    error
}

func (f *fakeCE) GetCostAndUsage(_ context.Context, in *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.inputs = append(f.inputs, *in)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[len(f.inputs)-1], nil
}

type fakeSTS struct{ account string }

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func group(service, region, amount string) types.Group {
	return types.Group{
		Keys: []string{service, region},
		Metrics: map[string]types.MetricValue{
			costMetric: {Amount: aws.String(amount), Unit: aws.String("USD")},
		},
	}
}

func TestExtract_Paginates(t *testing.T) {
	ce := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{
		{
			ResultsByTime: []types.ResultByTime{{
				TimePeriod: &types.DateInterval{Start: aws.String("2024-01-01"), End: aws.String("2024-01-02")},
				Groups:     []types.Group{group("Amazon EC2", "us-east-1", "12.345"), group("Amazon S3", "eu-west-1", "0.5")},
			}},
			NextPageToken: aws.String("page-2"),
		},
		{
			ResultsByTime: []types.ResultByTime{{
				TimePeriod: &types.DateInterval{Start: aws.String("2024-01-02"), End: aws.String("2024-01-03")},
				Groups:     []types.Group{group("AWS Lambda", "us-east-1", "1")},
			}},
		},
	}}

	e := NewWithClients(ce, fakeSTS{account: "123456789012"})
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows, err := e.Extract(context.Background(), start, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "2024-01-01", rows[0].Date)
	assert.Equal(t, "Amazon EC2", rows[0].Service)
	assert.Equal(t, "us-east-1", rows[0].Region)
	assert.Equal(t, "123456789012", rows[0].AccountID)
	assert.Equal(t, 12.345, rows[0].Cost)
	assert.Equal(t, "USD", rows[0].Currency)
	assert.Equal(t, "AWS Lambda", rows[2].Service)

	require.Len(t, ce.inputs, 2)
	assert.Nil(t, ce.inputs[0].NextPageToken)
	assert.Equal(t, "page-2", aws.ToString(ce.inputs[1].NextPageToken))
	assert.Equal(t, "2024-01-03", aws.ToString(ce.inputs[0].TimePeriod.End))
	assert.Equal(t, types.GranularityDaily, ce.inputs[0].Granularity)
	require.Len(t, ce.inputs[0].GroupBy, 2)
	assert.Equal(t, "REGION", aws.ToString(ce.inputs[0].GroupBy[1].Key))
}

func TestExtract_APIError(t *testing.T) {
	e := NewWithClients(&fakeCE{err: errors.New("AccessDeniedException")}, nil)

	_, err := e.Extract(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

func TestExtract_BadAmount(t *testing.T) {
	ce := &fakeCE{pages: []*costexplorer.GetCostAndUsageOutput{{
		ResultsByTime: []types.ResultByTime{{
			TimePeriod: &types.DateInterval{Start: aws.String("2024-01-01")},
			Groups:     []types.Group{group("Amazon EC2", "us-east-1", "n/a")},
		}},
	}}}

	_, err := NewWithClients(ce, nil).Extract(context.Background(), time.Now(), time.Now())
	assert.ErrorContains(t, err, "invalid cost amount")
}
