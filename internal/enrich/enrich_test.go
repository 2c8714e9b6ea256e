package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		service string
		want    string
	}{
		{"Amazon EC2", CategoryCompute},
		{"EC2 - Other", CategoryCompute},
		{"AWS Lambda", CategoryCompute},
		{"Amazon ECS", CategoryCompute},
		{"Amazon Elastic Compute Cloud - Compute", CategoryCompute},
		{"Virtual Machines", CategoryCompute},
		{"Compute Engine", CategoryCompute},
		{"Amazon S3", CategoryStorage},
		{"amazon s3", CategoryStorage},
		{"Amazon Simple Storage Service", CategoryStorage},
		{"Cloud Storage", CategoryStorage},
		{"Amazon RDS", CategoryDatabase},
		{"Amazon DynamoDB", CategoryDatabase},
		{"Amazon Relational Database Service", CategoryDatabase},
		{"Azure SQL Database", CategoryDatabase},
		{"Cloud SQL", CategoryDatabase},
		{"Amazon CloudFront", CategoryNetworking},
		{"Amazon VPC", CategoryNetworking},
		{"AWS Data Transfer", CategoryNetworking},
		{"Amazon Route 53", CategoryNetworking},
		{"Virtual Network", CategoryNetworking},
		{"Amazon Athena", CategoryAnalytics},
		{"BigQuery", CategoryAnalytics},
		{"AWS Secrets Manager", CategorySecurity},
		{"Amazon GuardDuty", CategorySecurity},
		{"Amazon CloudWatch", CategoryManagement},
		{"AWS Systems Manager", CategoryManagement},
		{"Azure Monitor", CategoryManagement},
		{"Configuration Error", CategoryManagement},
		{"No Data", CategoryOther},
		{"Unknown", CategoryOther},
		{"", CategoryOther},
		{"Tax", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.service))
		})
	}
}

func TestCategorize_FirstRuleWins(t *testing.T) {
	// contains both a compute and a storage keyword
	assert.Equal(t, CategoryCompute, Categorize("EC2 snapshot to S3"))
}

func TestCategorize_Total(t *testing.T) {
	valid := make(map[string]bool)
	for _, c := range Categories() {
		valid[c] = true
	}
	require.Len(t, valid, 8)

	names := []string{"Amazon EC2", "x", "Glacier Deep Archive", "???", "Kinesis Firehose", "Key Vault", "élan"}
	for _, n := range names {
		first := Categorize(n)
		assert.True(t, valid[first], "%q -> %q", n, first)
		assert.Equal(t, first, Categorize(n), "classification must be deterministic")
	}
}

func TestEnrichRecord_Calendar(t *testing.T) {
	tests := []struct {
		name        string
		date        time.Time
		wantWeek    int
		wantIdx     int
		wantDay     string
		wantWeekend bool
		wantYM      string
	}{
		{"monday", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), 10, 0, "Monday", false, "2024-03"},
		{"friday", time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), 10, 4, "Friday", false, "2024-03"},
		{"saturday", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), 10, 5, "Saturday", true, "2024-03"},
		{"sunday", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 10, 6, "Sunday", true, "2024-03"},
		// ISO week 1 of 2021 starts on Jan 4; Jan 1 2021 belongs to week 53 of 2020
		{"iso boundary", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 53, 4, "Friday", false, "2021-01"},
		{"leap day", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 9, 3, "Thursday", false, "2024-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EnrichRecord(normalizer.CostRecord{Date: tt.date, Service: "Amazon EC2", Cost: 1})

			assert.Equal(t, tt.date.Year(), r.Year)
			assert.Equal(t, int(tt.date.Month()), r.Month)
			assert.Equal(t, tt.date.Month().String(), r.MonthName)
			assert.Equal(t, tt.wantWeek, r.ISOWeek)
			assert.Equal(t, tt.wantIdx, r.WeekdayIndex)
			assert.Equal(t, tt.wantDay, r.WeekdayName)
			assert.Equal(t, tt.wantWeekend, r.IsWeekend)
			assert.Equal(t, tt.wantYM, r.YearMonth)
			assert.Equal(t, CategoryCompute, r.ServiceCategory)
		})
	}
}

func TestEnrich_PreservesRecords(t *testing.T) {
	in := []normalizer.CostRecord{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Cloud: "AWS", Service: "Amazon S3", Cost: 2},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Cloud: "Azure", Service: "Storage", Cost: 3},
	}

	out := Enrich(in)

	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0].CostRecord)
	assert.Equal(t, in[1], out[1].CostRecord)
	assert.Equal(t, CategoryStorage, out[1].ServiceCategory)
}
