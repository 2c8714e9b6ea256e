package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"iso day", "2024-01-31", true},
		{"azure compact", "20240131", true},
		{"rfc3339", "2024-01-31T17:45:00Z", true},
		{"float encoded", "2.0240131e+07", true},
		{"padded", "  2024-01-31 ", true},
		{"empty", "", false},
		{"garbage", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
			} else {
				assert.True(t, got.IsZero())
			}
		})
	}
}

func TestNormalize_FillsDefaults(t *testing.T) {
	records := Normalize("AWS", []RawRow{
		{Date: "2024-03-01", Service: " Amazon EC2 ", Cost: 12.5},
		{Date: "not-a-date", Service: "Amazon S3", Region: "us-east-1", AccountID: "123", AccountName: "Prod", Cost: 1, Currency: "EUR"},
	})

	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "AWS", first.Cloud)
	assert.Equal(t, "Amazon EC2", first.Service)
	assert.Equal(t, Unknown, first.Region)
	assert.Equal(t, Unknown, first.AccountID)
	assert.Equal(t, Unknown, first.AccountName)
	assert.Equal(t, DefaultCurrency, first.Currency)
	assert.Equal(t, "2024-03-01", first.DateKey())

	second := records[1]
	assert.True(t, second.Date.IsZero(), "malformed date must normalize to zero")
	assert.Equal(t, "EUR", second.Currency)
	assert.Equal(t, "Prod", second.AccountName)
}

func TestResult_Records(t *testing.T) {
	day := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		result      Result
		wantService string
		wantLen     int
	}{
		{
			name:    "success",
			result:  Success("AWS", []RawRow{{Date: "2024-03-01", Service: "EC2", Cost: 3}, {Date: "2024-03-02", Service: "S3", Cost: 1}}),
			wantLen: 2,
		},
		{
			name:        "empty success becomes no data",
			result:      Success("Azure", nil),
			wantService: string(ReasonNoData),
			wantLen:     1,
		},
		{
			name:        "not configured",
			result:      Unavailable("Azure", ReasonNotConfigured, nil),
			wantService: string(ReasonNotConfigured),
			wantLen:     1,
		},
		{
			name:        "extraction error",
			result:      Unavailable("GCP", ReasonConfigurationError, errors.New("boom")),
			wantService: string(ReasonConfigurationError),
			wantLen:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := tt.result.Records(day)
			require.Len(t, records, tt.wantLen)
			if tt.wantService == "" {
				assert.True(t, tt.result.OK())
				return
			}
			p := records[0]
			assert.False(t, tt.result.OK())
			assert.Equal(t, tt.wantService, p.Service)
			assert.Equal(t, tt.result.Cloud, p.Cloud)
			assert.Zero(t, p.Cost)
			assert.Equal(t, "2024-03-01", p.DateKey())
			assert.True(t, IsPlaceholder(p))
		})
	}
}

func TestUnavailable_WrapsCause(t *testing.T) {
	cause := errors.New("credentials expired")
	r := Unavailable("AWS", ReasonConfigurationError, cause)

	assert.ErrorIs(t, r.Err, ErrSourceUnavailable)
	assert.ErrorIs(t, r.Err, cause)
	assert.Contains(t, r.Err.Error(), "Configuration Error")
}

func TestIsPlaceholder_RealZeroCostRecord(t *testing.T) {
	r := CostRecord{Cloud: "AWS", Service: "No Data", Region: "us-east-1", AccountID: "123"}
	assert.False(t, IsPlaceholder(r))
}

func TestSummarize(t *testing.T) {
	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 2)

	summary := Summarize([]CostRecord{
		{Date: d2, Cloud: "Azure", Cost: 2},
		{Date: d1, Cloud: "AWS", Cost: 5},
		{Date: d1, Cloud: "Azure", Cost: 1},
		{Cloud: "GCP", Cost: 0},
	})

	assert.Equal(t, 4, summary.Records)
	assert.InDelta(t, 8.0, summary.TotalCost, 1e-9)
	assert.Equal(t, []string{"Azure", "AWS", "GCP"}, summary.Clouds)
	assert.InDelta(t, 3.0, summary.ByCloud["Azure"], 1e-9)
	assert.True(t, d1.Equal(summary.StartDate))
	assert.True(t, d2.Equal(summary.EndDate))
}
