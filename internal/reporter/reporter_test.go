package reporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
	"github.com/lvonguyen/finops-pipeline/internal/pipeline"
)

var fixedNow = time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)

func newTestReporter(t *testing.T) *Reporter {
	dir := t.TempDir()
	r := New(config.ReporterConfig{
		OutputDir: filepath.Join(dir, "processed"),
		RawDir:    filepath.Join(dir, "raw"),
	})
	r.now = func() time.Time { return fixedNow }
	return r
}

func sampleRecords() []normalizer.CostRecord {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	return []normalizer.CostRecord{
		{Date: day(1), Cloud: "AWS", Service: "Amazon EC2", Region: "us-east-1", AccountID: "1", AccountName: "Production", Cost: 12.345, Currency: "USD"},
		{Date: day(1), Cloud: "AWS", Service: "Amazon S3", Region: "us-east-1", AccountID: "1", AccountName: "Production", Cost: 3.5, Currency: "USD"},
		{Date: day(2), Cloud: "AWS", Service: "Amazon EC2", Region: "eu-west-1", AccountID: "2", AccountName: "Staging", Cost: 8, Currency: "USD"},
		normalizer.Placeholder("Azure", normalizer.ReasonNotConfigured, day(1)),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return lines
}

func TestWriteArtifacts(t *testing.T) {
	r := newTestReporter(t)
	res, err := pipeline.New(zap.NewNop(), pipeline.Options{}).Transform(context.Background(), sampleRecords())
	require.NoError(t, err)

	artifacts, err := r.WriteArtifacts(res)
	require.NoError(t, err)

	assert.Equal(t, "20240201_083000", artifacts.Timestamp)
	require.Len(t, artifacts.Files, 11)

	var names []string
	for _, f := range artifacts.Files {
		names = append(names, filepath.Base(f))
	}
	assert.ElementsMatch(t, []string{
		"costs_enriched_20240201_083000.csv",
		"daily_costs_20240201_083000.csv",
		"daily_service_costs_20240201_083000.csv",
		"monthly_account_costs_20240201_083000.csv",
		"category_costs_20240201_083000.csv",
		"region_costs_20240201_083000.csv",
		"top10_services_20240201_083000.csv",
		"monthly_evolution_20240201_083000.csv",
		"category_summary_20240201_083000.csv",
		"account_summary_20240201_083000.csv",
		"kpis_20240201_083000.json",
	}, names)

	daily := readCSV(t, filepath.Join(r.config.OutputDir, "daily_costs_20240201_083000.csv"))
	assert.Equal(t, [][]string{
		{"Date", "TotalCost", "IsAnomaly"},
		{"2024-01-01", "15.85", "false"},
		{"2024-01-02", "8.00", "false"},
	}, daily)

	enriched := readCSV(t, filepath.Join(r.config.OutputDir, "costs_enriched_20240201_083000.csv"))
	require.Len(t, enriched, 5)
	assert.Equal(t, enrichedHeader, enriched[0])
	assert.Equal(t, "Compute", enriched[1][16])

	region := readCSV(t, filepath.Join(r.config.OutputDir, "region_costs_20240201_083000.csv"))
	assert.Equal(t, []string{"Date", "Region", "Cost"}, region[0])

	raw, err := os.ReadFile(filepath.Join(r.config.OutputDir, "kpis_20240201_083000.json"))
	require.NoError(t, err)
	var kpis map[string]any
	require.NoError(t, json.Unmarshal(raw, &kpis))
	assert.InDelta(t, 23.85, kpis["total_cost"], 1e-9)
	assert.Contains(t, kpis, "trend_pct")
}

func TestRawRoundTrip(t *testing.T) {
	r := newTestReporter(t)
	records := sampleRecords()

	path, err := r.WriteRaw(records)
	require.NoError(t, err)
	assert.Equal(t, "multicloud_costs_20240201_083000.csv", filepath.Base(path))

	latest, err := r.LatestRaw()
	require.NoError(t, err)
	assert.Equal(t, path, latest)

	got, err := ReadRaw(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadRaw_InvalidRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multicloud_costs_x.csv")

	content := "Date,Cloud,Service,Region,AccountID,AccountName,Cost,Currency\n" +
		"not-a-date,AWS,Amazon EC2,us-east-1,1,Prod,1.5,USD\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := ReadRaw(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Date.IsZero())

	bad := content + "2024-01-01,AWS,Amazon EC2,us-east-1,1,Prod,abc,USD\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))

	_, err = ReadRaw(path)
	assert.ErrorContains(t, err, "line 3")
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "kpis_20240101_000000.json")
	newer := filepath.Join(dir, "kpis_20240102_000000.json")
	other := filepath.Join(dir, "costs_enriched_20240103_000000.csv")

	for _, p := range []string{older, newer, other} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0644))
	}
	base := time.Now()
	require.NoError(t, os.Chtimes(older, base, base.Add(time.Hour)))
	require.NoError(t, os.Chtimes(newer, base, base))

	got, err := Latest(dir, Pattern(PrefixKPIs, "json"))
	require.NoError(t, err)
	assert.Equal(t, older, got)

	require.NoError(t, os.Chtimes(newer, base, base.Add(time.Hour)))
	got, err = Latest(dir, Pattern(PrefixKPIs, "json"))
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestLatest_NoMatch(t *testing.T) {
	_, err := Latest(t.TempDir(), Pattern(PrefixKPIs, "json"))
	assert.ErrorIs(t, err, ErrNoArtifact)
}
