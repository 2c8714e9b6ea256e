// Package reporter writes pipeline artifacts and reads raw cost datasets
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lvonguyen/finops-pipeline/internal/aggregator"
	"github.com/lvonguyen/finops-pipeline/internal/config"
	"github.com/lvonguyen/finops-pipeline/internal/kpi"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
	"github.com/lvonguyen/finops-pipeline/internal/pipeline"
)

// TimestampLayout is the timestamp embedded in every artifact name
const TimestampLayout = "20060102_150405"

// Artifact name prefixes
const (
	PrefixRaw              = "multicloud_costs"
	PrefixEnriched         = "costs_enriched"
	PrefixTopServices      = "top10_services"
	PrefixMonthlyEvolution = "monthly_evolution"
	PrefixCategorySummary  = "category_summary"
	PrefixAccountSummary   = "account_summary"
	PrefixKPIs             = "kpis"
)

// ErrNoArtifact is returned by Latest when nothing matches
var ErrNoArtifact = errors.New("no matching artifact")

var rawHeader = []string{"Date", "Cloud", "Service", "Region", "AccountID", "AccountName", "Cost", "Currency"}

// Artifacts lists the files written by one WriteArtifacts call
type Artifacts struct {
	Timestamp string
	Files     []string
}

// Reporter persists datasets under the configured directories
type Reporter struct {
	config config.ReporterConfig
	now    func() time.Time
}

// New creates a new Reporter
func New(cfg config.ReporterConfig) *Reporter {
	return &Reporter{config: cfg, now: time.Now}
}

// Pattern returns the glob matching every artifact with the given prefix
func Pattern(prefix, ext string) string {
	return prefix + "_*." + ext
}

func filename(prefix, stamp, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, stamp, ext)
}

func (r *Reporter) stamp() string {
	return r.now().Format(TimestampLayout)
}

// WriteRaw saves merged records as the raw dataset consumed by transform
func (r *Reporter) WriteRaw(records []normalizer.CostRecord) (string, error) {
	if err := os.MkdirAll(r.config.RawDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create raw directory: %w", err)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.DateKey(),
			rec.Cloud,
			rec.Service,
			rec.Region,
			rec.AccountID,
			rec.AccountName,
			decimal.NewFromFloat(rec.Cost).String(),
			rec.Currency,
		})
	}

	path := filepath.Join(r.config.RawDir, filename(PrefixRaw, r.stamp(), "csv"))
	if err := writeCSV(path, rawHeader, rows); err != nil {
		return "", err
	}
	return path, nil
}

// ReadRaw loads a raw dataset written by WriteRaw. Rows with an unparseable
// date keep a zero date so cleaning can count and drop them.
func ReadRaw(path string) ([]normalizer.CostRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(rawHeader)

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read raw dataset %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("raw dataset %s has no header", path)
	}

	records := make([]normalizer.CostRecord, 0, len(lines)-1)
	for i, line := range lines[1:] {
		cost, err := decimal.NewFromString(line[6])
		if err != nil {
			return nil, fmt.Errorf("raw dataset %s line %d: invalid cost %q: %w", path, i+2, line[6], err)
		}
		date, _ := normalizer.ParseDate(line[0])
		records = append(records, normalizer.CostRecord{
			Date:        date,
			Cloud:       line[1],
			Service:     line[2],
			Region:      line[3],
			AccountID:   line[4],
			AccountName: line[5],
			Cost:        cost.InexactFloat64(),
			Currency:    line[7],
		})
	}
	return records, nil
}

// LatestRaw returns the newest raw dataset
func (r *Reporter) LatestRaw() (string, error) {
	return Latest(r.config.RawDir, Pattern(PrefixRaw, "csv"))
}

// WriteArtifacts writes the enriched dataset, the five aggregates, the
// summary tables and the KPI report. All files share one timestamp.
func (r *Reporter) WriteArtifacts(res *pipeline.Result) (Artifacts, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	out := Artifacts{Timestamp: r.stamp()}
	add := func(prefix string, header []string, rows [][]string) error {
		path := filepath.Join(r.config.OutputDir, filename(prefix, out.Timestamp, "csv"))
		if err := writeCSV(path, header, rows); err != nil {
			return err
		}
		out.Files = append(out.Files, path)
		return nil
	}

	if err := add(PrefixEnriched, enrichedHeader, enrichedRows(res)); err != nil {
		return out, err
	}
	if err := add(aggregator.ViewDaily, []string{"Date", "TotalCost", "IsAnomaly"}, dailyRows(res)); err != nil {
		return out, err
	}
	for _, v := range res.Views.All() {
		if v.Name == aggregator.ViewDaily {
			continue
		}
		if err := add(v.Name, append(append([]string{}, v.Dimensions...), "Cost"), viewRows(v)); err != nil {
			return out, err
		}
	}

	summary := res.Summary
	services := make([]kpi.Share, len(summary.TopServices))
	for i, s := range summary.TopServices {
		services[i] = kpi.Share{Name: s.Service, Cost: s.Cost, Percentage: s.Percentage}
	}
	if err := add(PrefixTopServices, []string{"Service", "Cost", "Percentage"}, shareRows(services)); err != nil {
		return out, err
	}
	months := make([][]string, len(summary.MonthlyEvolution))
	for i, m := range summary.MonthlyEvolution {
		months[i] = []string{m.Month, formatCost(m.TotalCost)}
	}
	if err := add(PrefixMonthlyEvolution, []string{"YearMonth", "TotalCost"}, months); err != nil {
		return out, err
	}
	if err := add(PrefixCategorySummary, []string{"ServiceCategory", "Cost", "Percentage"}, shareRows(summary.Categories)); err != nil {
		return out, err
	}
	if err := add(PrefixAccountSummary, []string{"AccountName", "Cost", "Percentage"}, shareRows(summary.Accounts)); err != nil {
		return out, err
	}

	path, err := r.writeKPIs(res.Report, out.Timestamp)
	if err != nil {
		return out, err
	}
	out.Files = append(out.Files, path)

	return out, nil
}

// WriteKPIs writes the KPI report as indented JSON
func (r *Reporter) WriteKPIs(report kpi.Report) (string, error) {
	return r.writeKPIs(report, r.stamp())
}

func (r *Reporter) writeKPIs(report kpi.Report, stamp string) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	path := filepath.Join(r.config.OutputDir, filename(PrefixKPIs, stamp, "json"))
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// Latest returns the most recently modified file in dir matching pattern.
// Names break modification time ties, so the later timestamp wins.
func Latest(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var latest string
	var latestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		mod := info.ModTime()
		if latest == "" || mod.After(latestMod) || (mod.Equal(latestMod) && m > latest) {
			latest, latestMod = m, mod
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%s in %s: %w", pattern, dir, ErrNoArtifact)
	}
	return latest, nil
}

var enrichedHeader = []string{
	"Date", "Cloud", "Service", "Region", "AccountID", "AccountName", "Cost", "Currency",
	"Year", "Month", "MonthName", "ISOWeek", "WeekdayIndex", "WeekdayName", "IsWeekend",
	"YearMonth", "ServiceCategory",
}

func enrichedRows(res *pipeline.Result) [][]string {
	rows := make([][]string, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, []string{
			rec.DateKey(),
			rec.Cloud,
			rec.Service,
			rec.Region,
			rec.AccountID,
			rec.AccountName,
			formatCost(rec.Cost),
			rec.Currency,
			strconv.Itoa(rec.Year),
			strconv.Itoa(rec.Month),
			rec.MonthName,
			strconv.Itoa(rec.ISOWeek),
			strconv.Itoa(rec.WeekdayIndex),
			rec.WeekdayName,
			strconv.FormatBool(rec.IsWeekend),
			rec.YearMonth,
			rec.ServiceCategory,
		})
	}
	return rows
}

func dailyRows(res *pipeline.Result) [][]string {
	rows := make([][]string, 0, len(res.Daily))
	for _, d := range res.Daily {
		rows = append(rows, []string{
			d.Date.Format(normalizer.DateLayout),
			formatCost(d.TotalCost),
			strconv.FormatBool(d.IsAnomaly),
		})
	}
	return rows
}

func viewRows(v aggregator.Aggregate) [][]string {
	rows := make([][]string, 0, len(v.Rows))
	for _, row := range v.Rows {
		rows = append(rows, append(append([]string{}, row.Keys...), formatCost(row.Cost)))
	}
	return rows
}

func shareRows(shares []kpi.Share) [][]string {
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, []string{s.Name, formatCost(s.Cost), formatCost(s.Percentage)})
	}
	return rows
}

func formatCost(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
