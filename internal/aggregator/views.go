package aggregator

import (
	"sort"

	"github.com/lvonguyen/finops-pipeline/internal/enrich"
	"github.com/lvonguyen/finops-pipeline/internal/normalizer"
)

// View names
const (
	ViewDaily          = "daily_costs"
	ViewDailyService   = "daily_service_costs"
	ViewMonthlyAccount = "monthly_account_costs"
	ViewDailyCategory  = "category_costs"
	ViewDailyRegion    = "region_costs"
)

// Row is one group of an Aggregate
type Row struct {
	Keys []string
	Cost float64
}

// Aggregate is the summed cost per group key for one grouping dimension.
// Rows are sorted by key and only groups with records appear.
type Aggregate struct {
	Name       string
	Dimensions []string
	Rows       []Row
}

// Total sums every row
func (a Aggregate) Total() float64 {
	var total float64
	for _, r := range a.Rows {
		total += r.Cost
	}
	return total
}

// Lookup returns the cost of the group with the given keys
func (a Aggregate) Lookup(keys ...string) (float64, bool) {
	for _, r := range a.Rows {
		if equalKeys(r.Keys, keys) {
			return r.Cost, true
		}
	}
	return 0, false
}

// Views holds the five grouped views derived from one enriched snapshot
type Views struct {
	Daily          Aggregate
	DailyService   Aggregate
	MonthlyAccount Aggregate
	DailyCategory  Aggregate
	DailyRegion    Aggregate
}

// All returns the views in a fixed order
func (v Views) All() []Aggregate {
	return []Aggregate{v.Daily, v.DailyService, v.MonthlyAccount, v.DailyCategory, v.DailyRegion}
}

type grouping struct {
	name       string
	dimensions []string
	key        func(r enrich.Record) []string
}

func dateKey(r enrich.Record) string { return r.Date.Format(normalizer.DateLayout) }

var groupings = []grouping{
	{ViewDaily, []string{"Date"}, func(r enrich.Record) []string {
		return []string{dateKey(r)}
	}},
	{ViewDailyService, []string{"Date", "Service"}, func(r enrich.Record) []string {
		return []string{dateKey(r), r.Service}
	}},
	{ViewMonthlyAccount, []string{"YearMonth", "AccountName"}, func(r enrich.Record) []string {
		return []string{r.YearMonth, r.AccountName}
	}},
	{ViewDailyCategory, []string{"Date", "ServiceCategory"}, func(r enrich.Record) []string {
		return []string{dateKey(r), r.ServiceCategory}
	}},
	{ViewDailyRegion, []string{"Date", "Region"}, func(r enrich.Record) []string {
		return []string{dateKey(r), r.Region}
	}},
}

// Build computes all five views from the same records
func Build(records []enrich.Record) Views {
	out := make([]Aggregate, len(groupings))
	for i, g := range groupings {
		out[i] = group(g, records)
	}
	return Views{
		Daily:          out[0],
		DailyService:   out[1],
		MonthlyAccount: out[2],
		DailyCategory:  out[3],
		DailyRegion:    out[4],
	}
}

// GroupBy sums cost per value of one key function. Used for ad-hoc
// single-dimension totals such as cost per service or per cloud.
func GroupBy(name, dimension string, records []enrich.Record, key func(enrich.Record) string) Aggregate {
	return group(grouping{name, []string{dimension}, func(r enrich.Record) []string {
		return []string{key(r)}
	}}, records)
}

func group(g grouping, records []enrich.Record) Aggregate {
	index := make(map[string]int)
	rows := make([]Row, 0)

	for _, r := range records {
		keys := g.key(r)
		id := joinKeys(keys)
		i, ok := index[id]
		if !ok {
			i = len(rows)
			index[id] = i
			rows = append(rows, Row{Keys: keys})
		}
		rows[i].Cost += r.Cost
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return lessKeys(rows[i].Keys, rows[j].Keys)
	})

	return Aggregate{Name: g.name, Dimensions: g.dimensions, Rows: rows}
}

func joinKeys(keys []string) string {
	n := 0
	for _, k := range keys {
		n += len(k) + 1
	}
	b := make([]byte, 0, n)
	for _, k := range keys {
		b = append(b, k...)
		b = append(b, 0)
	}
	return string(b)
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
