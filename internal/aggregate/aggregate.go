// Package aggregate turns raw per-domain records into the totals, buckets and
// region snapshot the dashboard renders. Functions here are pure; Engine adds
// the record store in front of them.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Skufu/onehealth/internal/numeric"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
	"github.com/Skufu/onehealth/internal/stats"
)

type RegionTotal struct {
	Region string `json:"region"`
	Total  int64  `json:"total"`
}

type IndicatorBucket struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type RegionAggregate struct {
	Region     string `json:"region"`
	FvrHumain  int64  `json:"fvr_humain"`
	FvrAnimal  int64  `json:"fvr_animal"`
	AvianFlu   int64  `json:"grippe_aviaire"`
	Malaria    int64  `json:"malaria"`
	TotalCases int64  `json:"total_cases"`
}

// Options are the policy knobs the aggregations depend on.
type Options struct {
	MalariaIndicator      string
	TuberculosisIndicator string
	NationalZone          string
	MalariaDivisor        int64
	BucketLimit           int
	NameDisplayCap        int
}

func DefaultOptions() Options {
	return Options{
		MalariaIndicator:      "MALARIA_CONF_CASES",
		TuberculosisIndicator: "MDG_0000000020",
		NationalZone:          "National",
		MalariaDivisor:        1000,
		BucketLimit:           6,
		NameDisplayCap:        35,
	}
}

type point struct {
	region string
	year   int
	value  int64
}

func roundValue(v float64) int64 {
	return int64(math.Round(v))
}

// points flattens a domain into (region, year, value). Indicator values are
// rounded per record so regional and national sums stay additive.
func points(data records.Dataset, domain records.Domain, tally *numeric.Tally) []point {
	var out []point
	switch domain {
	case records.FvrHumain:
		for _, r := range data.FvrHumain {
			out = append(out, point{r.Region, r.ReportDate.Year(), r.Confirmed})
		}
	case records.FvrAnimal:
		for _, r := range data.FvrAnimal {
			out = append(out, point{r.Region, r.Year, r.Cases})
		}
	case records.AvianFlu:
		for _, r := range data.AvianFlu {
			out = append(out, point{r.Region, r.ReportDate.Year(), r.Confirmed})
		}
	case records.Malaria, records.Tuberculosis:
		rows := data.Malaria
		if domain == records.Tuberculosis {
			rows = data.Tuberculosis
		}
		for _, r := range rows {
			v, ok := tally.Parse(r.Measure())
			if !ok {
				continue
			}
			out = append(out, point{r.Region, r.Year, roundValue(v)})
		}
	case records.Pollution:
		for _, r := range data.Pollution {
			v, ok := tally.Parse(r.ConcentrationPM25)
			if !ok {
				continue
			}
			out = append(out, point{r.Zone, r.Year, roundValue(v)})
		}
	}
	return out
}

// regionKey is the grouping key for a record's region: surrounding whitespace
// is dropped and a blank region has no key.
func regionKey(name string) (string, bool) {
	key := strings.TrimSpace(name)
	return key, key != ""
}

// TotalByDomain sums the domain's count field over records whose year falls in
// years (the zero range matches everything). Records without a region still
// count toward the national total.
func TotalByDomain(data records.Dataset, domain records.Domain, years records.YearRange, tally *numeric.Tally) int64 {
	var total int64
	for _, p := range points(data, domain, tally) {
		if years.Contains(p.year) {
			total += p.value
		}
	}
	return total
}

// TotalsByRegion groups by trimmed region name, skipping null or blank
// regions. Regions without records are absent, not zero.
func TotalsByRegion(data records.Dataset, domain records.Domain, years records.YearRange, tally *numeric.Tally) map[string]int64 {
	out := make(map[string]int64)
	for _, p := range points(data, domain, tally) {
		key, ok := regionKey(p.region)
		if !ok || !years.Contains(p.year) {
			continue
		}
		out[key] += p.value
	}
	return out
}

// SortTotals orders a region mapping by total descending, then region name.
func SortTotals(totals map[string]int64) []RegionTotal {
	out := make([]RegionTotal, 0, len(totals))
	for region, total := range totals {
		out = append(out, RegionTotal{Region: region, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Region < out[j].Region
	})
	return out
}

// LatestByIndicatorCode returns the most recent record for code by year. Ties
// keep the first record in input order. ok is false when nothing matches.
func LatestByIndicatorCode(rows []records.IndicatorRecord, code string) (records.IndicatorRecord, bool) {
	var (
		best  records.IndicatorRecord
		found bool
	)
	for _, r := range rows {
		if r.IndicatorCode != code {
			continue
		}
		if !found || r.Year > best.Year {
			best, found = r, true
		}
	}
	return best, found
}

// ByIndicatorBucket groups records by their full indicator name and sums the
// cleaned numeric values. Malformed values are left out of the sum. Buckets
// with a total <= 0 are dropped; names are truncated to displayCap runes only
// after grouping and ranking.
func ByIndicatorBucket(rows []records.IndicatorRecord, limit, displayCap int, tally *numeric.Tally) []IndicatorBucket {
	sums := make(map[string]float64)
	var order []string
	for _, r := range rows {
		v, ok := tally.Parse(r.Measure())
		if !ok {
			continue
		}
		if _, seen := sums[r.IndicatorName]; !seen {
			order = append(order, r.IndicatorName)
		}
		sums[r.IndicatorName] += v
	}

	type bucket struct {
		name  string
		value int64
	}
	buckets := make([]bucket, 0, len(order))
	for _, name := range order {
		v := roundValue(sums[name])
		if v <= 0 {
			continue
		}
		buckets = append(buckets, bucket{name, v})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].value != buckets[j].value {
			return buckets[i].value > buckets[j].value
		}
		return buckets[i].name < buckets[j].name
	})
	if limit > 0 && len(buckets) > limit {
		buckets = buckets[:limit]
	}

	out := make([]IndicatorBucket, len(buckets))
	for i, b := range buckets {
		name := b.name
		if name == "" {
			name = registry.UnknownRegion
		}
		out[i] = IndicatorBucket{Name: truncate(name, displayCap), Value: b.value}
	}
	return out
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// TotalCases combines the domain totals. Malaria is scaled down by divisor
// (floor division); a divisor below 1 is treated as 1.
func TotalCases(fvrHumain, fvrAnimal, avianFlu, malaria, divisor int64) int64 {
	if divisor < 1 {
		divisor = 1
	}
	return fvrHumain + fvrAnimal + avianFlu + malaria/divisor
}

// RegionMapSnapshot computes one aggregate for every region that appears in the
// FVR-human, FVR-animal, avian flu or malaria case records. The result is
// ordered by region name and independent of input order.
func RegionMapSnapshot(data records.Dataset, opts Options, tally *numeric.Tally) []RegionAggregate {
	all := records.YearRange{}
	human := TotalsByRegion(data, records.FvrHumain, all, tally)
	animal := TotalsByRegion(data, records.FvrAnimal, all, tally)
	avian := TotalsByRegion(data, records.AvianFlu, all, tally)

	malariaRows := data
	malariaRows.Malaria = filterIndicator(data.Malaria, opts.MalariaIndicator)
	malaria := TotalsByRegion(malariaRows, records.Malaria, all, tally)

	seen := make(map[string]bool)
	var regions []string
	for _, m := range []map[string]int64{human, animal, avian, malaria} {
		for region := range m {
			if !seen[region] {
				seen[region] = true
				regions = append(regions, region)
			}
		}
	}
	sort.Strings(regions)

	out := make([]RegionAggregate, 0, len(regions))
	for _, region := range regions {
		agg := RegionAggregate{
			Region:    region,
			FvrHumain: human[region],
			FvrAnimal: animal[region],
			AvianFlu:  avian[region],
			Malaria:   malaria[region],
		}
		agg.TotalCases = TotalCases(agg.FvrHumain, agg.FvrAnimal, agg.AvianFlu, agg.Malaria, opts.MalariaDivisor)
		out = append(out, agg)
	}
	return out
}

func filterIndicator(rows []records.IndicatorRecord, code string) []records.IndicatorRecord {
	if code == "" {
		return rows
	}
	out := make([]records.IndicatorRecord, 0, len(rows))
	for _, r := range rows {
		if r.IndicatorCode == code {
			out = append(out, r)
		}
	}
	return out
}

// ZeroFill returns snapshot extended with an empty aggregate for every name
// not already present, re-sorted by region.
func ZeroFill(snapshot []RegionAggregate, names []string) []RegionAggregate {
	present := make(map[string]bool, len(snapshot))
	out := append([]RegionAggregate(nil), snapshot...)
	for _, a := range snapshot {
		present[a.Region] = true
	}
	for _, name := range names {
		if !present[name] {
			present[name] = true
			out = append(out, RegionAggregate{Region: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// KPIs are the dashboard headline values.
type KPIs struct {
	MalariaCases      string  `json:"malaria_cases"`
	TuberculosisCases string  `json:"tuberculose_cases"`
	FvrHumainCases    int64   `json:"fvr_humain_cases"`
	FvrAnimalCases    int64   `json:"fvr_animal_cases"`
	AvianFluCases     int64   `json:"grippe_aviaire_cases"`
	PM25Recent        string  `json:"pm25_recent"`
	FvrLethalityRate  float64 `json:"taux_letalite_fvr"`
}

// ComputeKPIs builds the headline values. Missing headline records render
// as "0".
func ComputeKPIs(data records.Dataset, opts Options, tally *numeric.Tally) KPIs {
	all := records.YearRange{}
	k := KPIs{
		MalariaCases:      "0",
		TuberculosisCases: "0",
		PM25Recent:        "0",
		FvrHumainCases:    TotalByDomain(data, records.FvrHumain, all, tally),
		FvrAnimalCases:    TotalByDomain(data, records.FvrAnimal, all, tally),
		AvianFluCases:     TotalByDomain(data, records.AvianFlu, all, tally),
	}
	if r, ok := LatestByIndicatorCode(data.Malaria, opts.MalariaIndicator); ok && r.Measure() != "" {
		k.MalariaCases = r.Measure()
	}
	if r, ok := LatestByIndicatorCode(data.Tuberculosis, opts.TuberculosisIndicator); ok && r.Measure() != "" {
		k.TuberculosisCases = r.Measure()
	}
	if r, ok := latestPollution(data.Pollution, opts.NationalZone); ok && r.ConcentrationPM25 != "" {
		k.PM25Recent = r.ConcentrationPM25
	}

	var deaths int64
	for _, r := range data.FvrHumain {
		deaths += r.Deaths
	}
	k.FvrLethalityRate = stats.Round(stats.SafeRatio(float64(deaths), float64(k.FvrHumainCases))*100, 2)
	return k
}

func latestPollution(rows []records.PollutionRecord, zone string) (records.PollutionRecord, bool) {
	var (
		best  records.PollutionRecord
		found bool
	)
	for _, r := range rows {
		if r.Zone != zone {
			continue
		}
		if !found || r.Year > best.Year {
			best, found = r, true
		}
	}
	return best, found
}

// PollutionByZone returns the latest parseable PM2.5 value per zone.
func PollutionByZone(rows []records.PollutionRecord, tally *numeric.Tally) map[string]float64 {
	latestYear := make(map[string]int)
	out := make(map[string]float64)
	for _, r := range rows {
		v, ok := tally.Parse(r.ConcentrationPM25)
		if !ok {
			continue
		}
		if y, seen := latestYear[r.Zone]; seen && y >= r.Year {
			continue
		}
		latestYear[r.Zone] = r.Year
		out[r.Zone] = v
	}
	return out
}
