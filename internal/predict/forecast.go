// Package predict builds the naive FVR projection view. The statistical
// models live in an external service; this package only gates them on data
// volume and falls back to a linear trend.
package predict

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/stats"
)

// Point is the cumulative confirmed count at one bulletin date.
type Point struct {
	Date  time.Time `json:"date"`
	Cases float64   `json:"cases"`
}

type Series struct {
	Region string  `json:"region"`
	Points []Point `json:"points"`
}

// Current is the last cumulative value, 0 for an empty series.
func (s Series) Current() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Cases
}

// Forecaster projects a series h days past its last point, one value per
// horizon.
type Forecaster interface {
	Forecast(ctx context.Context, s Series, horizons []int) ([]float64, error)
}

// LinearForecaster extends the least-squares trend of cumulative cases
// against days since the first bulletin. A falling trend is held flat.
type LinearForecaster struct{}

func (LinearForecaster) Forecast(_ context.Context, s Series, horizons []int) ([]float64, error) {
	current := s.Current()
	var slope float64
	if len(s.Points) >= 2 {
		origin := s.Points[0].Date
		xs := make([]float64, len(s.Points))
		ys := make([]float64, len(s.Points))
		for i, p := range s.Points {
			xs[i] = p.Date.Sub(origin).Hours() / 24
			ys[i] = p.Cases
		}
		slope = max(0, stats.LinearSlope(xs, ys))
	}
	out := make([]float64, len(horizons))
	for i, h := range horizons {
		out[i] = current + slope*float64(h)
	}
	return out, nil
}

// BuildSeries groups FVR-human bulletins by region into cumulative daily
// series. Rows without a region are left out.
func BuildSeries(rows []records.FvrHumainRecord) map[string]Series {
	daily := make(map[string]map[time.Time]float64)
	for _, r := range rows {
		region := strings.TrimSpace(r.Region)
		if region == "" {
			continue
		}
		if daily[region] == nil {
			daily[region] = make(map[time.Time]float64)
		}
		d := r.ReportDate.UTC().Truncate(24 * time.Hour)
		daily[region][d] += float64(r.Confirmed)
	}

	out := make(map[string]Series, len(daily))
	for region, byDay := range daily {
		days := make([]time.Time, 0, len(byDay))
		for d := range byDay {
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
		s := Series{Region: region, Points: make([]Point, len(days))}
		var cum float64
		for i, d := range days {
			cum += byDay[d]
			s.Points[i] = Point{Date: d, Cases: cum}
		}
		out[region] = s
	}
	return out
}

// DistinctDates counts bulletin dates across all regions.
func DistinctDates(rows []records.FvrHumainRecord) int {
	seen := make(map[time.Time]struct{})
	for _, r := range rows {
		seen[r.ReportDate.UTC().Truncate(24*time.Hour)] = struct{}{}
	}
	return len(seen)
}
