package predict

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/risk"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func bulletins() []records.FvrHumainRecord {
	return []records.FvrHumainRecord{
		{ReportDate: day("2025-10-08"), Confirmed: 6, Region: "Matam", District: "Kanel"},
		{ReportDate: day("2025-10-01"), Confirmed: 10, Region: "Matam"},
		{ReportDate: day("2025-10-08"), Confirmed: 4, Region: "Matam", District: "Ranérou"},
		{ReportDate: day("2025-10-08"), Confirmed: 3, Region: ""},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSeries(t *testing.T) {
	got := BuildSeries(bulletins())

	require.Len(t, got, 1)
	s := got["Matam"]
	assert.Equal(t, []Point{{day("2025-10-01"), 10}, {day("2025-10-08"), 20}}, s.Points)
	assert.Equal(t, 20.0, s.Current())
	assert.Equal(t, 2, DistinctDates(bulletins()))
}

func TestLinearForecaster(t *testing.T) {
	s := BuildSeries(bulletins())["Matam"]

	got, err := LinearForecaster{}.Forecast(context.Background(), s, Horizons)
	require.NoError(t, err)
	assert.InDelta(t, 30, got[0], 1e-9)
	assert.InDelta(t, 40, got[1], 1e-9)
	assert.InDelta(t, 20+300.0/7, got[2], 1e-9)
}

func TestLinearForecasterShortSeries(t *testing.T) {
	single := Series{Points: []Point{{day("2025-10-01"), 5}}}

	got, err := LinearForecaster{}.Forecast(context.Background(), single, Horizons)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5}, got)

	empty, err := LinearForecaster{}.Forecast(context.Background(), Series{}, Horizons)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, empty)
}

func TestRemoteForecaster(t *testing.T) {
	var received remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[21,22,23],"model":"arima"}`))
	}))
	defer srv.Close()

	f := NewRemoteForecaster(srv.URL, time.Second, quietLogger())
	got, err := f.Forecast(context.Background(), BuildSeries(bulletins())["Matam"], Horizons)

	require.NoError(t, err)
	assert.Equal(t, []float64{21, 22, 23}, got)
	assert.Equal(t, "Matam", received.Region)
	assert.Equal(t, Horizons, received.Horizons)
	assert.Len(t, received.Points, 2)
}

func TestRemoteForecasterFallsBack(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		},
		"wrong shape": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"predictions":[1]}`))
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			f := NewRemoteForecaster(srv.URL, time.Second, quietLogger())
			f.client.RetryMax = 0
			got, err := f.Forecast(context.Background(), BuildSeries(bulletins())["Matam"], Horizons)

			require.NoError(t, err)
			assert.InDelta(t, 30, got[0], 1e-9)
		})
	}
}

func TestModelStatus(t *testing.T) {
	s := ModelStatus(2)
	assert.True(t, s.Models["linear"].Available)
	assert.False(t, s.Models["arima"].Available)
	assert.Equal(t, 30, s.Models["prophet"].MinRequired)
	assert.Contains(t, s.Message, "il en manque 28")

	assert.False(t, ModelStatus(1).Models["linear"].Available)

	mid := ModelStatus(30)
	assert.True(t, mid.Models["arima"].Available)
	assert.True(t, mid.Models["prophet"].Available)
	assert.False(t, mid.Models["lstm"].Available)
	assert.Contains(t, mid.Message, "70")

	assert.True(t, ModelStatus(100).Models["lstm"].Available)
}

func TestPredictorRegions(t *testing.T) {
	p := NewPredictor(nil, risk.DefaultPolicy(), quietLogger())
	in := Input{
		FvrHumain: bulletins(),
		Snapshot: []aggregate.RegionAggregate{
			{Region: "Matam", FvrHumain: 20, TotalCases: 20},
			{Region: "Dakar"},
		},
		PM25ByZone: map[string]float64{"Dakar": 30},
		Month:      8,
	}

	got, err := p.Regions(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 2)

	matam := got[0]
	assert.EqualValues(t, 20, matam.CurrentCases)
	assert.EqualValues(t, 30, matam.Predicted7Days)
	assert.EqualValues(t, 40, matam.Predicted14Days)
	assert.EqualValues(t, 63, matam.Predicted30Days)
	assert.Equal(t, "élevé", matam.SeasonalRisk)
	assert.Equal(t, 80.0, matam.ClimateRiskScore)
	assert.Equal(t, 50.0, matam.CombinedRisk)
	assert.Equal(t, "élevé", matam.RiskLevel)

	dakar := got[1]
	assert.Zero(t, dakar.Predicted30Days)
	assert.Equal(t, 30.0, dakar.PollutionPM25)

	sum := Summarize(got)
	assert.EqualValues(t, 20, sum.TotalCurrentCases)
	assert.EqualValues(t, 63, sum.Predicted30Total)
	assert.Equal(t, []string{"Matam"}, sum.HighRiskRegions)
	assert.Empty(t, sum.CriticalActions)
}

func TestSummarizeCriticalActions(t *testing.T) {
	preds := []RegionPrediction{
		{Region: "A", RiskLevel: "critique", Recommendations: []string{"x", "y"}},
		{Region: "B", RiskLevel: "critique", Recommendations: []string{"y", risk.FallbackRecommendation}},
		{Region: "C", RiskLevel: "faible", Recommendations: []string{"z"}},
	}

	got := Summarize(preds)
	assert.Equal(t, []string{"x", "y"}, got.CriticalActions)
	assert.Equal(t, []string{"A", "B"}, got.HighRiskRegions)
}
