package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/risk"
)

// Minimum distinct bulletin dates per model.
const (
	MinLinear  = 2
	MinArima   = 30
	MinProphet = 30
	MinLSTM    = 100
)

type ModelInfo struct {
	Available   bool   `json:"available"`
	Status      string `json:"status"`
	MinRequired int    `json:"min_required"`
}

type Status struct {
	DataPoints int                  `json:"data_points"`
	Models     map[string]ModelInfo `json:"models"`
	Message    string               `json:"message"`
}

func model(points, min int) ModelInfo {
	info := ModelInfo{Available: points >= min, MinRequired: min, Status: "disponible"}
	if !info.Available {
		info.Status = fmt.Sprintf("données insuffisantes (%d/%d)", points, min)
	}
	return info
}

// ModelStatus reports which forecasting models have enough bulletins.
func ModelStatus(dataPoints int) Status {
	s := Status{
		DataPoints: dataPoints,
		Models: map[string]ModelInfo{
			"linear":  model(dataPoints, MinLinear),
			"arima":   model(dataPoints, MinArima),
			"prophet": model(dataPoints, MinProphet),
			"lstm":    model(dataPoints, MinLSTM),
		},
	}
	switch {
	case dataPoints < MinArima:
		s.Message = fmt.Sprintf("%d communiqués disponibles, il en manque %d pour activer ARIMA et Prophet",
			dataPoints, MinArima-dataPoints)
	case dataPoints < MinLSTM:
		s.Message = fmt.Sprintf("ARIMA et Prophet disponibles, il manque %d communiqués pour le modèle LSTM",
			MinLSTM-dataPoints)
	default:
		s.Message = "Tous les modèles de prédiction sont disponibles"
	}
	return s
}

// Horizons are the projection offsets in days.
var Horizons = []int{7, 14, 30}

type RegionPrediction struct {
	Region           string   `json:"region"`
	CurrentCases     int64    `json:"current_fvr_cases"`
	Predicted7Days   int64    `json:"predicted_7_days"`
	Predicted14Days  int64    `json:"predicted_14_days"`
	Predicted30Days  int64    `json:"predicted_30_days"`
	PollutionPM25    float64  `json:"pollution_pm25"`
	ClimateRiskScore float64  `json:"climate_risk_score"`
	SeasonalRisk     string   `json:"seasonal_risk"`
	CombinedRisk     float64  `json:"combined_risk_score"`
	RiskLevel        string   `json:"risk_level"`
	RiskFactors      []string `json:"risk_factors"`
	Recommendations  []string `json:"recommendations"`
}

type Summary struct {
	TotalCurrentCases int64    `json:"total_current_cases"`
	Predicted7Total   int64    `json:"predicted_7_days_total"`
	Predicted14Total  int64    `json:"predicted_14_days_total"`
	Predicted30Total  int64    `json:"predicted_30_days_total"`
	HighRiskRegions   []string `json:"high_risk_regions"`
	CriticalActions   []string `json:"critical_actions"`
}

// Input is everything one prediction view is computed from.
type Input struct {
	FvrHumain  []records.FvrHumainRecord
	Snapshot   []aggregate.RegionAggregate
	PM25ByZone map[string]float64
	Month      int
}

type Predictor struct {
	forecaster Forecaster
	policy     risk.Policy
	logger     *slog.Logger
}

func NewPredictor(f Forecaster, policy risk.Policy, logger *slog.Logger) *Predictor {
	if f == nil {
		f = LinearForecaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{forecaster: f, policy: policy, logger: logger}
}

// ClimateScore maps the season to a 0..100 climate risk.
func ClimateScore(season risk.Level) float64 {
	switch season {
	case risk.High, risk.Critical:
		return 80
	case risk.Moderate:
		return 50
	default:
		return 20
	}
}

func toCount(v float64) int64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int64(math.Round(v))
}

// Regions projects FVR-human cases for every snapshot region, in snapshot
// order. The combined score is the risk assessment with pollution and season.
func (p *Predictor) Regions(ctx context.Context, in Input) ([]RegionPrediction, error) {
	season := risk.SeasonFor(in.Month)
	assessed := p.policy.Assess(in.Snapshot, risk.Environment{PM25ByZone: in.PM25ByZone, Season: season}, risk.Options{})
	series := BuildSeries(in.FvrHumain)

	out := make([]RegionPrediction, 0, len(in.Snapshot))
	for i, a := range in.Snapshot {
		s, ok := series[a.Region]
		if !ok {
			s = Series{Region: a.Region}
		}
		forecast, err := p.forecaster.Forecast(ctx, s, Horizons)
		if err != nil {
			return nil, fmt.Errorf("forecast %s: %w", a.Region, err)
		}
		// Bulletins may be filtered differently from the snapshot; anchor on
		// the snapshot total.
		shift := float64(a.FvrHumain) - s.Current()
		r := assessed[i]
		out = append(out, RegionPrediction{
			Region:           a.Region,
			CurrentCases:     a.FvrHumain,
			Predicted7Days:   toCount(forecast[0] + shift),
			Predicted14Days:  toCount(forecast[1] + shift),
			Predicted30Days:  toCount(forecast[2] + shift),
			PollutionPM25:    r.PM25,
			ClimateRiskScore: ClimateScore(season),
			SeasonalRisk:     string(season),
			CombinedRisk:     r.Score,
			RiskLevel:        string(r.Level),
			RiskFactors:      r.Factors,
			Recommendations:  r.Recommendations,
		})
	}
	return out, nil
}

// Summarize totals the projections. High-risk regions are those labelled
// élevé or critique; critical actions are the distinct recommendations of the
// critique regions.
func Summarize(preds []RegionPrediction) Summary {
	s := Summary{HighRiskRegions: []string{}, CriticalActions: []string{}}
	seen := make(map[string]bool)
	for _, p := range preds {
		s.TotalCurrentCases += p.CurrentCases
		s.Predicted7Total += p.Predicted7Days
		s.Predicted14Total += p.Predicted14Days
		s.Predicted30Total += p.Predicted30Days
		level := risk.Level(p.RiskLevel)
		if level == risk.High || level == risk.Critical {
			s.HighRiskRegions = append(s.HighRiskRegions, p.Region)
		}
		if level != risk.Critical {
			continue
		}
		for _, rec := range p.Recommendations {
			if rec == risk.FallbackRecommendation || seen[rec] {
				continue
			}
			seen[rec] = true
			s.CriticalActions = append(s.CriticalActions, rec)
		}
	}
	return s
}
