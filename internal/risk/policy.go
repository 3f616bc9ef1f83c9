package risk

import (
	"errors"
	"fmt"
)

type Level string

const (
	Low      Level = "faible"
	Moderate Level = "modéré"
	High     Level = "élevé"
	Critical Level = "critique"
)

// Levels lists the labels from lowest to highest.
var Levels = []Level{Low, Moderate, High, Critical}

// Weights are the composite score weights per domain intensity.
type Weights struct {
	FvrHumain float64 `json:"fvr_humain"`
	FvrAnimal float64 `json:"fvr_animal"`
	AvianFlu  float64 `json:"grippe_aviaire"`
	Malaria   float64 `json:"malaria"`
	Pollution float64 `json:"pollution"`
}

func (w Weights) sum() float64 {
	return w.FvrHumain + w.FvrAnimal + w.AvianFlu + w.Malaria + w.Pollution
}

// Thresholds are inclusive lower bounds: a score equal to High is élevé.
type Thresholds struct {
	Moderate float64 `json:"moderate"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

var ErrInvalidThresholds = errors.New("invalid risk thresholds")

func (t Thresholds) Validate() error {
	if !(t.Moderate > 0 && t.Moderate < t.High && t.High < t.Critical && t.Critical <= 100) {
		return fmt.Errorf("%w: need 0 < moderate(%g) < high(%g) < critical(%g) <= 100",
			ErrInvalidThresholds, t.Moderate, t.High, t.Critical)
	}
	return nil
}

// Label maps a score to its level. It is the only place the score ranges are
// turned into labels.
func (t Thresholds) Label(score float64) Level {
	switch {
	case score >= t.Critical:
		return Critical
	case score >= t.High:
		return High
	case score >= t.Moderate:
		return Moderate
	default:
		return Low
	}
}

// SeasonBonus is added to a non-zero weighted score during risky seasons.
type SeasonBonus struct {
	High     float64 `json:"eleve"`
	Moderate float64 `json:"modere"`
}

func (b SeasonBonus) For(season Level) float64 {
	switch season {
	case High, Critical:
		return b.High
	case Moderate:
		return b.Moderate
	default:
		return 0
	}
}

// Policy gathers every tunable of the scoring engine.
type Policy struct {
	Weights     Weights     `json:"weights"`
	Thresholds  Thresholds  `json:"thresholds"`
	SeasonBonus SeasonBonus `json:"season_bonus"`
	Rules       []Rule      `json:"rules,omitempty"`
}

const (
	WeightFvrHumain = 0.40
	WeightFvrAnimal = 0.20
	WeightAvianFlu  = 0.15
	WeightMalaria   = 0.15
	WeightPollution = 0.10

	ThresholdModerate = 20
	ThresholdHigh     = 40
	ThresholdCritical = 70

	BonusHighSeason     = 10
	BonusModerateSeason = 5
)

func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			FvrHumain: WeightFvrHumain,
			FvrAnimal: WeightFvrAnimal,
			AvianFlu:  WeightAvianFlu,
			Malaria:   WeightMalaria,
			Pollution: WeightPollution,
		},
		Thresholds: Thresholds{
			Moderate: ThresholdModerate,
			High:     ThresholdHigh,
			Critical: ThresholdCritical,
		},
		SeasonBonus: SeasonBonus{High: BonusHighSeason, Moderate: BonusModerateSeason},
		Rules:       DefaultRules(),
	}
}

func (p Policy) Validate() error {
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	w := p.Weights
	for _, v := range []float64{w.FvrHumain, w.FvrAnimal, w.AvianFlu, w.Malaria, w.Pollution} {
		if v < 0 {
			return fmt.Errorf("risk weight %g is negative", v)
		}
	}
	for _, r := range p.Rules {
		if r.ID == "" {
			return errors.New("risk rule without id")
		}
	}
	return nil
}

// SeasonFor returns the vector-borne seasonal risk for a month: the rainy
// season (July to October) is élevé, June and November modéré.
func SeasonFor(month int) Level {
	switch {
	case month >= 7 && month <= 10:
		return High
	case month == 6 || month == 11:
		return Moderate
	default:
		return Low
	}
}

// LevelInfo describes one label for the map legend.
type LevelInfo struct {
	Level Level   `json:"level"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Legend returns the score range of each label, lowest first. Max is
// exclusive except for the last range.
func (t Thresholds) Legend() []LevelInfo {
	return []LevelInfo{
		{Level: Low, Min: 0, Max: t.Moderate},
		{Level: Moderate, Min: t.Moderate, Max: t.High},
		{Level: High, Min: t.High, Max: t.Critical},
		{Level: Critical, Min: t.Critical, Max: 100},
	}
}
