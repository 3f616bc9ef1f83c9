// Package risk scores each region of a snapshot from its domain intensities
// and explains the score with an ordered rule table.
package risk

import (
	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/stats"
)

const (
	DomainFvrHumain = "fvr_humain"
	DomainFvrAnimal = "fvr_animal"
	DomainAvianFlu  = "grippe_aviaire"
	DomainMalaria   = "malaria"
	DomainPollution = "pollution"
)

// Intensities are domain values normalized to [0,1] against the snapshot
// maximum.
type Intensities struct {
	FvrHumain float64 `json:"fvr_humain"`
	FvrAnimal float64 `json:"fvr_animal"`
	AvianFlu  float64 `json:"grippe_aviaire"`
	Malaria   float64 `json:"malaria"`
	Pollution float64 `json:"pollution"`
}

func (in Intensities) Get(domain string) float64 {
	switch domain {
	case DomainFvrHumain:
		return in.FvrHumain
	case DomainFvrAnimal:
		return in.FvrAnimal
	case DomainAvianFlu:
		return in.AvianFlu
	case DomainMalaria:
		return in.Malaria
	case DomainPollution:
		return in.Pollution
	}
	return 0
}

// Environment is the non-case context of an assessment. The zero value
// scores on disease intensities alone.
type Environment struct {
	PM25ByZone map[string]float64 `json:"pm25_by_zone,omitempty"`
	Season     Level              `json:"season,omitempty"`
}

type Options struct {
	// AllKnownRegions, when set, adds a zero aggregate for every listed
	// region missing from the snapshot.
	AllKnownRegions []string
}

type Assessment struct {
	Region          string      `json:"region"`
	Score           float64     `json:"score"`
	Level           Level       `json:"risk_level"`
	Intensities     Intensities `json:"intensities"`
	PM25            float64     `json:"pollution_pm25"`
	Factors         []string    `json:"risk_factors"`
	Recommendations []string    `json:"recommendations"`
}

// Score combines intensities into [0,100]. The season bonus only applies to
// a non-zero weighted score.
func (p Policy) Score(in Intensities, season Level) float64 {
	w := p.Weights
	base := 100 * stats.SafeRatio(
		w.FvrHumain*in.FvrHumain+w.FvrAnimal*in.FvrAnimal+w.AvianFlu*in.AvianFlu+
			w.Malaria*in.Malaria+w.Pollution*in.Pollution,
		w.sum())
	if base > 0 {
		base += p.SeasonBonus.For(season)
	}
	return stats.Round(stats.Clamp(base, 0, 100), 1)
}

// Assess scores every region of snapshot, in snapshot order.
func (p Policy) Assess(snapshot []aggregate.RegionAggregate, env Environment, opts Options) []Assessment {
	if len(opts.AllKnownRegions) > 0 {
		snapshot = aggregate.ZeroFill(snapshot, opts.AllKnownRegions)
	}

	var maxHuman, maxAnimal, maxAvian, maxMalaria, maxPM25 float64
	for _, a := range snapshot {
		maxHuman = max(maxHuman, float64(a.FvrHumain))
		maxAnimal = max(maxAnimal, float64(a.FvrAnimal))
		maxAvian = max(maxAvian, float64(a.AvianFlu))
		maxMalaria = max(maxMalaria, float64(a.Malaria))
		maxPM25 = max(maxPM25, env.PM25ByZone[a.Region])
	}

	rules := p.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	out := make([]Assessment, 0, len(snapshot))
	for _, a := range snapshot {
		pm25 := env.PM25ByZone[a.Region]
		in := Intensities{
			FvrHumain: stats.SafeRatio(float64(a.FvrHumain), maxHuman),
			FvrAnimal: stats.SafeRatio(float64(a.FvrAnimal), maxAnimal),
			AvianFlu:  stats.SafeRatio(float64(a.AvianFlu), maxAvian),
			Malaria:   stats.SafeRatio(float64(a.Malaria), maxMalaria),
			Pollution: stats.SafeRatio(pm25, maxPM25),
		}
		score := p.Score(in, env.Season)
		factors, recs := Explain(rules, in, env.Season)
		out = append(out, Assessment{
			Region:          a.Region,
			Score:           score,
			Level:           p.Thresholds.Label(score),
			Intensities:     in,
			PM25:            pm25,
			Factors:         factors,
			Recommendations: recs,
		})
	}
	return out
}

// Find returns the assessment for region.
func Find(assessments []Assessment, region string) (Assessment, bool) {
	for _, a := range assessments {
		if a.Region == region {
			return a, true
		}
	}
	return Assessment{}, false
}
