// Package alerts derives cross-domain One Health alerts and the correlation
// summary from a region snapshot. Everything here is pure.
package alerts

import (
	"fmt"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/risk"
	"github.com/Skufu/onehealth/internal/stats"
)

const (
	Danger  = "danger"
	Warning = "warning"
	Info    = "info"
)

type Alert struct {
	Type    string `json:"type"`
	Rule    string `json:"rule"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Region  string `json:"region"`
}

type Options struct {
	WarningIntensity float64
	PM25Threshold    float64
	// MaxAlerts caps the output; 0 means no cap.
	MaxAlerts    int
	MinDomains   int
	NationalZone string
}

func DefaultOptions() Options {
	return Options{
		WarningIntensity: 0.7,
		PM25Threshold:    35,
		MaxAlerts:        20,
		MinDomains:       3,
		NationalZone:     "National",
	}
}

type Generator struct {
	policy risk.Policy
	opts   Options
}

func NewGenerator(policy risk.Policy, opts Options) *Generator {
	return &Generator{policy: policy, opts: opts}
}

type domainValue struct {
	key   string
	label string
	value func(aggregate.RegionAggregate) int64
}

var caseDomains = []domainValue{
	{risk.DomainFvrHumain, "FVR humaine", func(a aggregate.RegionAggregate) int64 { return a.FvrHumain }},
	{risk.DomainFvrAnimal, "FVR animale", func(a aggregate.RegionAggregate) int64 { return a.FvrAnimal }},
	{risk.DomainAvianFlu, "Grippe aviaire", func(a aggregate.RegionAggregate) int64 { return a.AvianFlu }},
	{risk.DomainMalaria, "Paludisme", func(a aggregate.RegionAggregate) int64 { return a.Malaria }},
}

func series(snapshot []aggregate.RegionAggregate, value func(aggregate.RegionAggregate) int64) []float64 {
	out := make([]float64, len(snapshot))
	for i, a := range snapshot {
		out[i] = float64(value(a))
	}
	return out
}

// Generate evaluates danger rules, then warning rules, then info rules.
// Within a level rules run in table order and regions in snapshot order.
func (g *Generator) Generate(snapshot []aggregate.RegionAggregate, pollutionByZone map[string]float64) []Alert {
	out := []Alert{}
	assessed := g.policy.Assess(snapshot, risk.Environment{}, risk.Options{})

	human := series(snapshot, caseDomains[0].value)
	animal := series(snapshot, caseDomains[1].value)
	q3Human := stats.Quantile(human, 0.75)
	q3Animal := stats.Quantile(animal, 0.75)
	for i, a := range snapshot {
		if human[i] > 0 && animal[i] > 0 && human[i] >= q3Human && animal[i] >= q3Animal {
			out = append(out, Alert{
				Type:    Danger,
				Rule:    "fvr_one_health",
				Title:   "Foyer FVR One Health",
				Message: fmt.Sprintf("%s figure dans le quart supérieur des cas de FVR humaine (%d) et animale (%d)", a.Region, a.FvrHumain, a.FvrAnimal),
				Region:  a.Region,
			})
		}
	}
	for _, r := range assessed {
		if r.Level == risk.Critical {
			out = append(out, Alert{
				Type:    Danger,
				Rule:    "critical_risk",
				Title:   "Risque sanitaire critique",
				Message: fmt.Sprintf("Score de risque %.1f/100 pour %s", r.Score, r.Region),
				Region:  r.Region,
			})
		}
	}

	for _, d := range caseDomains {
		for _, r := range assessed {
			if in := r.Intensities.Get(d.key); in >= g.opts.WarningIntensity && in > 0 {
				out = append(out, Alert{
					Type:    Warning,
					Rule:    d.key + "_intensity",
					Title:   "Seuil dépassé : " + d.label,
					Message: fmt.Sprintf("Intensité %s de %.0f%% du maximum national à %s", d.label, in*100, r.Region),
					Region:  r.Region,
				})
			}
		}
	}
	for _, a := range snapshot {
		if pm, ok := pollutionByZone[a.Region]; ok && pm >= g.opts.PM25Threshold {
			out = append(out, Alert{
				Type:    Warning,
				Rule:    "pollution_zone",
				Title:   "Pollution de l'air élevée",
				Message: fmt.Sprintf("PM2.5 à %.1f µg/m³ à %s (seuil %.0f)", pm, a.Region, g.opts.PM25Threshold),
				Region:  a.Region,
			})
		}
	}

	for _, a := range snapshot {
		var active []string
		for _, d := range caseDomains {
			if d.value(a) > 0 {
				active = append(active, d.label)
			}
		}
		if len(active) >= g.opts.MinDomains {
			out = append(out, Alert{
				Type:    Info,
				Rule:    "multi_disease",
				Title:   "Circulation multi-maladies",
				Message: fmt.Sprintf("%d maladies actives à %s", len(active), a.Region),
				Region:  a.Region,
			})
		}
	}
	if pm, ok := pollutionByZone[g.opts.NationalZone]; ok && pm >= g.opts.PM25Threshold {
		out = append(out, Alert{
			Type:    Info,
			Rule:    "national_pollution",
			Title:   "Qualité de l'air nationale",
			Message: fmt.Sprintf("Concentration nationale de PM2.5 à %.1f µg/m³", pm),
			Region:  g.opts.NationalZone,
		})
	}

	if g.opts.MaxAlerts > 0 && len(out) > g.opts.MaxAlerts {
		out = out[:g.opts.MaxAlerts]
	}
	return out
}

type Summary struct {
	TotalRegions    int     `json:"total_regions"`
	HighRiskRegions int     `json:"high_risk_regions"`
	CorrelationFvr  float64 `json:"correlation_fvr"`
}

// Summarize counts regions the disease-only assessment labels élevé or
// critique, and correlates FVR-human with FVR-animal totals.
func (g *Generator) Summarize(snapshot []aggregate.RegionAggregate) Summary {
	s := Summary{TotalRegions: len(snapshot)}
	for _, r := range g.policy.Assess(snapshot, risk.Environment{}, risk.Options{}) {
		if r.Level == risk.High || r.Level == risk.Critical {
			s.HighRiskRegions++
		}
	}
	human := series(snapshot, caseDomains[0].value)
	animal := series(snapshot, caseDomains[1].value)
	s.CorrelationFvr = stats.Round(stats.Pearson(human, animal), 4)
	return s
}

type Row struct {
	Region    string     `json:"region"`
	FvrHumain int64      `json:"fvr_humain"`
	FvrAnimal int64      `json:"fvr_animal"`
	AvianFlu  int64      `json:"grippe_aviaire"`
	Malaria   int64      `json:"malaria"`
	RiskLevel risk.Level `json:"risk_level"`
}

func (g *Generator) CorrelationTable(snapshot []aggregate.RegionAggregate) []Row {
	assessed := g.policy.Assess(snapshot, risk.Environment{}, risk.Options{})
	out := make([]Row, len(snapshot))
	for i, a := range snapshot {
		out[i] = Row{
			Region:    a.Region,
			FvrHumain: a.FvrHumain,
			FvrAnimal: a.FvrAnimal,
			AvianFlu:  a.AvianFlu,
			Malaria:   a.Malaria,
			RiskLevel: assessed[i].Level,
		}
	}
	return out
}

// CountByType tallies alerts per level.
func CountByType(alerts []Alert) map[string]int {
	out := make(map[string]int, 3)
	for _, a := range alerts {
		out[a.Type]++
	}
	return out
}
