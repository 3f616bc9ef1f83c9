package risk

// Condition holds when the named intensity is at least Min.
type Condition struct {
	Domain string  `json:"domain"`
	Min    float64 `json:"min"`
}

// Rule is one line of the factor table. All conditions must hold, and when
// Season is set the current season must be at least that level.
type Rule struct {
	ID             string      `json:"id"`
	Conditions     []Condition `json:"conditions"`
	Season         Level       `json:"season,omitempty"`
	Factor         string      `json:"factor"`
	Recommendation string      `json:"recommendation"`
}

// FallbackRecommendation is returned when no rule matches.
const FallbackRecommendation = "Maintenir la surveillance de routine"

// DefaultRules is evaluated in order; every matching rule contributes.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:             "fvr_one_health",
			Conditions:     []Condition{{DomainFvrHumain, 0.5}, {DomainFvrAnimal, 0.5}},
			Factor:         "Transmission de la FVR simultanée chez l'homme et l'animal",
			Recommendation: "Coordonner la riposte One Health entre services vétérinaires et sanitaires",
		},
		{
			ID:             "fvr_humain_high",
			Conditions:     []Condition{{DomainFvrHumain, 0.7}},
			Factor:         "Forte incidence de FVR humaine",
			Recommendation: "Renforcer la surveillance des cas humains de FVR",
		},
		{
			ID:             "fvr_animal_high",
			Conditions:     []Condition{{DomainFvrAnimal, 0.6}},
			Factor:         "Circulation active de la FVR dans le cheptel",
			Recommendation: "Vacciner le bétail et contrôler les mouvements d'animaux",
		},
		{
			ID:             "avian_flu",
			Conditions:     []Condition{{DomainAvianFlu, 0.5}},
			Factor:         "Foyers de grippe aviaire",
			Recommendation: "Renforcer la biosécurité des élevages avicoles",
		},
		{
			ID:             "malaria_rainy_season",
			Conditions:     []Condition{{DomainMalaria, 0.5}},
			Season:         High,
			Factor:         "Saison des pluies et incidence élevée du paludisme",
			Recommendation: "Distribuer des moustiquaires imprégnées et détruire les gîtes larvaires",
		},
		{
			ID:             "fvr_vector_season",
			Conditions:     []Condition{{DomainFvrAnimal, 0.3}},
			Season:         High,
			Factor:         "Conditions climatiques favorables aux vecteurs de la FVR",
			Recommendation: "Lutter contre les moustiques vecteurs autour des points d'eau",
		},
		{
			ID:             "air_pollution",
			Conditions:     []Condition{{DomainPollution, 0.7}},
			Factor:         "Pollution de l'air élevée (PM2.5)",
			Recommendation: "Limiter l'exposition des populations vulnérables aux particules fines",
		},
	}
}

func rank(l Level) int {
	for i, known := range Levels {
		if l == known {
			return i
		}
	}
	return 0
}

func (r Rule) matches(in Intensities, season Level) bool {
	if r.Season != "" && rank(season) < rank(r.Season) {
		return false
	}
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if in.Get(c.Domain) < c.Min {
			return false
		}
	}
	return true
}

// Explain runs the rule table and returns factors and recommendations in
// table order.
func Explain(rules []Rule, in Intensities, season Level) (factors, recommendations []string) {
	factors = []string{}
	recommendations = []string{}
	for _, r := range rules {
		if !r.matches(in, season) {
			continue
		}
		if r.Factor != "" {
			factors = append(factors, r.Factor)
		}
		if r.Recommendation != "" {
			recommendations = append(recommendations, r.Recommendation)
		}
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, FallbackRecommendation)
	}
	return factors, recommendations
}
