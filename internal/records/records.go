// Package records defines the per-domain rows read from the indicator store.
package records

import "time"

type Domain string

const (
	Malaria      Domain = "malaria"
	Tuberculosis Domain = "tuberculose"
	FvrHumain    Domain = "fvr_humain"
	FvrAnimal    Domain = "fvr_animal"
	AvianFlu     Domain = "grippe_aviaire"
	Pollution    Domain = "pollution_air"
)

// Domains lists every domain in a stable order.
var Domains = []Domain{Malaria, Tuberculosis, FvrHumain, FvrAnimal, AvianFlu, Pollution}

func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// IsIndicator reports whether the domain stores indicator-style rows.
func (d Domain) IsIndicator() bool {
	return d == Malaria || d == Tuberculosis
}

// YearRange is an inclusive filter. The zero value matches every year.
type YearRange struct {
	Start int `json:"yearStart,omitempty"`
	End   int `json:"yearEnd,omitempty"`
}

func (y YearRange) IsZero() bool {
	return y.Start == 0 && y.End == 0
}

func (y YearRange) Contains(year int) bool {
	if y.Start != 0 && year < y.Start {
		return false
	}
	if y.End != 0 && year > y.End {
		return false
	}
	return true
}

type IndicatorRecord struct {
	ID            int64  `json:"id"`
	IndicatorCode string `json:"indicator_code"`
	IndicatorName string `json:"indicator_name"`
	Year          int    `json:"year"`
	Value         string `json:"value"`
	NumericValue  string `json:"numeric_value"`
	LowValue      string `json:"low_value,omitempty"`
	HighValue     string `json:"high_value,omitempty"`
	Region        string `json:"region,omitempty"`
}

// Measure returns the numeric value, falling back to the raw value when the
// numeric column was not populated by the import.
func (r IndicatorRecord) Measure() string {
	if r.NumericValue != "" {
		return r.NumericValue
	}
	return r.Value
}

type PollutionRecord struct {
	ID                int64  `json:"id"`
	Year              int    `json:"annee"`
	Zone              string `json:"zone"`
	ConcentrationPM25 string `json:"concentration_pm25"`
}

type FvrHumainRecord struct {
	ID         int64     `json:"id"`
	ReportDate time.Time `json:"date_bilan"`
	Confirmed  int64     `json:"cas_confirmes"`
	Deaths     int64     `json:"deces"`
	Recoveries int64     `json:"gueris"`
	Region     string    `json:"region"`
	District   string    `json:"district,omitempty"`
}

type FvrAnimalRecord struct {
	ID       int64  `json:"id"`
	Year     int    `json:"annee"`
	Cases    int64  `json:"cas"`
	Species  string `json:"espece"`
	Region   string `json:"region"`
	Locality string `json:"localisation,omitempty"`
	Source   string `json:"source,omitempty"`
}

type AvianFluRecord struct {
	ID             int64     `json:"id"`
	ReportID       string    `json:"report_id"`
	ReportDate     time.Time `json:"date_rapport"`
	Region         string    `json:"region"`
	Species        string    `json:"espece"`
	Disease        string    `json:"maladie"`
	Confirmed      int64     `json:"cas_confirmes"`
	Deaths         int64     `json:"deces"`
	EpidemicStatus string    `json:"statut_epidemie"`
}

// Dataset is the set of rows one snapshot is computed from.
type Dataset struct {
	Malaria      []IndicatorRecord `json:"malaria"`
	Tuberculosis []IndicatorRecord `json:"tuberculose"`
	FvrHumain    []FvrHumainRecord `json:"fvr_humain"`
	FvrAnimal    []FvrAnimalRecord `json:"fvr_animal"`
	AvianFlu     []AvianFluRecord  `json:"grippe_aviaire"`
	Pollution    []PollutionRecord `json:"pollution_air"`
}
