// Package importer turns external documents into store rows: extracted FVR
// communiqués and HXL-tagged indicator CSV files.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/store"
)

type District struct {
	Name  string `json:"nom"`
	Cases int64  `json:"cas"`
}

type RegionReport struct {
	Name       string     `json:"nom"`
	Cases      int64      `json:"total_cas"`
	Deaths     int64      `json:"deces"`
	Recoveries int64      `json:"gueris"`
	Districts  []District `json:"districts"`
}

// Communique is the structured content extracted from a Ministry of Health
// FVR bulletin.
type Communique struct {
	PublishedOn    string         `json:"date_communique"`
	ReferenceDate  string         `json:"date_reference"`
	TotalConfirmed int64          `json:"total_cas_confirmes"`
	TotalDeaths    int64          `json:"total_deces"`
	TotalRecovered int64          `json:"total_gueris"`
	Regions        []RegionReport `json:"regions"`
	RawText        string         `json:"texte_brut,omitempty"`
	Source         string         `json:"source,omitempty"`
}

// ValidateRequest wraps a communiqué with the operator's decision.
// Action "preview" validates without writing; "confirm" (or empty) writes.
type ValidateRequest struct {
	Data   Communique `json:"data"`
	Action string     `json:"action"`
}

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

type Result struct {
	Message  string   `json:"message"`
	Rows     int      `json:"rows"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Rows validates c and expands it into one row per district, or one row per
// region without districts. Region deaths and recoveries go on the first row
// of the region so sums stay correct.
func (c Communique) Rows() ([]records.FvrHumainRecord, []string, error) {
	var problems, warnings []string

	date, ok := parseDate(c.ReferenceDate)
	if !ok {
		date, ok = parseDate(c.PublishedOn)
		if c.ReferenceDate != "" {
			warnings = append(warnings, fmt.Sprintf("date_reference %q illisible, date_communique utilisée", c.ReferenceDate))
		}
	}
	if !ok {
		problems = append(problems, fmt.Sprintf("date_communique %q is not a valid date", c.PublishedOn))
	}
	if c.TotalConfirmed < 0 || c.TotalDeaths < 0 || c.TotalRecovered < 0 {
		problems = append(problems, "totals must not be negative")
	}
	if len(c.Regions) == 0 {
		problems = append(problems, "regions must not be empty")
	}

	var rows []records.FvrHumainRecord
	var sum int64
	for i, r := range c.Regions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("regions[%d].nom is required", i))
			continue
		}
		if r.Cases < 0 || r.Deaths < 0 || r.Recoveries < 0 {
			problems = append(problems, fmt.Sprintf("regions[%d] (%s) has negative counts", i, name))
			continue
		}
		sum += r.Cases

		if len(r.Districts) == 0 {
			rows = append(rows, records.FvrHumainRecord{
				ReportDate: date, Confirmed: r.Cases, Deaths: r.Deaths, Recoveries: r.Recoveries, Region: name,
			})
			continue
		}
		var districtSum int64
		for j, d := range r.Districts {
			dname := strings.TrimSpace(d.Name)
			if dname == "" || d.Cases < 0 {
				problems = append(problems, fmt.Sprintf("regions[%d].districts[%d] is invalid", i, j))
				continue
			}
			districtSum += d.Cases
			row := records.FvrHumainRecord{ReportDate: date, Confirmed: d.Cases, Region: name, District: dname}
			if j == 0 {
				row.Deaths, row.Recoveries = r.Deaths, r.Recoveries
			}
			rows = append(rows, row)
		}
		if districtSum != r.Cases {
			warnings = append(warnings, fmt.Sprintf("%s : somme des districts %d, total régional %d", name, districtSum, r.Cases))
		}
	}
	if c.TotalConfirmed > 0 && sum != c.TotalConfirmed {
		warnings = append(warnings, fmt.Sprintf("total national %d, somme des régions %d", c.TotalConfirmed, sum))
	}

	if len(problems) > 0 {
		return nil, warnings, &ValidationError{Problems: problems}
	}
	return rows, warnings, nil
}

type Importer struct {
	writer store.Writer
	logger *slog.Logger
}

func New(w store.Writer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{writer: w, logger: logger}
}

// ImportCommunique writes the rows of a validated communiqué. Rows already
// present for the same date, region and district are skipped.
func (i *Importer) ImportCommunique(ctx context.Context, req ValidateRequest) (Result, error) {
	rows, warnings, err := req.Data.Rows()
	if err != nil {
		return Result{}, err
	}
	res := Result{Rows: len(rows), Warnings: warnings}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "preview":
		res.DryRun = true
		res.Message = fmt.Sprintf("%d lignes prêtes à être importées", len(rows))
		return res, nil
	case "", "confirm":
	default:
		return Result{}, &ValidationError{Problems: []string{fmt.Sprintf("unknown action %q", req.Action)}}
	}

	inserted, err := i.writer.InsertFvrHumain(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("insert fvr_humain: %w", err)
	}
	res.Inserted = inserted
	res.Skipped = len(rows) - inserted
	res.Message = fmt.Sprintf("%d cas importés (%d lignes, %d doublons ignorés)", sumConfirmed(rows), inserted, res.Skipped)
	i.logger.Info("fvr communique imported",
		"date", req.Data.PublishedOn, "rows", len(rows), "inserted", inserted, "skipped", res.Skipped)
	return res, nil
}

func sumConfirmed(rows []records.FvrHumainRecord) int64 {
	var n int64
	for _, r := range rows {
		n += r.Confirmed
	}
	return n
}
