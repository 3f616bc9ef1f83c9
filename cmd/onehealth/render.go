package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/archive"
	"github.com/Skufu/onehealth/internal/importer"
	"github.com/Skufu/onehealth/internal/registry"
	"github.com/Skufu/onehealth/internal/risk"
)

var knownRegions = registry.New(registry.Default)

// regionCode is the registry code for name, or "-" for regions outside it.
func regionCode(name string) string {
	if r, ok := knownRegions.Lookup(name); ok {
		return r.Code
	}
	return "-"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderRiskTable(w io.Writer, assessed []risk.Assessment) {
	t := newTable(w, table.Row{"Région", "Code", "Score", "Niveau", "FVR H", "FVR A", "Grippe", "Paludisme", "PM2.5", "Facteurs"})
	for _, a := range assessed {
		t.AppendRow(table.Row{
			registry.DisplayName(a.Region),
			regionCode(a.Region),
			fmt.Sprintf("%.1f", a.Score),
			a.Level,
			fmt.Sprintf("%.2f", a.Intensities.FvrHumain),
			fmt.Sprintf("%.2f", a.Intensities.FvrAnimal),
			fmt.Sprintf("%.2f", a.Intensities.AvianFlu),
			fmt.Sprintf("%.2f", a.Intensities.Malaria),
			fmt.Sprintf("%.1f", a.PM25),
			strings.Join(a.Factors, "; "),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "Régions", len(assessed)})
	t.Render()
}

func renderAlertTable(w io.Writer, list []alerts.Alert) {
	if len(list) == 0 {
		fmt.Fprintln(w, "Aucune alerte pour le moment")
		return
	}
	t := newTable(w, table.Row{"Type", "Règle", "Région", "Titre", "Message"})
	for _, a := range list {
		t.AppendRow(table.Row{a.Type, a.Rule, registry.DisplayName(a.Region), a.Title, a.Message})
	}
	t.Render()
}

func renderHistoryTable(w io.Writer, entries []archive.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No archived snapshots")
		return
	}
	t := newTable(w, table.Row{"Snapshot", "Date", "Région", "Code", "Score", "Niveau", "Total cas"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.SnapshotID,
			e.TakenAt.Format("2006-01-02 15:04"),
			registry.DisplayName(e.Region),
			regionCode(e.Region),
			fmt.Sprintf("%.1f", e.Score),
			e.Level,
			e.TotalCases,
		})
	}
	t.Render()
}

func renderImportResult(w io.Writer, res importer.Result) {
	t := newTable(w, table.Row{"Lignes", "Insérées", "Ignorées", "Aperçu"})
	t.AppendRow(table.Row{res.Rows, res.Inserted, res.Skipped, res.DryRun})
	t.Render()
	fmt.Fprintln(w, res.Message)
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, "warning:", warn)
	}
}
