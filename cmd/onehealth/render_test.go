package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/archive"
	"github.com/Skufu/onehealth/internal/importer"
	"github.com/Skufu/onehealth/internal/risk"
)

func TestRenderAlertTableEmpty(t *testing.T) {
	var out bytes.Buffer
	renderAlertTable(&out, nil)
	assert.Equal(t, "Aucune alerte pour le moment\n", out.String())
}

func TestRenderAlertTable(t *testing.T) {
	var out bytes.Buffer
	renderAlertTable(&out, []alerts.Alert{{Type: alerts.Danger, Rule: "critical_risk", Region: "Matam", Title: "Risque critique"}})
	assert.Contains(t, out.String(), "critical_risk")
	assert.Contains(t, out.String(), "Matam")
}

func TestRenderHistoryTable(t *testing.T) {
	var out bytes.Buffer
	renderHistoryTable(&out, []archive.Entry{{
		SnapshotID: 3, TakenAt: time.Date(2025, 10, 1, 6, 0, 0, 0, time.UTC), Region: "Kolda", Score: 42.5, Level: "élevé",
	}})
	assert.Contains(t, out.String(), "2025-10-01 06:00")
	assert.Contains(t, out.String(), "42.5")
	assert.Contains(t, out.String(), " KD ")
}

func TestRenderRiskTableShowsRegionCodes(t *testing.T) {
	var out bytes.Buffer
	renderRiskTable(&out, []risk.Assessment{
		{Region: "Matam", Score: 71.2, Level: "critique"},
		{Region: "Atlantis", Score: 10, Level: "faible"},
		{Region: "", Score: 5, Level: "faible"},
	})
	assert.Contains(t, out.String(), " MT ")
	assert.Contains(t, out.String(), "Atlantis")
	assert.Contains(t, out.String(), " - ")
	assert.Contains(t, out.String(), "Inconnu")
}

func TestRenderAlertTableNamesUnknownRegion(t *testing.T) {
	var out bytes.Buffer
	renderAlertTable(&out, []alerts.Alert{{Type: alerts.Warning, Rule: "pm25_high", Title: "Pollution"}})
	assert.Contains(t, out.String(), "Inconnu")
}

func TestRenderImportResultWarnings(t *testing.T) {
	var out bytes.Buffer
	renderImportResult(&out, importer.Result{Rows: 2, Inserted: 1, Skipped: 1, Message: "ok", Warnings: []string{"total national 7, somme des régions 6"}})
	assert.Contains(t, out.String(), "warning: total national 7")
}
