package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/Skufu/onehealth/internal/records"
)

// HXL hashtags read from indicator exports.
const (
	tagCode   = "#indicator+code"
	tagName   = "#indicator+name"
	tagYear   = "#date+year"
	tagValue  = "#indicator+value"
	tagNum    = "#indicator+value+num"
	tagLow    = "#indicator+value+low"
	tagHigh   = "#indicator+value+high"
	tagRegion = "#adm1+name"
)

var ErrNoHXLTags = errors.New("no HXL tag row found")

func isTagRow(row []string) bool {
	seen := false
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if !strings.HasPrefix(cell, "#") {
			return false
		}
		seen = true
	}
	return seen
}

// normalizeTag lowercases and drops spaces so "#indicator +code" matches.
func normalizeTag(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// ParseIndicators reads an HXL CSV. The tag row is either the first line or
// the line right after a human header. Rows without a code or with a year
// <= 0 are skipped and counted.
func ParseIndicators(r io.Reader) ([]records.IndicatorRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var columns map[string]int
	for line := 0; line < 2 && columns == nil; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		if isTagRow(row) {
			columns = make(map[string]int, len(row))
			for i, tag := range row {
				columns[normalizeTag(tag)] = i
			}
		}
	}
	if columns == nil {
		return nil, 0, ErrNoHXLTags
	}
	if _, ok := columns[tagCode]; !ok {
		return nil, 0, fmt.Errorf("missing %s column", tagCode)
	}

	get := func(row []string, tag string) string {
		i, ok := columns[tag]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		out     []records.IndicatorRecord
		skipped int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read csv: %w", err)
		}
		code := get(row, tagCode)
		year := cast.ToInt(get(row, tagYear))
		if code == "" || year <= 0 {
			skipped++
			continue
		}
		out = append(out, records.IndicatorRecord{
			IndicatorCode: code,
			IndicatorName: get(row, tagName),
			Year:          year,
			Value:         get(row, tagValue),
			NumericValue:  get(row, tagNum),
			LowValue:      get(row, tagLow),
			HighValue:     get(row, tagHigh),
			Region:        get(row, tagRegion),
		})
	}
	return out, skipped, nil
}

// ImportIndicators parses r and writes the rows into the domain table.
func (i *Importer) ImportIndicators(ctx context.Context, domain records.Domain, r io.Reader) (Result, error) {
	if !domain.IsIndicator() {
		return Result{}, fmt.Errorf("domain %q does not hold indicator rows", domain)
	}
	rows, skipped, err := ParseIndicators(r)
	if err != nil {
		return Result{}, err
	}
	inserted, err := i.writer.InsertIndicators(ctx, domain, rows)
	if err != nil {
		return Result{}, fmt.Errorf("insert %s: %w", domain, err)
	}
	res := Result{
		Rows:     len(rows),
		Inserted: inserted,
		Skipped:  skipped + len(rows) - inserted,
		Warnings: []string{},
		Message:  fmt.Sprintf("%d %s records imported", inserted, domain),
	}
	i.logger.Info("indicator csv imported", "domain", domain, "rows", len(rows), "inserted", inserted, "skipped", res.Skipped)
	return res, nil
}
