package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestYearFilter(t *testing.T) {
	where, args := yearFilter("year", records.YearRange{Start: 2018, End: 2020})
	assert.Equal(t, " WHERE year BETWEEN $1 AND $2", where)
	assert.Equal(t, []any{2018, 2020}, args)

	where, args = yearFilter("annee", records.YearRange{End: 2020})
	assert.Equal(t, " WHERE annee <= $1", where)
	assert.Equal(t, []any{2020}, args)

	where, args = yearFilter("annee", records.YearRange{})
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestMemoryFiltersAndOrders(t *testing.T) {
	m := NewMemory(registry.Default, records.Dataset{
		Malaria: []records.IndicatorRecord{
			{IndicatorCode: "A", Year: 2015},
			{IndicatorCode: "A", Year: 2021},
			{IndicatorCode: "A", Year: 2019},
		},
		FvrHumain: []records.FvrHumainRecord{
			{ReportDate: date("2025-09-01"), Confirmed: 3},
			{ReportDate: date("2025-10-01"), Confirmed: 5},
			{ReportDate: date("2024-10-01"), Confirmed: 1},
		},
	})
	ctx := context.Background()

	mal, err := m.Indicators(ctx, records.Malaria, records.YearRange{Start: 2016})
	require.NoError(t, err)
	require.Len(t, mal, 2)
	assert.Equal(t, 2021, mal[0].Year)

	fvr, err := m.FvrHumain(ctx, records.YearRange{Start: 2025, End: 2025})
	require.NoError(t, err)
	require.Len(t, fvr, 2)
	assert.EqualValues(t, 5, fvr[0].Confirmed)

	_, err = m.Indicators(ctx, records.FvrAnimal, records.YearRange{})
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestMemoryFailWrapsUnavailable(t *testing.T) {
	m := NewMemory(nil, records.Dataset{})
	m.Fail(errors.New("connection refused"))

	_, err := m.FvrAnimal(context.Background(), records.YearRange{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, m.Ping(context.Background()), ErrUnavailable)

	m.Fail(nil)
	assert.NoError(t, m.Ping(context.Background()))
}

func TestMemoryInsertSkipsDuplicates(t *testing.T) {
	m := NewMemory(nil, records.Dataset{})
	ctx := context.Background()
	rows := []records.FvrHumainRecord{
		{ReportDate: date("2025-10-10"), Region: "Matam", District: "Kanel", Confirmed: 4},
		{ReportDate: date("2025-10-10"), Region: "Matam", District: "Kanel", Confirmed: 4},
		{ReportDate: date("2025-10-10"), Region: "Matam", District: "Ranérou", Confirmed: 2},
	}

	n, err := m.InsertFvrHumain(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.InsertFvrHumain(ctx, rows)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = m.InsertIndicators(ctx, records.Tuberculosis, []records.IndicatorRecord{
		{IndicatorCode: "TB", Year: 2020}, {IndicatorCode: "TB", Year: 2020},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadDataset(t *testing.T) {
	in := `{
		"fvr_humain": [{"date_bilan": "2025-10-08T00:00:00Z", "cas_confirmes": 4, "region": "Matam"}],
		"pollution_air": [{"annee": 2020, "zone": "National", "concentration_pm25": "41.2"}]
	}`

	data, err := LoadDataset(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, data.FvrHumain, 1)
	assert.EqualValues(t, 4, data.FvrHumain[0].Confirmed)
	assert.Equal(t, "41.2", data.Pollution[0].ConcentrationPM25)

	_, err = LoadDataset(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestWriteDatasetRoundTrip(t *testing.T) {
	mem := NewMemory(registry.Default, records.Dataset{
		FvrAnimal: []records.FvrAnimalRecord{{Year: 2025, Cases: 12, Species: "bovin", Region: "Matam"}},
	})
	_, err := mem.InsertIndicators(context.Background(), records.Malaria, []records.IndicatorRecord{
		{IndicatorCode: "MALARIA_CONF_CASES", Year: 2024, NumericValue: "10"},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, mem.SaveFile(path))

	loaded, err := NewMemoryFromFile(path, registry.Default)
	require.NoError(t, err)
	assert.Equal(t, mem.Dataset(), loaded.Dataset())
	assert.Len(t, loaded.Dataset().Malaria, 1)
}

func TestOpenWithoutDatabase(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	st, closeFn, err := Open(context.Background(), OpenOptions{}, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &Memory{}, st)

	_, _, err = Open(context.Background(), OpenOptions{DataFile: filepath.Join(t.TempDir(), "missing.json")}, logger)
	assert.Error(t, err)
}
