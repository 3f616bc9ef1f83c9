package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
	"github.com/Skufu/onehealth/internal/store"
)

func communique() Communique {
	return Communique{
		PublishedOn:    "2025-10-09",
		ReferenceDate:  "2025-10-08",
		TotalConfirmed: 25,
		TotalDeaths:    2,
		Regions: []RegionReport{
			{Name: "Saint-Louis", Cases: 20, Deaths: 2, Recoveries: 5, Districts: []District{
				{Name: "Richard-Toll", Cases: 12},
				{Name: "Dagana", Cases: 8},
			}},
			{Name: "Matam", Cases: 5},
		},
	}
}

func newImporter() (*Importer, *store.Memory) {
	mem := store.NewMemory(registry.Default, records.Dataset{})
	return New(mem, slog.New(slog.NewTextHandler(io.Discard, nil))), mem
}

func TestCommuniqueRows(t *testing.T) {
	rows, warnings, err := communique().Rows()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	date := time.Date(2025, 10, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []records.FvrHumainRecord{
		{ReportDate: date, Confirmed: 12, Deaths: 2, Recoveries: 5, Region: "Saint-Louis", District: "Richard-Toll"},
		{ReportDate: date, Confirmed: 8, Region: "Saint-Louis", District: "Dagana"},
		{ReportDate: date, Confirmed: 5, Region: "Matam"},
	}, rows)
}

func TestCommuniqueWarnings(t *testing.T) {
	c := communique()
	c.TotalConfirmed = 30
	c.Regions[0].Districts[1].Cases = 7
	c.ReferenceDate = "hier"

	rows, warnings, err := c.Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Len(t, warnings, 3)
	assert.Equal(t, 2025, rows[0].ReportDate.Year())
	assert.Equal(t, 9, rows[0].ReportDate.Day(), "falls back to the publication date")
}

func TestCommuniqueValidation(t *testing.T) {
	c := Communique{
		PublishedOn: "not a date",
		Regions: []RegionReport{
			{Name: " ", Cases: 3},
			{Name: "Louga", Cases: -1},
			{Name: "Matam", Cases: 1, Districts: []District{{Name: "", Cases: 1}}},
		},
	}

	_, _, err := c.Rows()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 4)
	assert.Contains(t, err.Error(), "date_communique")
}

func TestCommuniqueRequiresRegions(t *testing.T) {
	_, _, err := Communique{PublishedOn: "2025-10-09"}.Rows()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"regions must not be empty"}, verr.Problems)
}

func TestImportCommuniqueSkipsDuplicates(t *testing.T) {
	imp, mem := newImporter()
	ctx := context.Background()

	first, err := imp.ImportCommunique(ctx, ValidateRequest{Data: communique(), Action: "confirm"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Zero(t, first.Skipped)

	second, err := imp.ImportCommunique(ctx, ValidateRequest{Data: communique()})
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Skipped)

	stored, err := mem.FvrHumain(ctx, records.YearRange{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestImportCommuniquePreview(t *testing.T) {
	imp, mem := newImporter()

	res, err := imp.ImportCommunique(context.Background(), ValidateRequest{Data: communique(), Action: "preview"})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 3, res.Rows)

	stored, err := mem.FvrHumain(context.Background(), records.YearRange{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestImportCommuniqueUnknownAction(t *testing.T) {
	imp, _ := newImporter()

	_, err := imp.ImportCommunique(context.Background(), ValidateRequest{Data: communique(), Action: "delete"})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestImportCommuniqueStoreDown(t *testing.T) {
	imp, mem := newImporter()
	mem.Fail(errors.New("connection reset"))

	_, err := imp.ImportCommunique(context.Background(), ValidateRequest{Data: communique()})
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

const hxlWithHeader = `Indicator code,Indicator name,Year,Value,Numeric value,Region
#indicator+code,#indicator+name,#date+year,#indicator+value,#indicator+value+num,#adm1+name
MALARIA_CONF_CASES,Confirmed malaria cases,2021,"536,850",536850,
MALARIA_CONF_CASES,Confirmed malaria cases,2022,"1 200",1200,Kolda
,Missing code,2022,5,5,
MALARIA_EST_DEATHS,Estimated deaths,,10,10,
`

func TestParseIndicators(t *testing.T) {
	rows, skipped, err := ParseIndicators(strings.NewReader(hxlWithHeader))
	require.NoError(t, err)

	assert.Equal(t, 2, skipped)
	require.Len(t, rows, 2)
	assert.Equal(t, records.IndicatorRecord{
		IndicatorCode: "MALARIA_CONF_CASES",
		IndicatorName: "Confirmed malaria cases",
		Year:          2021,
		Value:         "536,850",
		NumericValue:  "536850",
	}, rows[0])
	assert.Equal(t, "Kolda", rows[1].Region)
}

func TestParseIndicatorsTagsFirst(t *testing.T) {
	in := "#indicator+code,#date+year,#indicator+value+num\nMDG_0000000020,2020,117\n"

	rows, skipped, err := ParseIndicators(strings.NewReader(in))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, []records.IndicatorRecord{{IndicatorCode: "MDG_0000000020", Year: 2020, NumericValue: "117"}}, rows)
}

func TestParseIndicatorsWithoutTags(t *testing.T) {
	_, _, err := ParseIndicators(strings.NewReader("code,year\nX,2020\nY,2021\n"))
	assert.ErrorIs(t, err, ErrNoHXLTags)
}

func TestImportIndicators(t *testing.T) {
	imp, mem := newImporter()
	ctx := context.Background()

	res, err := imp.ImportIndicators(ctx, records.Malaria, strings.NewReader(hxlWithHeader))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Skipped)

	again, err := imp.ImportIndicators(ctx, records.Malaria, strings.NewReader(hxlWithHeader))
	require.NoError(t, err)
	assert.Zero(t, again.Inserted)

	stored, err := mem.Indicators(ctx, records.Malaria, records.YearRange{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	_, err = imp.ImportIndicators(ctx, records.FvrAnimal, strings.NewReader(hxlWithHeader))
	assert.Error(t, err)
}
