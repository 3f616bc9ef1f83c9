package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
)

func TestYearFilterAllBranches(t *testing.T) {
	where, args := yearFilter("annee", records.YearRange{})
	assert.Empty(t, where)
	assert.Nil(t, args)

	where, args = yearFilter("annee", records.YearRange{Start: 2020, End: 2024})
	assert.Equal(t, " WHERE annee BETWEEN $1 AND $2", where)
	assert.Equal(t, []any{2020, 2024}, args)

	where, args = yearFilter("annee", records.YearRange{Start: 2020})
	assert.Equal(t, " WHERE annee >= $1", where)
	assert.Equal(t, []any{2020}, args)

	where, args = yearFilter("annee", records.YearRange{End: 2024})
	assert.Equal(t, " WHERE annee <= $1", where)
	assert.Equal(t, []any{2024}, args)
}

// connectTestDB needs a disposable database in TEST_DATABASE_URL.
func connectTestDB(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, registry.Default))
	return db
}

func TestPostgresMigrateSeedsRegions(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()

	// A second migration must be a no-op.
	require.NoError(t, db.Migrate(ctx, registry.Default))

	regions, err := db.Regions(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(regions), len(registry.Default))
	assert.Contains(t, regions, registry.Region{Name: "Matam", Code: "MT", Latitude: 15.6558, Longitude: -13.2558})
	require.NoError(t, db.Ping(ctx))
}

func TestPostgresInsertFvrHumainSkipsDuplicates(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()
	region := fmt.Sprintf("test-%d", time.Now().UnixNano())
	rows := []records.FvrHumainRecord{
		{ReportDate: date("2025-10-01"), Confirmed: 12, Deaths: 1, Recoveries: 4, Region: region, District: "Ourossogui"},
		{ReportDate: date("2025-10-08"), Confirmed: 3, Region: region},
	}

	n, err := db.InsertFvrHumain(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.InsertFvrHumain(ctx, rows)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := db.FvrHumain(ctx, records.YearRange{Start: 2025, End: 2025})
	require.NoError(t, err)
	var mine []records.FvrHumainRecord
	for _, r := range got {
		if r.Region == region {
			mine = append(mine, r)
		}
	}
	require.Len(t, mine, 2)
	assert.True(t, mine[0].ReportDate.Equal(date("2025-10-08")), "newest first")
	assert.EqualValues(t, 12, mine[1].Confirmed)
	assert.Equal(t, "Ourossogui", mine[1].District)
}

func TestPostgresInsertIndicatorsSkipsDuplicates(t *testing.T) {
	db := connectTestDB(t)
	ctx := context.Background()
	region := fmt.Sprintf("test-%d", time.Now().UnixNano())
	rows := []records.IndicatorRecord{
		{IndicatorCode: "MALARIA_CONF_CASES", IndicatorName: "Confirmed malaria cases", Year: 2022, NumericValue: "1200", Region: region},
	}

	n, err := db.InsertIndicators(ctx, records.Malaria, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = db.InsertIndicators(ctx, records.Malaria, rows)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := db.Indicators(ctx, records.Malaria, records.YearRange{Start: 2022, End: 2022})
	require.NoError(t, err)
	var found bool
	for _, r := range got {
		if r.Region == region {
			found = true
			assert.Equal(t, "1200", r.NumericValue)
			assert.Empty(t, r.LowValue)
		}
	}
	assert.True(t, found)

	_, err = db.InsertIndicators(ctx, records.Pollution, rows)
	assert.ErrorIs(t, err, ErrUnknownDomain)
}
