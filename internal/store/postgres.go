package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS regions (
	id SERIAL PRIMARY KEY,
	nom VARCHAR(100) NOT NULL UNIQUE,
	code VARCHAR(10) NOT NULL UNIQUE,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS malaria (
	id SERIAL PRIMARY KEY,
	indicator_code VARCHAR(100) NOT NULL,
	indicator_name TEXT NOT NULL,
	year INT NOT NULL,
	value VARCHAR(100),
	numeric_value VARCHAR(50),
	low_value VARCHAR(50),
	high_value VARCHAR(50),
	region VARCHAR(100),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS malaria_dedup ON malaria (indicator_code, year, (COALESCE(region, '')));
CREATE TABLE IF NOT EXISTS tuberculose (
	id SERIAL PRIMARY KEY,
	indicator_code VARCHAR(100) NOT NULL,
	indicator_name TEXT NOT NULL,
	year INT NOT NULL,
	value VARCHAR(100),
	numeric_value VARCHAR(50),
	low_value VARCHAR(50),
	high_value VARCHAR(50),
	region VARCHAR(100),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS tuberculose_dedup ON tuberculose (indicator_code, year, (COALESCE(region, '')));
CREATE TABLE IF NOT EXISTS fvr_humain (
	id SERIAL PRIMARY KEY,
	date_bilan DATE NOT NULL,
	cas_confirmes INT NOT NULL DEFAULT 0,
	deces INT NOT NULL DEFAULT 0,
	gueris INT NOT NULL DEFAULT 0,
	region VARCHAR(100),
	district VARCHAR(100),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS fvr_humain_dedup ON fvr_humain (date_bilan, (COALESCE(region, '')), (COALESCE(district, '')));
CREATE TABLE IF NOT EXISTS fvr_animal (
	id SERIAL PRIMARY KEY,
	annee INT NOT NULL,
	cas INT NOT NULL DEFAULT 0,
	espece VARCHAR(100),
	region VARCHAR(100),
	localisation VARCHAR(100),
	source VARCHAR(100),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS grippe_aviaire (
	id SERIAL PRIMARY KEY,
	report_id VARCHAR(100) NOT NULL UNIQUE,
	date_rapport DATE NOT NULL,
	region VARCHAR(100),
	espece VARCHAR(100),
	maladie TEXT,
	cas_confirmes INT NOT NULL DEFAULT 0,
	deces INT NOT NULL DEFAULT 0,
	statut_epidemie VARCHAR(50),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pollution_air (
	id SERIAL PRIMARY KEY,
	annee INT NOT NULL,
	zone VARCHAR(50) NOT NULL,
	concentration_pm25 VARCHAR(20),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres reads records through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and verifies it with a bounded ping.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Migrate creates the tables and seeds the region registry.
func (p *Postgres) Migrate(ctx context.Context, regions []registry.Region) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, r := range regions {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO regions (nom, code, latitude, longitude) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			r.Name, r.Code, r.Latitude, r.Longitude)
		if err != nil {
			return fmt.Errorf("seed region %s: %w", r.Name, err)
		}
	}
	return nil
}

// yearFilter renders an inclusive year predicate on expr with positional
// arguments starting at $1.
func yearFilter(expr string, years records.YearRange) (string, []any) {
	if years.IsZero() {
		return "", nil
	}
	switch {
	case years.Start != 0 && years.End != 0:
		return fmt.Sprintf(" WHERE %s BETWEEN $1 AND $2", expr), []any{years.Start, years.End}
	case years.Start != 0:
		return fmt.Sprintf(" WHERE %s >= $1", expr), []any{years.Start}
	default:
		return fmt.Sprintf(" WHERE %s <= $1", expr), []any{years.End}
	}
}

func (p *Postgres) Regions(ctx context.Context) ([]registry.Region, error) {
	rows, err := p.pool.Query(ctx, `SELECT nom, code, COALESCE(latitude, 0), COALESCE(longitude, 0) FROM regions ORDER BY nom`)
	if err != nil {
		return nil, unavailable("regions", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (registry.Region, error) {
		var r registry.Region
		err := row.Scan(&r.Name, &r.Code, &r.Latitude, &r.Longitude)
		return r, err
	})
	if err != nil {
		return nil, unavailable("regions", err)
	}
	return out, nil
}

func (p *Postgres) Indicators(ctx context.Context, domain records.Domain, years records.YearRange) ([]records.IndicatorRecord, error) {
	if !domain.IsIndicator() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	where, args := yearFilter("year", years)
	q := `SELECT id, indicator_code, indicator_name, year, COALESCE(value, ''), COALESCE(numeric_value, ''),
		COALESCE(low_value, ''), COALESCE(high_value, ''), COALESCE(region, '')
		FROM ` + string(domain) + where + ` ORDER BY year DESC, id`
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, unavailable(string(domain), err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.IndicatorRecord, error) {
		var r records.IndicatorRecord
		err := row.Scan(&r.ID, &r.IndicatorCode, &r.IndicatorName, &r.Year, &r.Value, &r.NumericValue,
			&r.LowValue, &r.HighValue, &r.Region)
		return r, err
	})
	if err != nil {
		return nil, unavailable(string(domain), err)
	}
	return out, nil
}

func (p *Postgres) Pollution(ctx context.Context, years records.YearRange) ([]records.PollutionRecord, error) {
	where, args := yearFilter("annee", years)
	rows, err := p.pool.Query(ctx,
		`SELECT id, annee, zone, COALESCE(concentration_pm25, '') FROM pollution_air`+where+` ORDER BY annee DESC, id`, args...)
	if err != nil {
		return nil, unavailable("pollution", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.PollutionRecord, error) {
		var r records.PollutionRecord
		err := row.Scan(&r.ID, &r.Year, &r.Zone, &r.ConcentrationPM25)
		return r, err
	})
	if err != nil {
		return nil, unavailable("pollution", err)
	}
	return out, nil
}

func (p *Postgres) FvrHumain(ctx context.Context, years records.YearRange) ([]records.FvrHumainRecord, error) {
	where, args := yearFilter("EXTRACT(YEAR FROM date_bilan)::int", years)
	rows, err := p.pool.Query(ctx,
		`SELECT id, date_bilan, cas_confirmes, deces, gueris, COALESCE(region, ''), COALESCE(district, '')
		FROM fvr_humain`+where+` ORDER BY date_bilan DESC, id`, args...)
	if err != nil {
		return nil, unavailable("fvr_humain", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.FvrHumainRecord, error) {
		var r records.FvrHumainRecord
		err := row.Scan(&r.ID, &r.ReportDate, &r.Confirmed, &r.Deaths, &r.Recoveries, &r.Region, &r.District)
		return r, err
	})
	if err != nil {
		return nil, unavailable("fvr_humain", err)
	}
	return out, nil
}

func (p *Postgres) FvrAnimal(ctx context.Context, years records.YearRange) ([]records.FvrAnimalRecord, error) {
	where, args := yearFilter("annee", years)
	rows, err := p.pool.Query(ctx,
		`SELECT id, annee, cas, COALESCE(espece, ''), COALESCE(region, ''), COALESCE(localisation, ''), COALESCE(source, '')
		FROM fvr_animal`+where+` ORDER BY annee DESC, id`, args...)
	if err != nil {
		return nil, unavailable("fvr_animal", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.FvrAnimalRecord, error) {
		var r records.FvrAnimalRecord
		err := row.Scan(&r.ID, &r.Year, &r.Cases, &r.Species, &r.Region, &r.Locality, &r.Source)
		return r, err
	})
	if err != nil {
		return nil, unavailable("fvr_animal", err)
	}
	return out, nil
}

func (p *Postgres) AvianFlu(ctx context.Context, years records.YearRange) ([]records.AvianFluRecord, error) {
	where, args := yearFilter("EXTRACT(YEAR FROM date_rapport)::int", years)
	rows, err := p.pool.Query(ctx,
		`SELECT id, report_id, date_rapport, COALESCE(region, ''), COALESCE(espece, ''), COALESCE(maladie, ''),
		cas_confirmes, deces, COALESCE(statut_epidemie, '')
		FROM grippe_aviaire`+where+` ORDER BY date_rapport DESC, id`, args...)
	if err != nil {
		return nil, unavailable("grippe_aviaire", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.AvianFluRecord, error) {
		var r records.AvianFluRecord
		err := row.Scan(&r.ID, &r.ReportID, &r.ReportDate, &r.Region, &r.Species, &r.Disease,
			&r.Confirmed, &r.Deaths, &r.EpidemicStatus)
		return r, err
	})
	if err != nil {
		return nil, unavailable("grippe_aviaire", err)
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p *Postgres) InsertFvrHumain(ctx context.Context, rows []records.FvrHumainRecord) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, unavailable("insert fvr_humain", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, r := range rows {
		tag, err := tx.Exec(ctx,
			`INSERT INTO fvr_humain (date_bilan, cas_confirmes, deces, gueris, region, district)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			r.ReportDate, r.Confirmed, r.Deaths, r.Recoveries, nullable(r.Region), nullable(r.District))
		if err != nil {
			return 0, fmt.Errorf("insert fvr_humain %s/%s: %w", r.Region, r.District, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, unavailable("commit fvr_humain", err)
	}
	return inserted, nil
}

func (p *Postgres) InsertIndicators(ctx context.Context, domain records.Domain, rows []records.IndicatorRecord) (int, error) {
	if !domain.IsIndicator() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, unavailable("insert "+string(domain), err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO ` + string(domain) + ` (indicator_code, indicator_name, year, value, numeric_value, low_value, high_value, region)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT DO NOTHING`
	inserted := 0
	for _, r := range rows {
		tag, err := tx.Exec(ctx, q, r.IndicatorCode, r.IndicatorName, r.Year, nullable(r.Value), nullable(r.NumericValue),
			nullable(r.LowValue), nullable(r.HighValue), nullable(r.Region))
		if err != nil {
			return 0, fmt.Errorf("insert %s %s/%d: %w", domain, r.IndicatorCode, r.Year, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, unavailable("commit "+string(domain), err)
	}
	return inserted, nil
}
