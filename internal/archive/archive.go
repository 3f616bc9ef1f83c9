// Package archive keeps a local SQLite history of region risk scores so the
// dashboard can chart how a region evolved between imports.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/risk"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS region_scores (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	region TEXT NOT NULL,
	score REAL NOT NULL,
	risk_level TEXT NOT NULL,
	total_cases INTEGER NOT NULL,
	fvr_humain INTEGER NOT NULL,
	fvr_animal INTEGER NOT NULL,
	grippe_aviaire INTEGER NOT NULL,
	malaria INTEGER NOT NULL,
	PRIMARY KEY (snapshot_id, region)
);
CREATE INDEX IF NOT EXISTS region_scores_region ON region_scores(region);
`

type Entry struct {
	SnapshotID int64     `json:"snapshot_id"`
	TakenAt    time.Time `json:"taken_at"`
	Region     string    `json:"region"`
	Score      float64   `json:"score"`
	Level      string    `json:"risk_level"`
	TotalCases int64     `json:"total_cases"`
	FvrHumain  int64     `json:"fvr_humain"`
	FvrAnimal  int64     `json:"fvr_animal"`
	AvianFlu   int64     `json:"grippe_aviaire"`
	Malaria    int64     `json:"malaria"`
}

type Archive struct {
	db *sql.DB
}

// Open creates the database file and its directory if needed.
func Open(path string) (*Archive, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}
	// Foreign keys are per connection, so they go in the DSN where every
	// connection the pool opens picks them up.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Save stores one snapshot. assessed must be in the same order as snapshot.
func (a *Archive) Save(ctx context.Context, takenAt time.Time, snapshot []aggregate.RegionAggregate, assessed []risk.Assessment) (id int64, err error) {
	if len(snapshot) != len(assessed) {
		return 0, fmt.Errorf("snapshot has %d regions, assessment %d", len(snapshot), len(assessed))
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO snapshots (taken_at) VALUES (?)`, takenAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, agg := range snapshot {
		r := assessed[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO region_scores (
				snapshot_id, region, score, risk_level, total_cases,
				fvr_humain, fvr_animal, grippe_aviaire, malaria
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, agg.Region, r.Score, string(r.Level), agg.TotalCases,
			agg.FvrHumain, agg.FvrAnimal, agg.AvianFlu, agg.Malaria)
		if err != nil {
			return 0, fmt.Errorf("insert region score %s: %w", agg.Region, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// History returns the newest entries first. An empty region returns every
// region; limit <= 0 means no limit.
func (a *Archive) History(ctx context.Context, region string, limit int) ([]Entry, error) {
	query := `
		SELECT s.id, s.taken_at, r.region, r.score, r.risk_level, r.total_cases,
			r.fvr_humain, r.fvr_animal, r.grippe_aviaire, r.malaria
		FROM region_scores r JOIN snapshots s ON s.id = r.snapshot_id`
	var args []any
	if region != "" {
		query += ` WHERE r.region = ?`
		args = append(args, region)
	}
	query += ` ORDER BY s.id DESC, r.region ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			takenAt string
		)
		if err := rows.Scan(&e.SnapshotID, &takenAt, &e.Region, &e.Score, &e.Level, &e.TotalCases,
			&e.FvrHumain, &e.FvrAnimal, &e.AvianFlu, &e.Malaria); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.TakenAt, err = time.Parse(time.RFC3339, takenAt); err != nil {
			return nil, fmt.Errorf("parse taken_at %q of snapshot %d: %w", takenAt, e.SnapshotID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes snapshots older than cutoff and returns how many went.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM snapshots WHERE taken_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	return res.RowsAffected()
}
