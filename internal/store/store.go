// Package store reads and writes the One Health records. The aggregation core
// only ever uses the Reader side.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
)

// ErrUnavailable marks a failed store access. Callers degrade to an empty
// result when errors.Is(err, ErrUnavailable).
var ErrUnavailable = errors.New("record store unavailable")

type Reader interface {
	Regions(ctx context.Context) ([]registry.Region, error)
	Indicators(ctx context.Context, domain records.Domain, years records.YearRange) ([]records.IndicatorRecord, error)
	Pollution(ctx context.Context, years records.YearRange) ([]records.PollutionRecord, error)
	FvrHumain(ctx context.Context, years records.YearRange) ([]records.FvrHumainRecord, error)
	FvrAnimal(ctx context.Context, years records.YearRange) ([]records.FvrAnimalRecord, error)
	AvianFlu(ctx context.Context, years records.YearRange) ([]records.AvianFluRecord, error)
}

// Writer is the import pipeline's contract. Inserts are best-effort
// idempotent: rows already present are skipped and not counted.
type Writer interface {
	InsertFvrHumain(ctx context.Context, rows []records.FvrHumainRecord) (int, error)
	InsertIndicators(ctx context.Context, domain records.Domain, rows []records.IndicatorRecord) (int, error)
}

type Store interface {
	Reader
	Writer
	Ping(ctx context.Context) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// ErrUnknownDomain is returned for a domain the store has no table for.
var ErrUnknownDomain = errors.New("unknown domain")
