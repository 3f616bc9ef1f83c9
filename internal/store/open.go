package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
)

type OpenOptions struct {
	EnableDB    bool
	DatabaseURL string
	Migrate     bool
	DataFile    string
}

// Open picks PostgreSQL when EnableDB is set, otherwise an in-memory store
// optionally seeded from DataFile. The returned func releases the store.
func Open(ctx context.Context, opts OpenOptions, logger *slog.Logger) (Store, func(), error) {
	if !opts.EnableDB {
		if opts.DataFile == "" {
			logger.Warn("database disabled, serving an empty in-memory store")
			return NewMemory(registry.Default, records.Dataset{}), func() {}, nil
		}
		mem, err := NewMemoryFromFile(opts.DataFile, registry.Default)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database disabled, serving dataset file", "path", opts.DataFile)
		return mem, func() {}, nil
	}

	pg, err := Connect(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if opts.Migrate {
		if err := pg.Migrate(ctx, registry.Default); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pg, pg.Close, nil
}
