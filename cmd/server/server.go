package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/archive"
	"github.com/Skufu/onehealth/internal/assistant"
	"github.com/Skufu/onehealth/internal/cache"
	"github.com/Skufu/onehealth/internal/config"
	"github.com/Skufu/onehealth/internal/importer"
	"github.com/Skufu/onehealth/internal/metrics"
	"github.com/Skufu/onehealth/internal/predict"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
	"github.com/Skufu/onehealth/internal/risk"
	"github.com/Skufu/onehealth/internal/store"
)

// server holds the dependencies the handlers share. Optional parts (cache,
// archive, assistant) are nil when not configured.
type server struct {
	store     store.Store
	engine    *aggregate.Engine
	policy    risk.Policy
	alerts    *alerts.Generator
	predictor *predict.Predictor
	importer  *importer.Importer
	assistant *assistant.Assistant
	cache     *cache.Cache
	archive   *archive.Archive
	metrics   *metrics.Metrics
	regions   *registry.Registry
	bodyLimit int64
	logger    *slog.Logger
	now       func() time.Time
}

func newServer(st store.Store, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *server {
	return &server{
		store:     st,
		engine:    aggregate.NewEngine(st, cfg.Aggregate, m, logger),
		policy:    cfg.Policy,
		alerts:    alerts.NewGenerator(cfg.Policy, cfg.Alerts),
		predictor: predict.NewPredictor(predict.LinearForecaster{}, cfg.Policy, logger),
		importer:  importer.New(st, logger),
		assistant: assistant.New(cfg.Assistant, logger),
		metrics:   m,
		regions:   registry.New(registry.Default),
		bodyLimit: cfg.BodyLimit,
		logger:    logger,
		now:       time.Now,
	}
}

// environment is the pollution and season context for the current month.
func (s *server) environment(ctx context.Context) (risk.Environment, error) {
	pm25, err := s.engine.PollutionByZone(ctx, records.YearRange{})
	return risk.Environment{PM25ByZone: pm25, Season: risk.SeasonFor(int(s.now().Month()))}, err
}

// assessSnapshot feeds the archive job. Any degraded read aborts the capture.
func (s *server) assessSnapshot(ctx context.Context) ([]aggregate.RegionAggregate, []risk.Assessment, error) {
	snapshot, err := s.engine.RegionMapSnapshot(ctx, records.YearRange{})
	if err != nil {
		return nil, nil, err
	}
	env, err := s.environment(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snapshot, s.policy.Assess(snapshot, env, risk.Options{}), nil
}
