package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/archive"
	"github.com/Skufu/onehealth/internal/assistant"
	"github.com/Skufu/onehealth/internal/importer"
	"github.com/Skufu/onehealth/internal/predict"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/registry"
	"github.com/Skufu/onehealth/internal/risk"
	"github.com/Skufu/onehealth/internal/store"
)

func (s *server) listRegions(c *gin.Context) {
	regions, err := s.store.Regions(c.Request.Context())
	if err != nil {
		s.respond(c, []registry.Region{}, err)
		return
	}
	if len(regions) == 0 {
		regions = s.regions.List()
	}
	s.respond(c, regions, nil)
}

// listRecords wraps a raw store read with year filtering and degradation.
func listRecords[T any](s *server, domain records.Domain, read func(context.Context, records.YearRange) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		years, err := yearRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rows, err := read(c.Request.Context(), years)
		if rows == nil {
			rows = []T{}
		}
		if errors.Is(err, store.ErrUnavailable) {
			s.metrics.StoreFailed(string(domain))
		}
		s.respond(c, rows, err)
	}
}

func (s *server) listIndicators(domain records.Domain) gin.HandlerFunc {
	return listRecords(s, domain, func(ctx context.Context, years records.YearRange) ([]records.IndicatorRecord, error) {
		return s.store.Indicators(ctx, domain, years)
	})
}

func (s *server) listPollution(c *gin.Context) { listRecords(s, records.Pollution, s.store.Pollution)(c) }
func (s *server) listFvrHumain(c *gin.Context) { listRecords(s, records.FvrHumain, s.store.FvrHumain)(c) }
func (s *server) listFvrAnimal(c *gin.Context) { listRecords(s, records.FvrAnimal, s.store.FvrAnimal)(c) }
func (s *server) listAvianFlu(c *gin.Context) { listRecords(s, records.AvianFlu, s.store.AvianFlu)(c) }

func (s *server) kpis(c *gin.Context) {
	k, err := cached(s, c, s.engine.KPIs)
	s.respond(c, k, err)
}

func (s *server) domainTotal(domain records.Domain) gin.HandlerFunc {
	return func(c *gin.Context) {
		years, err := yearRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		total, err := cached(s, c, func(ctx context.Context) (int64, error) {
			return s.engine.TotalByDomain(ctx, domain, years)
		})
		s.respond(c, total, err)
	}
}

func (s *server) byRegion(domain records.Domain) gin.HandlerFunc {
	return func(c *gin.Context) {
		years, err := yearRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		totals, err := cached(s, c, func(ctx context.Context) ([]aggregate.RegionTotal, error) {
			return s.engine.TotalsByRegion(ctx, domain, years)
		})
		s.respond(c, totals, err)
	}
}

func (s *server) byIndicator(domain records.Domain) gin.HandlerFunc {
	return func(c *gin.Context) {
		years, err := yearRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		buckets, err := cached(s, c, func(ctx context.Context) ([]aggregate.IndicatorBucket, error) {
			return s.engine.ByIndicatorBucket(ctx, domain, years)
		})
		s.respond(c, buckets, err)
	}
}

func (s *server) snapshot(c *gin.Context) ([]aggregate.RegionAggregate, error) {
	return cached(s, c, func(ctx context.Context) ([]aggregate.RegionAggregate, error) {
		return s.engine.RegionMapSnapshot(ctx, records.YearRange{})
	})
}

func (s *server) mapData(c *gin.Context) {
	snap, err := s.snapshot(c)
	s.respond(c, snap, err)
}

type riskResponse struct {
	Season      risk.Level         `json:"season"`
	PM25ByZone  map[string]float64 `json:"pm25_by_zone"`
	Assessments []risk.Assessment  `json:"regions"`
}

func (s *server) riskRegions(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := s.engine.RegionMapSnapshot(ctx, records.YearRange{})
	env, envErr := s.environment(ctx)
	if err == nil {
		err = envErr
	}
	opts := risk.Options{}
	if cast.ToBool(c.Query("all")) {
		opts.AllKnownRegions = s.regions.Names()
	}
	s.respond(c, riskResponse{
		Season:      env.Season,
		PM25ByZone:  env.PM25ByZone,
		Assessments: s.policy.Assess(snap, env, opts),
	}, err)
}

func (s *server) riskLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"thresholds":   s.policy.Thresholds,
		"levels":       s.policy.Thresholds.Legend(),
		"weights":      s.policy.Weights,
		"season_bonus": s.policy.SeasonBonus,
		"season":       risk.SeasonFor(int(s.now().Month())),
	})
}

func (s *server) riskHistory(c *gin.Context) {
	limit, err := cast.ToIntE(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	entries, err := s.archive.History(c.Request.Context(), c.Query("region"), limit)
	if err != nil {
		s.respond(c, []archive.Entry{}, err)
		return
	}
	s.respond(c, entries, nil)
}

func (s *server) correlationTable(c *gin.Context) {
	snap, err := s.snapshot(c)
	s.respond(c, s.alerts.CorrelationTable(snap), err)
}

func (s *server) correlationAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	snap, err := s.engine.RegionMapSnapshot(ctx, records.YearRange{})
	pm25, pollErr := s.engine.PollutionByZone(ctx, records.YearRange{})
	if err == nil {
		err = pollErr
	}
	out := s.alerts.Generate(snap, pm25)
	for kind, n := range alerts.CountByType(out) {
		for i := 0; i < n; i++ {
			s.metrics.Alert(kind)
		}
	}
	s.respond(c, out, err)
}

func (s *server) correlationSummary(c *gin.Context) {
	snap, err := s.snapshot(c)
	s.respond(c, s.alerts.Summarize(snap), err)
}

func (s *server) predictionInput(ctx context.Context) (predict.Input, error) {
	data, err := s.engine.Load(ctx, records.YearRange{}, records.FvrHumain)
	snap, snapErr := s.engine.RegionMapSnapshot(ctx, records.YearRange{})
	pm25, pollErr := s.engine.PollutionByZone(ctx, records.YearRange{})
	return predict.Input{
		FvrHumain:  data.FvrHumain,
		Snapshot:   snap,
		PM25ByZone: pm25,
		Month:      int(s.now().Month()),
	}, errors.Join(err, snapErr, pollErr)
}

func (s *server) predictionRegions(c *gin.Context) {
	ctx := c.Request.Context()
	in, degraded := s.predictionInput(ctx)
	preds, err := s.predictor.Regions(ctx, in)
	if err != nil {
		s.respond(c, []predict.RegionPrediction{}, err)
		return
	}
	s.respond(c, preds, degraded)
}

func (s *server) predictionSummary(c *gin.Context) {
	ctx := c.Request.Context()
	in, degraded := s.predictionInput(ctx)
	preds, err := s.predictor.Regions(ctx, in)
	if err != nil {
		s.respond(c, predict.Summarize(nil), err)
		return
	}
	s.respond(c, predict.Summarize(preds), degraded)
}

func (s *server) modelStatus(c *gin.Context) {
	data, err := s.engine.Load(c.Request.Context(), records.YearRange{}, records.FvrHumain)
	s.respond(c, predict.ModelStatus(predict.DistinctDates(data.FvrHumain)), err)
}

// decodeImport accepts {"data": communique, "action": ...} or a bare
// communiqué.
func decodeImport(raw []byte) (importer.ValidateRequest, error) {
	var req importer.ValidateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	if req.Data.PublishedOn == "" && len(req.Data.Regions) == 0 {
		if err := json.Unmarshal(raw, &req.Data); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *server) importCommunique(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	req, err := decodeImport(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "detail": err.Error()})
		return
	}

	res, err := s.importer.ImportCommunique(c.Request.Context(), req)
	var verr *importer.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "validation_failed",
			"detail":   strings.Join(verr.Problems, "; "),
			"problems": verr.Problems,
		})
		return
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable", "detail": "la base de données est indisponible"})
		return
	case err != nil:
		s.respond(c, nil, err)
		return
	}

	if res.Inserted > 0 {
		if err := s.cache.Invalidate(c.Request.Context()); err != nil {
			s.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, res)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *server) chat(c *gin.Context) {
	if s.assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "assistant non configuré"})
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}

	ctx := c.Request.Context()
	facts := assistant.Facts{}
	kpis, err := s.engine.KPIs(ctx)
	if err != nil {
		s.logger.Warn("assistant facts degraded", "facts", "kpis", "error", err)
	}
	facts.KPIs = kpis
	if snap, err := s.engine.RegionMapSnapshot(ctx, records.YearRange{}); err != nil {
		s.logger.Warn("assistant facts degraded", "facts", "snapshot", "error", err)
	} else {
		env, err := s.environment(ctx)
		if err != nil {
			s.logger.Warn("assistant facts degraded", "facts", "pollution", "error", err)
		}
		facts.Summary = s.alerts.Summarize(snap)
		facts.TopRisks = assistant.TopRisks(s.policy.Assess(snap, env, risk.Options{}), 3)
	}

	answer, err := s.assistant.Answer(ctx, req.Message, facts)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"detail": "l'assistant est momentanément indisponible"})
	default:
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	}
}
