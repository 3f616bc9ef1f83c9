package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/Skufu/onehealth/internal/cache"
	"github.com/Skufu/onehealth/internal/records"
	"github.com/Skufu/onehealth/internal/store"
)

const degradedHeader = "X-Data-Degraded"

func setupRouter(s *server, staticRoot string) *gin.Engine {
	limit := s.bodyLimit
	if limit <= 0 {
		limit = 1 << 20
	}
	router := gin.New()
	router.Use(
		requestID(),
		gin.Logger(),
		gin.Recovery(),
		limitBodySize(limit),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders: []string{degradedHeader, "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}),
	)

	if staticRoot != "" {
		router.Static("/assets", filepath.Join(staticRoot, "assets"))
		router.StaticFile("/", filepath.Join(staticRoot, "index.html"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.readyz)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api")
	api.GET("/regions/list", s.listRegions)
	api.GET("/malaria/list", s.listIndicators(records.Malaria))
	api.GET("/tuberculose/list", s.listIndicators(records.Tuberculosis))
	api.GET("/pollution-air/list", s.listPollution)
	api.GET("/fvr-humain/list", s.listFvrHumain)
	api.GET("/fvr-animal/list", s.listFvrAnimal)
	api.GET("/grippe-aviaire/list", s.listAvianFlu)

	dash := api.Group("/dashboard")
	dash.GET("/kpis", s.kpis)
	dash.GET("/fvr-humain-total", s.domainTotal(records.FvrHumain))
	dash.GET("/fvr-animal-total", s.domainTotal(records.FvrAnimal))
	dash.GET("/grippe-aviaire-total", s.domainTotal(records.AvianFlu))
	dash.GET("/malaria-total", s.domainTotal(records.Malaria))
	dash.GET("/fvr-humain-by-region", s.byRegion(records.FvrHumain))
	dash.GET("/fvr-animal-by-region", s.byRegion(records.FvrAnimal))
	dash.GET("/grippe-aviaire-by-region", s.byRegion(records.AvianFlu))
	dash.GET("/malaria-by-indicator", s.byIndicator(records.Malaria))
	dash.GET("/tuberculose-by-indicator", s.byIndicator(records.Tuberculosis))
	dash.GET("/map-data", s.mapData)

	riskGroup := api.Group("/risk")
	riskGroup.GET("/regions", s.riskRegions)
	riskGroup.GET("/levels", s.riskLevels)
	riskGroup.GET("/history", s.riskHistory)

	corr := api.Group("/correlations")
	corr.GET("/by-region", s.correlationTable)
	corr.GET("/alerts", s.correlationAlerts)
	corr.GET("/summary", s.correlationSummary)

	pred := api.Group("/predictions")
	pred.GET("/regions", s.predictionRegions)
	pred.GET("/summary", s.predictionSummary)
	pred.GET("/advanced/status", s.modelStatus)

	api.POST("/fvr/import/validate", s.importCommunique)
	api.POST("/assistant/chat", s.chat)

	return router
}

func (s *server) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]HealthChecker{"db": s.store}
	if s.cache != nil {
		checks["cache"] = s.cache
	}
	body := gin.H{"status": "ok"}
	healthy := true
	for name, hc := range checks {
		if err := hc.Ping(ctx); err != nil {
			body[name] = fmt.Sprintf("unhealthy: %v", err)
			healthy = false
			continue
		}
		body[name] = "ok"
	}
	if !healthy {
		body["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// yearRange reads yearStart/yearEnd. Missing values leave the bound open.
func yearRange(c *gin.Context) (records.YearRange, error) {
	var yr records.YearRange
	if v := c.Query("yearStart"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return yr, fmt.Errorf("yearStart: %w", err)
		}
		yr.Start = n
	}
	if v := c.Query("yearEnd"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return yr, fmt.Errorf("yearEnd: %w", err)
		}
		yr.End = n
	}
	if yr.Start != 0 && yr.End != 0 && yr.Start > yr.End {
		return yr, errors.New("yearStart is after yearEnd")
	}
	return yr, nil
}

// respond writes body. A store outage still answers 200 with the empty body
// and the degraded header; any other error is a 500.
func (s *server) respond(c *gin.Context, body any, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case errors.Is(err, store.ErrUnavailable):
		c.Header(degradedHeader, "true")
		c.JSON(http.StatusOK, body)
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// cached memoizes compute under the request path and query.
func cached[T any](s *server, c *gin.Context, compute func(context.Context) (T, error)) (T, error) {
	return cache.Remember(c.Request.Context(), s.cache, c.Request.URL.RequestURI(), compute)
}
