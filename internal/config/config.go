// Package config reads the service settings from the environment (and an
// optional .env file) plus an optional policy JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/Skufu/onehealth/internal/aggregate"
	"github.com/Skufu/onehealth/internal/alerts"
	"github.com/Skufu/onehealth/internal/assistant"
	"github.com/Skufu/onehealth/internal/risk"
	"github.com/Skufu/onehealth/internal/store"
)

type Config struct {
	Port        string
	DatabaseURL string
	EnableDB    bool
	Migrate     bool
	LogLevel    string
	StaticDir   string
	DataFile    string
	BodyLimit   int64

	RedisURL string
	CacheTTL time.Duration

	ArchivePath      string
	ArchiveSchedule  string
	ArchiveRetention time.Duration

	ForecastURL     string
	ForecastTimeout time.Duration

	Assistant assistant.Config

	Policy    risk.Policy
	Aggregate aggregate.Options
	Alerts    alerts.Options
}

// policyFile is the POLICY_FILE layout. Missing keys keep their defaults.
type policyFile struct {
	risk.Policy
	MalariaIndicator      *string  `json:"malaria_indicator"`
	TuberculosisIndicator *string  `json:"tuberculosis_indicator"`
	MalariaDivisor        *int64   `json:"malaria_divisor"`
	BucketLimit           *int     `json:"bucket_limit"`
	NameDisplayCap        *int     `json:"name_display_cap"`
	WarningIntensity      *float64 `json:"warning_intensity"`
	PM25Threshold         *float64 `json:"pm25_threshold"`
	MaxAlerts             *int     `json:"max_alerts"`
}

func GetEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Load builds the configuration. Precedence: defaults, then POLICY_FILE,
// then individual environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            GetEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		EnableDB:        cast.ToBool(GetEnv("ENABLE_DB", "false")),
		Migrate:         cast.ToBool(GetEnv("DB_MIGRATE", "true")),
		LogLevel:        strings.ToLower(GetEnv("LOG_LEVEL", "info")),
		StaticDir:       os.Getenv("STATIC_DIR"),
		DataFile:        os.Getenv("DATA_FILE"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ArchivePath:     os.Getenv("ARCHIVE_PATH"),
		ArchiveSchedule: GetEnv("ARCHIVE_SCHEDULE", "0 6 * * *"),
		ForecastURL:     os.Getenv("FORECAST_URL"),
		Assistant: assistant.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("ASSISTANT_BASE_URL"),
			Model:   os.Getenv("ASSISTANT_MODEL"),
		},
		Policy:    risk.DefaultPolicy(),
		Aggregate: aggregate.DefaultOptions(),
		Alerts:    alerts.DefaultOptions(),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(envInt64("MAX_BODY_BYTES", 1<<20, &cfg.BodyLimit))
	collect(envDuration("CACHE_TTL", 5*time.Minute, &cfg.CacheTTL))
	collect(envDuration("ARCHIVE_RETENTION", 365*24*time.Hour, &cfg.ArchiveRetention))
	collect(envDuration("FORECAST_TIMEOUT", 10*time.Second, &cfg.ForecastTimeout))
	collect(envInt("ASSISTANT_MAX_TOKENS", 400, &cfg.Assistant.MaxTokens))

	if path := os.Getenv("POLICY_FILE"); path != "" {
		collect(cfg.applyPolicyFile(path))
	}
	collect(cfg.applyPolicyEnv())

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoreOptions selects the record store backend.
func (c *Config) StoreOptions() store.OpenOptions {
	return store.OpenOptions{
		EnableDB:    c.EnableDB,
		DatabaseURL: c.DatabaseURL,
		Migrate:     c.Migrate,
		DataFile:    c.DataFile,
	}
}

func (c *Config) Validate() error {
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Alerts.WarningIntensity <= 0 || c.Alerts.WarningIntensity > 1 {
		return fmt.Errorf("ALERT_WARNING_INTENSITY must be in (0, 1], got %g", c.Alerts.WarningIntensity)
	}
	if c.Aggregate.BucketLimit < 0 || c.Alerts.MaxAlerts < 0 {
		return fmt.Errorf("bucket and alert limits must not be negative")
	}
	return nil
}

func (c *Config) applyPolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read POLICY_FILE: %w", err)
	}
	pf := policyFile{Policy: c.Policy}
	if err := json.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parse POLICY_FILE %s: %w", path, err)
	}
	c.Policy = pf.Policy
	setIf(&c.Aggregate.MalariaIndicator, pf.MalariaIndicator)
	setIf(&c.Aggregate.TuberculosisIndicator, pf.TuberculosisIndicator)
	setIf(&c.Aggregate.MalariaDivisor, pf.MalariaDivisor)
	setIf(&c.Aggregate.BucketLimit, pf.BucketLimit)
	setIf(&c.Aggregate.NameDisplayCap, pf.NameDisplayCap)
	setIf(&c.Alerts.WarningIntensity, pf.WarningIntensity)
	setIf(&c.Alerts.PM25Threshold, pf.PM25Threshold)
	setIf(&c.Alerts.MaxAlerts, pf.MaxAlerts)
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (c *Config) applyPolicyEnv() error {
	p := &c.Policy
	floats := map[string]*float64{
		"RISK_WEIGHT_FVR_HUMAIN":     &p.Weights.FvrHumain,
		"RISK_WEIGHT_FVR_ANIMAL":     &p.Weights.FvrAnimal,
		"RISK_WEIGHT_GRIPPE_AVIAIRE": &p.Weights.AvianFlu,
		"RISK_WEIGHT_MALARIA":        &p.Weights.Malaria,
		"RISK_WEIGHT_POLLUTION":      &p.Weights.Pollution,
		"RISK_THRESHOLD_MODERATE":    &p.Thresholds.Moderate,
		"RISK_THRESHOLD_HIGH":        &p.Thresholds.High,
		"RISK_THRESHOLD_CRITICAL":    &p.Thresholds.Critical,
		"RISK_SEASON_BONUS_HIGH":     &p.SeasonBonus.High,
		"RISK_SEASON_BONUS_MODERATE": &p.SeasonBonus.Moderate,
		"ALERT_WARNING_INTENSITY":    &c.Alerts.WarningIntensity,
		"PM25_THRESHOLD":             &c.Alerts.PM25Threshold,
	}
	var errs []error
	for key, dst := range floats {
		if err := envFloat(key, *dst, dst); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs,
		envInt64("MALARIA_DIVISOR", c.Aggregate.MalariaDivisor, &c.Aggregate.MalariaDivisor),
		envInt("INDICATOR_BUCKET_LIMIT", c.Aggregate.BucketLimit, &c.Aggregate.BucketLimit),
		envInt("INDICATOR_NAME_CAP", c.Aggregate.NameDisplayCap, &c.Aggregate.NameDisplayCap),
		envInt("MAX_ALERTS", c.Alerts.MaxAlerts, &c.Alerts.MaxAlerts),
	)
	c.Aggregate.MalariaIndicator = GetEnv("MALARIA_INDICATOR", c.Aggregate.MalariaIndicator)
	c.Aggregate.TuberculosisIndicator = GetEnv("TUBERCULOSIS_INDICATOR", c.Aggregate.TuberculosisIndicator)
	c.Aggregate.NationalZone = GetEnv("NATIONAL_ZONE", c.Aggregate.NationalZone)
	c.Alerts.NationalZone = c.Aggregate.NationalZone
	return errors.Join(errs...)
}

func envFloat(key string, fallback float64, dst *float64) error {
	*dst = fallback
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func envInt(key string, fallback int, dst *int) error {
	*dst = fallback
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func envInt64(key string, fallback int64, dst *int64) error {
	*dst = fallback
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := cast.ToInt64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func envDuration(key string, fallback time.Duration, dst *time.Duration) error {
	*dst = fallback
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := cast.ToDurationE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}
