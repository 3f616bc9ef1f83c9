package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RemoteForecaster asks an external model service for projections and uses
// Fallback whenever the service fails or answers with the wrong shape.
type RemoteForecaster struct {
	URL      string
	Fallback Forecaster
	client   *retryablehttp.Client
	logger   *slog.Logger
}

type remoteRequest struct {
	Region   string  `json:"region"`
	Points   []Point `json:"points"`
	Horizons []int   `json:"horizons"`
}

type remoteResponse struct {
	Predictions []float64 `json:"predictions"`
	Model       string    `json:"model,omitempty"`
}

func NewRemoteForecaster(url string, timeout time.Duration, logger *slog.Logger) *RemoteForecaster {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logger
	return &RemoteForecaster{URL: url, Fallback: LinearForecaster{}, client: client, logger: logger}
}

func (f *RemoteForecaster) Forecast(ctx context.Context, s Series, horizons []int) ([]float64, error) {
	out, err := f.call(ctx, s, horizons)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("forecast service failed, using linear trend", "region", s.Region, "error", err)
	fallback := f.Fallback
	if fallback == nil {
		fallback = LinearForecaster{}
	}
	return fallback.Forecast(ctx, s, horizons)
}

func (f *RemoteForecaster) call(ctx context.Context, s Series, horizons []int) ([]float64, error) {
	body, err := json.Marshal(remoteRequest{Region: s.Region, Points: s.Points, Horizons: horizons})
	if err != nil {
		return nil, fmt.Errorf("encode forecast request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("forecast service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}
	if len(decoded.Predictions) != len(horizons) {
		return nil, fmt.Errorf("forecast service returned %d values for %d horizons", len(decoded.Predictions), len(horizons))
	}
	return decoded.Predictions, nil
}
