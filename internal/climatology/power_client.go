package climatology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/rainyield/internal/config"
	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/models"
)

const (
	climatologyPath  = "/api/temporal/climatology/point"
	maxResponseBytes = 1 << 20
)

// PowerClient queries the NASA POWER climatology point endpoint.
type PowerClient struct {
	httpClient *http.Client
	log        *logger.Logger
	baseURL    string
	parameter  string
	community  string
}

// NewPowerClient creates a client from configuration. The HTTP client timeout
// is the configured lookup timeout so a stalled connection cannot outlive it.
func NewPowerClient(cfg config.ClimatologyConfig, log *logger.Logger) *PowerClient {
	return NewPowerClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout}, log)
}

// NewPowerClientWithHTTP creates a client using the given HTTP client.
func NewPowerClientWithHTTP(cfg config.ClimatologyConfig, httpClient *http.Client, log *logger.Logger) *PowerClient {
	return &PowerClient{
		httpClient: httpClient,
		log:        log.Component("climatology"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		parameter:  cfg.Parameter,
		community:  cfg.Community,
	}
}

// MonthlyRates fetches the monthly mean daily precipitation for point.
func (c *PowerClient) MonthlyRates(ctx context.Context, point models.GeoPoint) Result {
	start := time.Now()
	endpoint := c.endpoint(point)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.fail(point, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(point, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(point, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
	}

	rates, err := decodeMonthlyRates(io.LimitReader(resp.Body, maxResponseBytes), c.parameter)
	if err != nil {
		return c.fail(point, err)
	}

	c.log.Debug("Climatology lookup succeeded", map[string]interface{}{
		"lat":         point.Lat,
		"lng":         point.Lng,
		"months":      len(rates),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return Result{Rates: rates}
}

func (c *PowerClient) fail(point models.GeoPoint, err error) Result {
	c.log.Warn("Climatology lookup failed", map[string]interface{}{
		"lat":   point.Lat,
		"lng":   point.Lng,
		"error": err.Error(),
	})
	return Failure(err)
}

func (c *PowerClient) endpoint(point models.GeoPoint) string {
	q := url.Values{}
	q.Set("parameters", c.parameter)
	q.Set("community", c.community)
	q.Set("longitude", strconv.FormatFloat(point.Lng, 'f', -1, 64))
	q.Set("latitude", strconv.FormatFloat(point.Lat, 'f', -1, 64))
	q.Set("format", "JSON")
	return c.baseURL + climatologyPath + "?" + q.Encode()
}

// powerResponse is the subset of the POWER GeoJSON payload we read:
// properties.parameter.<PARAM>.{JAN..DEC,ANN}.
type powerResponse struct {
	Properties *struct {
		Parameter map[string]map[string]json.RawMessage `json:"parameter"`
	} `json:"properties"`
}

// decodeMonthlyRates extracts the month series for parameter. Months whose
// value is missing, non-numeric, non-finite or negative (POWER uses -999 as
// its fill value) are left out of the result.
func decodeMonthlyRates(r io.Reader, parameter string) (models.Climatology, error) {
	var body powerResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if body.Properties == nil {
		return nil, fmt.Errorf("%w: missing properties", ErrNoData)
	}

	series, ok := body.Properties.Parameter[parameter]
	if !ok {
		return nil, fmt.Errorf("%w: missing parameter %s", ErrNoData, parameter)
	}

	rates := make(models.Climatology, len(models.Months))
	for _, month := range models.Months {
		raw, ok := series[string(month)]
		if !ok {
			continue
		}
		if value, ok := parseRate(raw); ok {
			rates[month] = value
		}
	}

	if len(rates) == 0 {
		return nil, ErrNoData
	}
	return rates, nil
}

func parseRate(raw json.RawMessage) (float64, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, false
		}
		value = parsed
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, false
	}
	return value, true
}
