// Package geocode is the REST adapter for the geocoding service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/metrics"
)

// Client resolves free-form destination text to a center point and a
// bounding region.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds geocoder client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a geocoder client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Resolution is a resolved destination.
type Resolution struct {
	Center geo.Point
	Bounds geo.Bounds
}

type response struct {
	Status  string   `json:"status"`
	Results []result `json:"results"`
}

type result struct {
	Geometry geometry `json:"geometry"`
}

type geometry struct {
	Location latLng    `json:"location"`
	Viewport *viewport `json:"viewport"`
}

type viewport struct {
	Northeast latLng `json:"northeast"`
	Southwest latLng `json:"southwest"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Resolve geocodes the destination text. ZERO_RESULTS maps to
// domain.GeocodeNotFoundError carrying the literal query; any other
// non-OK status maps to domain.ErrGeocodeService. When the result has no
// viewport the bounds are synthesized as a square of half-width
// geo.FallbackHalfWidthDeg around the center.
func (c *Client) Resolve(ctx context.Context, destination string) (Resolution, error) {
	endpoint := fmt.Sprintf("%s/geocode/json?address=%s&key=%s",
		c.baseURL, url.QueryEscape(destination), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("geocode", "error").Inc()
		return Resolution{}, fmt.Errorf("geocoding request: %w: %w", domain.ErrGeocodeService, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		metrics.ExternalCallsTotal.WithLabelValues("geocode", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		c.logger.Warn("geocoder returned non-OK HTTP status",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(body)),
		)
		return Resolution{}, fmt.Errorf("geocoding HTTP %d: %w", httpResp.StatusCode, domain.ErrGeocodeService)
	}

	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("geocode", "error").Inc()
		return Resolution{}, fmt.Errorf("decode geocoding response: %w: %w", domain.ErrGeocodeService, err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		metrics.ExternalCallsTotal.WithLabelValues("geocode", "zero_results").Inc()
		return Resolution{}, &domain.GeocodeNotFoundError{Query: destination}
	default:
		metrics.ExternalCallsTotal.WithLabelValues("geocode", "error").Inc()
		c.logger.Warn("geocoder returned non-OK status", zap.String("status", resp.Status))
		return Resolution{}, fmt.Errorf("geocoding status %s: %w", resp.Status, domain.ErrGeocodeService)
	}

	if len(resp.Results) == 0 {
		metrics.ExternalCallsTotal.WithLabelValues("geocode", "zero_results").Inc()
		return Resolution{}, &domain.GeocodeNotFoundError{Query: destination}
	}
	metrics.ExternalCallsTotal.WithLabelValues("geocode", "success").Inc()

	g := resp.Results[0].Geometry
	res := Resolution{Center: geo.Point{Lat: g.Location.Lat, Lng: g.Location.Lng}}
	if g.Viewport != nil {
		res.Bounds = geo.Bounds{
			Low:  geo.Point{Lat: g.Viewport.Southwest.Lat, Lng: g.Viewport.Southwest.Lng},
			High: geo.Point{Lat: g.Viewport.Northeast.Lat, Lng: g.Viewport.Northeast.Lng},
		}
	} else {
		res.Bounds = geo.SquareAround(res.Center, geo.FallbackHalfWidthDeg)
	}
	return res, nil
}
