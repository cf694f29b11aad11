// Package history is the REST adapter for the interaction-history service
// that tells the pipeline which places the user has already seen or
// disliked.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/metrics"
)

// Client looks up penalized place ids.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds interaction-history client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates an interaction-history client.
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

type lookupRequest struct {
	Destination    string   `json:"destination"`
	Keywords       []string `json:"keywords"`
	SourcePlaceIDs []string `json:"sourcePlaceIds"`
}

type lookupResponse struct {
	PlaceIDs []string `json:"placeIds"`
}

// Penalized returns the place ids previously shown or negatively
// interacted with for this destination/keyword/source combination.
// Callers treat any error as an empty penalty set.
func (c *Client) Penalized(
	ctx context.Context, destination string, keywords, sourceIDs []string,
) (map[string]struct{}, error) {
	body, err := json.Marshal(lookupRequest{
		Destination:    destination,
		Keywords:       keywords,
		SourcePlaceIDs: sourceIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode history lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/interactions:lookup", bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("history", "error").Inc()
		return nil, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ExternalCallsTotal.WithLabelValues("history", "error").Inc()
		return nil, fmt.Errorf("history status %d", resp.StatusCode)
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("history", "error").Inc()
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	metrics.ExternalCallsTotal.WithLabelValues("history", "success").Inc()

	ids := make(map[string]struct{}, len(out.PlaceIDs))
	for _, id := range out.PlaceIDs {
		ids[id] = struct{}{}
	}
	return ids, nil
}
