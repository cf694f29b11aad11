// Package places is the REST adapter for the external place directory.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
	"github.com/kindred-places/kindred/internal/domain/place"
	"github.com/kindred-places/kindred/internal/metrics"
)

// fieldMask lists the candidate fields each search requests from the
// directory. Keeping the mask fixed keeps responses cache-comparable.
const fieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.location,places.types,places.rating,places.userRatingCount," +
	"places.priceLevel,places.regularOpeningHours,places.photos," +
	"places.editorialSummary,places.outdoorSeating,places.takeout," +
	"places.delivery,places.dineIn,places.reservable,places.goodForGroups," +
	"places.goodForChildren,places.liveMusic,places.allowsDogs," +
	"places.servesCoffee,places.servesBreakfast,places.servesLunch," +
	"places.servesDinner,places.servesCocktails,nextPageToken"

// Client talks to the place directory service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds directory client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a place directory client.
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

// SearchPage is one page of directory results.
type SearchPage struct {
	Candidates    []place.Candidate
	NextPageToken string
}

// searchRequest is the directory wire format for a text search.
type searchRequest struct {
	TextQuery           string               `json:"textQuery"`
	IncludedType        string               `json:"includedType,omitempty"`
	PageToken           string               `json:"pageToken,omitempty"`
	MaxResultCount      int                  `json:"maxResultCount,omitempty"`
	LocationRestriction *locationRestriction `json:"locationRestriction,omitempty"`
}

type locationRestriction struct {
	Rectangle rectangle `json:"rectangle"`
}

type rectangle struct {
	Low  latLng `json:"low"`
	High latLng `json:"high"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchResponse struct {
	Places        []placeDTO `json:"places"`
	NextPageToken string     `json:"nextPageToken"`
}

type placeDTO struct {
	ID               string    `json:"id"`
	DisplayName      localized `json:"displayName"`
	FormattedAddress string    `json:"formattedAddress"`
	Location         *latLng   `json:"location"`
	Types            []string  `json:"types"`
	Rating           float64   `json:"rating"`
	UserRatingCount  int       `json:"userRatingCount"`
	PriceLevel       int       `json:"priceLevel"`
	RegularHours     *hoursDTO `json:"regularOpeningHours"`
	Photos           []photo   `json:"photos"`
	EditorialSummary localized `json:"editorialSummary"`
	Reviews          []review  `json:"reviews"`

	OutdoorSeating  bool `json:"outdoorSeating"`
	Takeout         bool `json:"takeout"`
	Delivery        bool `json:"delivery"`
	DineIn          bool `json:"dineIn"`
	Reservable      bool `json:"reservable"`
	GoodForGroups   bool `json:"goodForGroups"`
	GoodForChildren bool `json:"goodForChildren"`
	LiveMusic       bool `json:"liveMusic"`
	AllowsDogs      bool `json:"allowsDogs"`
	ServesCoffee    bool `json:"servesCoffee"`
	ServesBreakfast bool `json:"servesBreakfast"`
	ServesLunch     bool `json:"servesLunch"`
	ServesDinner    bool `json:"servesDinner"`
	ServesCocktails bool `json:"servesCocktails"`
}

type localized struct {
	Text string `json:"text"`
}

type hoursDTO struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

type photo struct {
	Name string `json:"name"`
}

type review struct {
	Text localized `json:"text"`
}

// SearchText runs one page of a category-constrained text search within
// bounds. Keyword bias goes into the text query; the caller owns
// pagination and exclude handling.
func (c *Client) SearchText(
	ctx context.Context,
	cat category.Type,
	bounds geo.Bounds,
	biasKeywords []string,
	pageToken string,
	pageSize int,
) (SearchPage, error) {
	query := strings.Join(biasKeywords, " ")
	if query == "" {
		query = cat.DirectoryType()
	}

	reqBody := searchRequest{
		TextQuery:      query,
		IncludedType:   cat.DirectoryType(),
		PageToken:      pageToken,
		MaxResultCount: pageSize,
		LocationRestriction: &locationRestriction{
			Rectangle: rectangle{
				Low:  latLng{Latitude: bounds.Low.Lat, Longitude: bounds.Low.Lng},
				High: latLng{Latitude: bounds.High.Lat, Longitude: bounds.High.Lng},
			},
		},
	}

	var resp searchResponse
	if err := c.post(ctx, "/v1/places:searchText", reqBody, &resp); err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("places", "error").Inc()
		return SearchPage{}, err
	}
	metrics.ExternalCallsTotal.WithLabelValues("places", "success").Inc()

	page := SearchPage{NextPageToken: resp.NextPageToken}
	page.Candidates = make([]place.Candidate, 0, len(resp.Places))
	for _, dto := range resp.Places {
		page.Candidates = append(page.Candidates, dto.toCandidate())
	}
	return page, nil
}

// GetPlace fetches details for one place id, including review text.
func (c *Client) GetPlace(ctx context.Context, id string) (place.SourceDetails, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/v1/places/"+id, nil,
	)
	if err != nil {
		return place.SourceDetails{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	var dto placeDTO
	if err := c.doJSON(req, &dto); err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("places", "error").Inc()
		return place.SourceDetails{}, err
	}
	metrics.ExternalCallsTotal.WithLabelValues("places", "success").Inc()

	details := place.SourceDetails{Candidate: dto.toCandidate()}
	for _, r := range dto.Reviews {
		if r.Text.Text != "" {
			details.Reviews = append(details.Reviews, r.Text.Text)
		}
	}
	return details, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("place directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode place directory response: %w", err)
	}
	return nil
}

// StatusError is a non-OK directory response. Retryable distinguishes
// transient statuses (throttling, 5xx) from terminal ones.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("place directory status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed on retry.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func (dto placeDTO) toCandidate() place.Candidate {
	cand := place.Candidate{
		ID:          dto.ID,
		Name:        dto.DisplayName.Text,
		Address:     dto.FormattedAddress,
		Types:       dto.Types,
		Rating:      dto.Rating,
		RatingCount: dto.UserRatingCount,
		PriceLevel:  dto.PriceLevel,
		Summary:     dto.EditorialSummary.Text,
		Amenities: place.Amenities{
			OutdoorSeating:  dto.OutdoorSeating,
			Takeout:         dto.Takeout,
			Delivery:        dto.Delivery,
			DineIn:          dto.DineIn,
			Reservable:      dto.Reservable,
			GoodForGroups:   dto.GoodForGroups,
			GoodForChildren: dto.GoodForChildren,
			LiveMusic:       dto.LiveMusic,
			AllowsDogs:      dto.AllowsDogs,
			ServesCoffee:    dto.ServesCoffee,
			ServesBreakfast: dto.ServesBreakfast,
			ServesLunch:     dto.ServesLunch,
			ServesDinner:    dto.ServesDinner,
			ServesCocktails: dto.ServesCocktails,
		},
	}
	if dto.Location != nil {
		cand.Location = &geo.Point{Lat: dto.Location.Latitude, Lng: dto.Location.Longitude}
	}
	if dto.RegularHours != nil {
		cand.OpeningHours = dto.RegularHours.WeekdayDescriptions
	}
	for _, p := range dto.Photos {
		if p.Name != "" {
			cand.PhotoRefs = append(cand.PhotoRefs, p.Name)
		}
	}
	return cand
}
