package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/geo"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: time.Second})
}

func TestSearchText_RequestShape(t *testing.T) {
	var got searchRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/places:searchText" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Error("missing api key header")
		}
		if r.Header.Get("X-Goog-FieldMask") == "" {
			t.Error("missing field mask header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(searchResponse{})
	})

	bounds := geo.SquareAround(geo.Point{Lat: 40.70, Lng: -73.99}, 0.1)
	_, err := client.SearchText(
		context.Background(), category.Cafe, bounds, []string{"cozy", "coffee"}, "tok", 20,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.TextQuery != "cozy coffee" {
		t.Errorf("expected keyword-biased query, got %q", got.TextQuery)
	}
	if got.IncludedType != "coffee_shop" {
		t.Errorf("expected coffee_shop type, got %q", got.IncludedType)
	}
	if got.PageToken != "tok" {
		t.Errorf("expected page token forwarded, got %q", got.PageToken)
	}
	if got.MaxResultCount != 20 {
		t.Errorf("expected page size 20, got %d", got.MaxResultCount)
	}
	if got.LocationRestriction == nil {
		t.Fatal("expected a location restriction")
	}
	if got.LocationRestriction.Rectangle.Low.Latitude != 40.60 {
		t.Errorf("unexpected rectangle low: %+v", got.LocationRestriction.Rectangle.Low)
	}
}

func TestSearchText_EmptyKeywordsFallToDirectoryType(t *testing.T) {
	var got searchRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(searchResponse{})
	})

	if _, err := client.SearchText(
		context.Background(), category.Bar, geo.Bounds{}, nil, "", 20,
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TextQuery != "bar" {
		t.Errorf("expected directory type as query, got %q", got.TextQuery)
	}
}

func TestSearchText_MapsCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{{
				"id":               "pid-1",
				"displayName":      map[string]string{"text": "Mellow Beans"},
				"formattedAddress": "1 Main St",
				"location":         map[string]float64{"latitude": 40.7, "longitude": -73.9},
				"types":            []string{"coffee_shop", "cafe"},
				"rating":           4.4,
				"userRatingCount":  180,
				"priceLevel":       2,
				"photos":           []map[string]string{{"name": "places/pid-1/photos/x"}},
				"editorialSummary": map[string]string{"text": "A cozy corner cafe"},
				"servesCoffee":     true,
				"outdoorSeating":   true,
			}},
			"nextPageToken": "next-1",
		})
	})

	page, err := client.SearchText(context.Background(), category.Cafe, geo.Bounds{}, nil, "", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.NextPageToken != "next-1" {
		t.Errorf("expected continuation token, got %q", page.NextPageToken)
	}
	if len(page.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(page.Candidates))
	}

	c := page.Candidates[0]
	if c.ID != "pid-1" || c.Name != "Mellow Beans" {
		t.Errorf("unexpected identity mapping: %+v", c)
	}
	if c.Location == nil || c.Location.Lat != 40.7 {
		t.Errorf("unexpected location: %+v", c.Location)
	}
	if c.Summary != "A cozy corner cafe" {
		t.Errorf("unexpected summary %q", c.Summary)
	}
	if len(c.PhotoRefs) != 1 {
		t.Errorf("expected 1 photo ref, got %v", c.PhotoRefs)
	}
	if !c.Amenities.ServesCoffee || !c.Amenities.OutdoorSeating {
		t.Errorf("unexpected amenities: %+v", c.Amenities)
	}
	if c.Amenities.ServesCocktails {
		t.Error("unset amenity flag must stay false")
	}
}

func TestGetPlace_MapsReviews(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/places/pid-9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "pid-9",
			"displayName": map[string]string{"text": "Anchor Cafe"},
			"rating":      4.6,
			"reviews": []map[string]any{
				{"text": map[string]string{"text": "So cozy, great for laptop work."}},
				{"text": map[string]string{"text": ""}},
				{"text": map[string]string{"text": "Best espresso around."}},
			},
		})
	})

	details, err := client.GetPlace(context.Background(), "pid-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.ID != "pid-9" || details.Name != "Anchor Cafe" {
		t.Errorf("unexpected candidate: %+v", details.Candidate)
	}
	if len(details.Reviews) != 2 {
		t.Errorf("expected empty review text dropped, got %v", details.Reviews)
	}
}

func TestStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetPlace(context.Background(), "pid-1")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !se.Retryable() {
		t.Error("429 should be retryable")
	}

	if (&StatusError{Code: http.StatusNotFound}).Retryable() {
		t.Error("404 should not be retryable")
	}
	if !(&StatusError{Code: http.StatusBadGateway}).Retryable() {
		t.Error("502 should be retryable")
	}
}
