// Package chi exposes the search pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/domain"
	"github.com/kindred-places/kindred/internal/domain/category"
	"github.com/kindred-places/kindred/internal/domain/search/request"
	healthuc "github.com/kindred-places/kindred/internal/usecase/health"
	searchuc "github.com/kindred-places/kindred/internal/usecase/search"
)

// Error response codes.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeRateLimited         = "rate_limited"
	codeDestinationNotFound = "destination_not_found"
	codeSearchInFlight      = "search_in_flight"
	codeUpstreamError       = "upstream_error"
	codeNotFound            = "not_found"
	codeInternalError       = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server routes search, cache, and health endpoints.
type Server struct {
	sessions      *searchuc.Sessions
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	sessions *searchuc.Sessions,
	health *healthuc.Service,
	log *zap.Logger,
) *Server {
	s := &Server{
		sessions: sessions,
		health:   health,
		logger:   log,
	}
	s.errorHandlers = []errorHandler{
		rateLimitHandler,
		geocodeNotFoundHandler,
		sentinelHandler(domain.ErrSearchInFlight, http.StatusConflict, codeSearchInFlight),
		sentinelHandler(domain.ErrCacheEntryNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrGeocodeService, http.StatusBadGateway, codeUpstreamError),
		sentinelHandler(domain.ErrSourceUnavailable, http.StatusBadGateway, codeUpstreamError),
		sentinelHandler(domain.ErrDirectoryUnavailable, http.StatusBadGateway, codeUpstreamError),
	}
	return s
}

// RegisterRoutes mounts the API endpoints on a router whose middleware
// chain is assembled by the caller.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Delete("/search/cache", s.handleClearCache)
	})
}

// searchRequest is the POST /api/search body.
type searchRequest struct {
	SourcePlaceIDs    []string `json:"source_place_ids"`
	SourcePlaceNames  []string `json:"source_place_names,omitempty"`
	Destination       string   `json:"destination"`
	FreeText          string   `json:"free_text,omitempty"`
	EstablishmentType string   `json:"establishment_type"`
	PageToken         string   `json:"page_token,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	req, err := request.New(
		body.SourcePlaceIDs,
		body.SourcePlaceNames,
		body.Destination,
		body.FreeText,
		category.Type(body.EstablishmentType),
		body.PageToken,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	id := identityFromRequest(r)
	page, err := s.sessions.For(id).Execute(r.Context(), &req, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	req, err := request.New(
		body.SourcePlaceIDs,
		body.SourcePlaceNames,
		body.Destination,
		body.FreeText,
		category.Type(body.EstablishmentType),
		"",
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	id := identityFromRequest(r)
	if err := s.sessions.For(id).ClearCache(r.Context(), req.Fingerprint()); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel
// error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// rateLimitHandler surfaces the blocking scope and reset time so clients
// can back off precisely.
func rateLimitHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrRateLimited) {
		return false
	}
	var rle *domain.RateLimitError
	if errors.As(err, &rle) {
		w.Header().Set("Retry-After", rle.ResetAt.UTC().Format(http.TimeFormat))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"code":     codeRateLimited,
			"message":  domain.ErrRateLimited.Error(),
			"scope":    rle.Scope,
			"reset_at": rle.ResetAt.UTC().Format(time.RFC3339),
		})
		return true
	}
	writeError(w, http.StatusTooManyRequests, codeRateLimited, domain.ErrRateLimited.Error())
	return true
}

// geocodeNotFoundHandler echoes the unresolvable destination back.
func geocodeNotFoundHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrGeocodeNotFound) {
		return false
	}
	var gnf *domain.GeocodeNotFoundError
	if errors.As(err, &gnf) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":    codeDestinationNotFound,
			"message": domain.ErrGeocodeNotFound.Error(),
			"query":   gnf.Query,
		})
		return true
	}
	writeError(w, http.StatusUnprocessableEntity, codeDestinationNotFound, domain.ErrGeocodeNotFound.Error())
	return true
}
