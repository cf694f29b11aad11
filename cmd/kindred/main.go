package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kindred-places/kindred/internal/config"
	dbRedis "github.com/kindred-places/kindred/internal/db/redis"
	"github.com/kindred-places/kindred/internal/domain/category"
	logpkg "github.com/kindred-places/kindred/internal/logger"
	"github.com/kindred-places/kindred/internal/metrics"
	cacherepo "github.com/kindred-places/kindred/internal/repository/cache"
	ratelimitrepo "github.com/kindred-places/kindred/internal/repository/ratelimit"
	chiTransport "github.com/kindred-places/kindred/internal/transport/chi"
	"github.com/kindred-places/kindred/internal/transport/geocode"
	"github.com/kindred-places/kindred/internal/transport/history"
	openaiReasoning "github.com/kindred-places/kindred/internal/transport/openai"
	"github.com/kindred-places/kindred/internal/transport/places"
	enrichuc "github.com/kindred-places/kindred/internal/usecase/enrich"
	healthuc "github.com/kindred-places/kindred/internal/usecase/health"
	keyworduc "github.com/kindred-places/kindred/internal/usecase/keywords"
	ratelimituc "github.com/kindred-places/kindred/internal/usecase/ratelimit"
	retrieveuc "github.com/kindred-places/kindred/internal/usecase/retrieve"
	scoringuc "github.com/kindred-places/kindred/internal/usecase/scoring"
	searchuc "github.com/kindred-places/kindred/internal/usecase/search"
	"github.com/kindred-places/kindred/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting kindred API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// The category table must cover every establishment type before any
	// request is served.
	if err := category.Validate(); err != nil {
		logger.Fatal("Category table incomplete", zap.Error(err))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// External clients — composition root
	placesClient := places.NewClient(places.Config{
		BaseURL: cfg.Places.BaseURL,
		APIKey:  cfg.Places.APIKey,
		Timeout: time.Duration(cfg.Places.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	geocodeClient := geocode.NewClient(geocode.Config{
		BaseURL: cfg.Geocode.BaseURL,
		APIKey:  cfg.Geocode.APIKey,
		Timeout: time.Duration(cfg.Geocode.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	reasoner := openaiReasoning.NewReasoner(&openaiReasoning.Config{
		APIKey:  cfg.Reasoning.APIKey,
		BaseURL: cfg.Reasoning.BaseURL,
		Model:   cfg.Reasoning.Model,
		Logger:  logger,
	})

	// History is optional: without a base URL no penalties are applied.
	var historyLookup searchuc.HistoryLookup
	if cfg.History.BaseURL != "" {
		historyLookup = history.NewClient(history.Config{
			BaseURL: cfg.History.BaseURL,
			APIKey:  cfg.History.APIKey,
			Timeout: time.Duration(cfg.History.TimeoutSec) * time.Second,
			Logger:  logger,
		})
	}

	// Repositories
	window := time.Duration(cfg.RateLimit.WindowHours) * time.Hour
	limitRepo := ratelimitrepo.New(store, cfg.Storage.KeyPrefix, 2*window)
	cacheRepo := cacherepo.New(store, cfg.Storage.KeyPrefix)

	// Use case services
	limiter := ratelimituc.New(limitRepo, cfg.RateLimit.MaxSearches, window, logger)
	keywordSvc := keyworduc.New(reasoner, cfg.Search.KeywordCap, logger)
	retriever := retrieveuc.New(placesClient, cfg.Search.MaxCandidates, logger)
	scorer := scoringuc.NewEngine(cfg.Search.PenaltyFactor)
	enricher, err := enrichuc.New(
		reasoner, reasoner,
		cfg.Reasoning.PoolSize,
		time.Duration(cfg.Reasoning.ImageTimeoutSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create enrichment service", zap.Error(err))
	}
	defer enricher.Release()

	sessions := searchuc.NewSessions(searchuc.Deps{
		Limiter:   limiter,
		Geocoder:  geocodeClient,
		Sources:   placesClient,
		Keywords:  keywordSvc,
		Retriever: retriever,
		History:   historyLookup,
		Scorer:    scorer,
		Enricher:  enricher,
		Cache:     cacheRepo,
		Logger:    logger,
	}, searchuc.Config{PageSize: cfg.Search.PageSize})

	healthSvc := healthuc.New(store, nil)

	server := chiTransport.NewServer(sessions, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
