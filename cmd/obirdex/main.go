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

	"github.com/kailas-cloud/obirdex/internal/cache"
	"github.com/kailas-cloud/obirdex/internal/config"
	dbRedis "github.com/kailas-cloud/obirdex/internal/db/redis"
	"github.com/kailas-cloud/obirdex/internal/envelope"
	logpkg "github.com/kailas-cloud/obirdex/internal/logger"
	"github.com/kailas-cloud/obirdex/internal/metrics"
	chiTransport "github.com/kailas-cloud/obirdex/internal/transport/chi"
	"github.com/kailas-cloud/obirdex/internal/transport/obir"
	healthuc "github.com/kailas-cloud/obirdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/obirdex/internal/usecase/search"
	"github.com/kailas-cloud/obirdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, closeLog, err := logpkg.NewLoggerWithFile(env, cfg.Logging.Level, logpkg.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = closeLog() }()

	logger.Info("Starting obirdex gateway",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	backend := obir.NewClient(obir.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout(),
		RateLimitRPS: cfg.Backend.RateLimitRPS,
		Logger:       logger,
	})

	// Session slot: in-process by default, Redis when replicas share sessions.
	// Pass nil interface (not typed nil pointer!) to health when no store is used.
	var (
		slot   searchuc.SessionCache
		pinger healthuc.StorePinger
	)
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create session store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), readiness); err != nil {
			logger.Fatal("Session store not ready", zap.Error(err))
		}
		logger.Info("Connected to session store", zap.Strings("addrs", cfg.Cache.Addrs))

		slot = cache.NewRedisSlot(store, cfg.Cache.Key, cfg.Cache.TTL())
		pinger = store
	default:
		slot = cache.NewMemorySlot(cfg.Cache.TTL())
	}

	searchSvc := searchuc.New(backend, slot).
		WithMaxConcurrentSubQueries(cfg.Search.MaxConcurrentSubQueries).
		WithLogger(logger)
	if cfg.Search.OutcomeCacheSize > 0 {
		outcomes, err := cache.NewOutcomeCache[searchuc.Outcome](
			cfg.Search.OutcomeCacheSize, cfg.Search.OutcomeCacheTTL(),
		)
		if err != nil {
			logger.Fatal("Failed to create outcome cache", zap.Error(err))
		}
		searchSvc = searchSvc.WithOutcomeCache(outcomes)
	}

	healthSvc := healthuc.New(backend, pinger)

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

// jsonRecoverer is a recovery middleware that returns a failure envelope instead of a plain text stacktrace.
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
					_ = json.NewEncoder(w).Encode(envelope.Failure{Error: "internal error"})
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ctx, reqLogger := logpkg.WithRequestID(r.Context(), logger, requestID)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
