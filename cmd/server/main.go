package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/adapters"
	"github.com/ZanzyTHEbar/judge-relay/internal/analysis"
	"github.com/ZanzyTHEbar/judge-relay/internal/config"
	"github.com/ZanzyTHEbar/judge-relay/internal/errors"
	"github.com/ZanzyTHEbar/judge-relay/internal/llm"
	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"github.com/ZanzyTHEbar/judge-relay/internal/ratelimit"
	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	appLogger := monitoring.NewLogger(cfg.LogLevel)
	slog.SetDefault(appLogger.Logger)

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	appMetrics := monitoring.NewMetrics()
	breakers := resilience.NewCircuitBreakerRegistry()

	relays := adapters.NewRelays(cfg.Upstreams, breakers, appMetrics, appLogger)

	backend, aiPool := newBackend(cfg, breakers, appLogger)
	analyzer := analysis.NewAnalyzer(backend, appMetrics, appLogger)
	if analyzer.Configured() {
		slog.Info("AI analysis enabled", "provider", analyzer.Provider())
	} else {
		slog.Warn("AI analysis disabled, no credentials for provider", "provider", cfg.AI.Provider)
	}

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimitPerMin > 0 {
		limiter = ratelimit.NewRateLimiter(ratelimit.DefaultConfig(cfg.RateLimitPerMin), appMetrics)
		slog.Info("Rate limiting enabled", "limit_per_min", cfg.RateLimitPerMin)
	}

	r := setupRouter(routerDeps{
		Relays:    relays,
		Analyzer:  analyzer,
		Breakers:  breakers,
		Metrics:   appMetrics,
		Logger:    appLogger,
		Limiter:   limiter,
		StaticDir: cfg.StaticDir,
		HSTS:      cfg.EnableHSTS,
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.SystemLogger("startup", "listening on "+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Close upstream connection pools
	errors.SafeClose(relays, "upstream relays")
	if aiPool != nil {
		errors.SafeClose(aiPool, "ai connection pool")
	}
	if limiter != nil {
		limiter.Close()
	}

	appLogger.SystemLogger("shutdown", "server exited")
}

// newBackend builds the configured AI backend. It returns a nil backend when
// the selected provider has no credentials, and the pool to close for
// backends that own one.
func newBackend(cfg *config.Config, breakers *resilience.CircuitBreakerRegistry, logger *monitoring.Logger) (llm.Backend, *resilience.ConnectionPool) {
	if !cfg.AI.Enabled() {
		return nil, nil
	}

	switch cfg.AI.Provider {
	case config.ProviderBackboard:
		cb := breakers.GetOrCreate("backboard", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
		})
		pool := resilience.NewConnectionPool(resilience.PoolConfig{
			MaxIdle:     4,
			MaxActive:   10,
			IdleTimeout: 90 * time.Second,
		}, cb)
		return llm.NewThreadBackend(llm.ThreadConfig{
			APIKey:      cfg.AI.BackboardKey,
			BaseURL:     cfg.AI.BackboardBaseURL,
			LLMProvider: cfg.AI.BackboardProvider,
			Model:       cfg.AI.BackboardModel,
			Timeout:     cfg.Upstreams.Timeout,
		}, pool, logger.Logger), pool
	default:
		var client *http.Client
		if cfg.Upstreams.Timeout > 0 {
			client = &http.Client{Timeout: cfg.Upstreams.Timeout}
		}
		return llm.NewChatBackend(llm.ChatConfig{
			APIKey:     cfg.AI.OpenAIKey,
			Model:      cfg.AI.OpenAIModel,
			BaseURL:    cfg.AI.OpenAIBaseURL,
			HTTPClient: client,
		}), nil
	}
}
