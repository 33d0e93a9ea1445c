package main

import (
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/adapters"
	"github.com/ZanzyTHEbar/judge-relay/internal/analysis"
	"github.com/ZanzyTHEbar/judge-relay/internal/errors"
	"github.com/ZanzyTHEbar/judge-relay/internal/frontend"
	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"github.com/ZanzyTHEbar/judge-relay/internal/ratelimit"
	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
	"github.com/ZanzyTHEbar/judge-relay/internal/security"
	"github.com/ZanzyTHEbar/judge-relay/internal/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const maxAnalyzeBody = 1 << 20

// routerDeps is everything the HTTP surface needs
type routerDeps struct {
	Relays    *adapters.Relays
	Analyzer  *analysis.Analyzer
	Breakers  *resilience.CircuitBreakerRegistry
	Metrics   *monitoring.Metrics
	Logger    *monitoring.Logger
	Limiter   *ratelimit.RateLimiter // nil disables rate limiting
	StaticDir string
	HSTS      bool
}

func setupRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	started := time.Now()

	r.Use(errors.RecoveryHandler())
	r.Use(monitoring.MonitoringMiddleware(deps.Metrics, deps.Logger))
	r.Use(errors.ErrorHandler())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(security.SecurityHeadersMiddleware(security.HeadersConfig{EnableHSTS: deps.HSTS}))
	if deps.Limiter != nil {
		r.Use(deps.Limiter.IPRateLimitMiddleware())
	}

	api := r.Group("/api")
	api.POST("/leetcode", deps.Relays.LeetCode.Handler())
	api.POST("/gfg", deps.Relays.GFG.Handler())
	api.GET("/codeforces/:handle", deps.Relays.Codeforces.Handler())

	api.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Server is running!",
		})
	})

	api.POST("/analyze", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAnalyzeBody)

		var req types.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortAnalyze(c, errors.NewValidationError("invalid JSON body", err))
			return
		}
		if req.Stats == nil {
			abortAnalyze(c, errors.NewValidationError("stats is required", nil))
			return
		}

		result, appErr := deps.Analyzer.Analyze(c.Request.Context(), *req.Stats)
		if appErr != nil {
			abortAnalyze(c, appErr)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	r.GET("/health", func(c *gin.Context) {
		breakers := deps.Breakers.GetStats()

		status := "ok"
		for _, b := range breakers {
			if b.State == resilience.StateOpen.String() {
				status = "degraded"
				break
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":           status,
			"timestamp":        time.Now().Format(time.RFC3339),
			"uptime":           time.Since(started).Round(time.Second).String(),
			"ai_provider":      deps.Analyzer.Provider(),
			"circuit_breakers": breakers,
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		stats := deps.Metrics.GetStats()
		stats["pools"] = deps.Relays.GetPoolStats()
		if deps.Limiter != nil {
			stats["rate_limiter"] = deps.Limiter.GetStats()
		}
		c.JSON(http.StatusOK, stats)
	})

	r.NoRoute(frontend.NewStaticHandler(deps.StaticDir))

	return r
}

// abortAnalyze renders failures in the analysis envelope
func abortAnalyze(c *gin.Context, appErr *errors.AppError) {
	errors.LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"success": false,
		"error":   appErr.ErrBuilder.Msg,
	})
}
