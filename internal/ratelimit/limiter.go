package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	LimitPerMin     int           // requests per minute per key
	Burst           int           // bucket size, defaults to LimitPerMin
	IdleTTL         time.Duration // buckets unused for this long are dropped
	CleanupInterval time.Duration
}

// DefaultConfig returns a limiter configuration for limitPerMin requests per minute
func DefaultConfig(limitPerMin int) Config {
	return Config{
		LimitPerMin:     limitPerMin,
		Burst:           limitPerMin,
		IdleTTL:         10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one in-memory token bucket per key
type RateLimiter struct {
	config  Config
	metrics *monitoring.Metrics

	mu      sync.Mutex
	buckets map[string]*bucket

	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
func NewRateLimiter(config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = config.LimitPerMin
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	rl := &RateLimiter{
		config:  config,
		metrics: metrics,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow consumes one token for key
func (rl *RateLimiter) Allow(key string) Result {
	now := time.Now()
	limiter := rl.bucketFor(key, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Allowed: false, Limit: rl.config.LimitPerMin, RetryAfter: time.Minute}
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Result{
			Allowed:    false,
			Limit:      rl.config.LimitPerMin,
			RetryAfter: delay,
		}
	}

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   true,
		Limit:     rl.config.LimitPerMin,
		Remaining: remaining,
	}
}

func (rl *RateLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		rps := rate.Limit(float64(rl.config.LimitPerMin) / 60)
		b = &bucket{limiter: rate.NewLimiter(rps, rl.config.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			if removed := rl.evictIdle(now); removed > 0 {
				slog.Debug("Evicted idle rate limit buckets", "count", removed)
			}
		}
	}
}

// evictIdle drops buckets not used within IdleTTL of now
func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.config.IdleTTL {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	active := len(rl.buckets)
	rl.mu.Unlock()

	return map[string]interface{}{
		"limit_per_min":  rl.config.LimitPerMin,
		"burst":          rl.config.Burst,
		"active_buckets": active,
	}
}

// Close stops the cleanup loop
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
	})
}
