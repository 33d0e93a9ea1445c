package adapters

import (
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/config"
	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"github.com/ZanzyTHEbar/judge-relay/internal/relay"
	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
)

var defaultBreakerConfig = resilience.CircuitBreakerConfig{
	FailureThreshold: 5,
	RecoveryTimeout:  30 * time.Second,
	SuccessThreshold: 1,
}

// Relays holds one relay per coding-judge platform
type Relays struct {
	LeetCode   *relay.Relay
	GFG        *relay.Relay
	Codeforces *relay.Relay
}

// NewRelays builds the platform relays, each with its own pool and breaker
func NewRelays(cfg config.UpstreamConfig, breakers *resilience.CircuitBreakerRegistry, metrics *monitoring.Metrics, logger *monitoring.Logger) *Relays {
	build := func(upstream relay.Upstream) *relay.Relay {
		cb := breakers.GetOrCreate(upstream.Name, defaultBreakerConfig)
		pool := resilience.NewConnectionPool(resilience.PoolConfig{
			MaxIdle:     10,
			MaxActive:   20,
			IdleTimeout: 90 * time.Second,
			Timeout:     cfg.Timeout,
		}, cb)
		return relay.New(upstream, pool, metrics, logger)
	}

	return &Relays{
		LeetCode:   build(LeetCode(cfg.LeetCodeURL)),
		GFG:        build(GFG(cfg.GFGURL)),
		Codeforces: build(Codeforces(cfg.CodeforcesURL)),
	}
}

// All returns the relays in a fixed order
func (r *Relays) All() []*relay.Relay {
	return []*relay.Relay{r.LeetCode, r.GFG, r.Codeforces}
}

// GetPoolStats returns pool statistics keyed by upstream name
func (r *Relays) GetPoolStats() map[string]interface{} {
	stats := make(map[string]interface{}, 3)
	for _, rl := range r.All() {
		stats[rl.Name()] = rl.Stats()
	}
	return stats
}

// Close releases idle connections on every relay
func (r *Relays) Close() error {
	for _, rl := range r.All() {
		_ = rl.Close()
	}
	return nil
}
