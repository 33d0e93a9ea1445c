package resilience

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Number of failures before opening
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // Time open before the next call counts as a trial
	SuccessThreshold int           `json:"success_threshold"` // Number of successes needed to close circuit
}

// CircuitBreaker tracks the health of one upstream from call outcomes.
// It never rejects a call: open means recent calls failed, and every
// request is still attempted.
type CircuitBreaker struct {
	name      string
	config    CircuitBreakerConfig
	state     int32
	failures  int32
	successes int32

	mu       sync.Mutex
	openedAt time.Time
}

// NewCircuitBreaker creates a new circuit breaker, filling unset thresholds
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}

	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  int32(StateClosed),
	}
}

// Name returns the label the breaker was registered under
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn and records its outcome. A failure is not counted when ctx
// is already done, since the caller gave up rather than the upstream.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if cb.State() == StateOpen {
		cb.mu.Lock()
		due := time.Since(cb.openedAt) >= cb.config.RecoveryTimeout
		cb.mu.Unlock()
		if due && atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
			atomic.StoreInt32(&cb.successes, 0)
		}
	}

	err := fn()
	switch {
	case err == nil:
		cb.onSuccess()
	case ctx.Err() != nil:
	default:
		cb.onFailure()
	}
	return err
}

func (cb *CircuitBreaker) onFailure() {
	failures := atomic.AddInt32(&cb.failures, 1)
	atomic.StoreInt32(&cb.successes, 0)

	state := cb.State()
	if state == StateHalfOpen || (state == StateClosed && failures >= int32(cb.config.FailureThreshold)) {
		cb.mu.Lock()
		cb.openedAt = time.Now()
		cb.mu.Unlock()
		atomic.StoreInt32(&cb.state, int32(StateOpen))
	}
}

func (cb *CircuitBreaker) onSuccess() {
	atomic.StoreInt32(&cb.failures, 0)

	if cb.State() == StateClosed {
		return
	}
	if atomic.AddInt32(&cb.successes, 1) >= int32(cb.config.SuccessThreshold) {
		atomic.StoreInt32(&cb.state, int32(StateClosed))
		atomic.StoreInt32(&cb.successes, 0)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return CircuitBreakerState(atomic.LoadInt32(&cb.state))
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	return int(atomic.LoadInt32(&cb.failures))
}

// Reset returns the breaker to the closed state
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(StateClosed))
	atomic.StoreInt32(&cb.failures, 0)
	atomic.StoreInt32(&cb.successes, 0)
}

// BreakerStats is the reported view of one breaker
type BreakerStats struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// CircuitBreakerRegistry hands out one breaker per upstream name
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (r *CircuitBreakerRegistry) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, exists := r.breakers[name]; exists {
		return breaker
	}

	breaker := NewCircuitBreaker(name, config)
	r.breakers[name] = breaker
	return breaker
}

// Names lists registered breakers in sorted order
func (r *CircuitBreakerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStats returns statistics for all circuit breakers
func (r *CircuitBreakerRegistry) GetStats() map[string]BreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]BreakerStats, len(r.breakers))
	for name, breaker := range r.breakers {
		stats[name] = BreakerStats{
			State:    breaker.State().String(),
			Failures: breaker.Failures(),
		}
	}
	return stats
}
