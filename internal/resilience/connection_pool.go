package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// PoolConfig sizes a ConnectionPool
type PoolConfig struct {
	MaxIdle     int
	MaxActive   int           // in-flight request cap, zero means unbounded
	IdleTimeout time.Duration // keep-alive lifetime of idle connections
	Timeout     time.Duration // per-request limit, zero means none
}

// ConnectionPool sends requests to one upstream over a shared keep-alive
// transport and reports their outcomes to a circuit breaker.
type ConnectionPool struct {
	config         PoolConfig
	circuitBreaker *CircuitBreaker
	transport      *http.Transport
	client         *http.Client

	slots    chan struct{}
	inFlight int64
	requests int64
	failures int64

	closeOnce sync.Once
}

// NewConnectionPool creates a new connection pool with circuit breaker
func NewConnectionPool(config PoolConfig, cb *CircuitBreaker) *ConnectionPool {
	if config.MaxIdle == 0 {
		config.MaxIdle = 10
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          config.MaxIdle,
		MaxIdleConnsPerHost:   config.MaxIdle,
		MaxConnsPerHost:       config.MaxActive,
		IdleConnTimeout:       config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	cp := &ConnectionPool{
		config:         config,
		circuitBreaker: cb,
		transport:      transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
	if config.MaxActive > 0 {
		cp.slots = make(chan struct{}, config.MaxActive)
	}
	return cp
}

// Breaker returns the pool's circuit breaker
func (cp *ConnectionPool) Breaker() *CircuitBreaker {
	return cp.circuitBreaker
}

func (cp *ConnectionPool) acquire(ctx context.Context) error {
	if cp.slots == nil {
		return nil
	}
	select {
	case cp.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connection slot: %w", ctx.Err())
	}
}

func (cp *ConnectionPool) release() {
	if cp.slots != nil {
		<-cp.slots
	}
}

// DoRequest always sends the request. Only transport failures count
// against the breaker; the caller interprets the status code. The caller
// must close the response body.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := cp.circuitBreaker.Call(ctx, func() error {
		if err := cp.acquire(ctx); err != nil {
			return err
		}
		defer cp.release()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		atomic.AddInt64(&cp.inFlight, 1)
		atomic.AddInt64(&cp.requests, 1)
		start := time.Now()
		resp, err = cp.client.Do(req)
		duration := time.Since(start)
		atomic.AddInt64(&cp.inFlight, -1)

		if err != nil {
			atomic.AddInt64(&cp.failures, 1)
			slog.Warn("Request failed", "url", url, "error", err, "duration_ms", duration.Milliseconds())
			return err
		}

		slog.Debug("Request completed", "url", url, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"in_flight":             atomic.LoadInt64(&cp.inFlight),
		"requests":              atomic.LoadInt64(&cp.requests),
		"transport_failures":    atomic.LoadInt64(&cp.failures),
		"max_idle":              cp.config.MaxIdle,
		"max_active":            cp.config.MaxActive,
		"idle_timeout_ms":       cp.config.IdleTimeout.Milliseconds(),
		"timeout_ms":            cp.config.Timeout.Milliseconds(),
		"circuit_breaker_state": cp.circuitBreaker.State().String(),
	}
}

// Close drops idle keep-alive connections
func (cp *ConnectionPool) Close() error {
	cp.closeOnce.Do(func() {
		cp.transport.CloseIdleConnections()
		slog.Debug("Connection pool closed", "breaker", cp.circuitBreaker.Name())
	})
	return nil
}
