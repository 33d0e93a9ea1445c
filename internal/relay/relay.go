// Package relay forwards inbound requests to a coding-judge platform and
// returns the platform's JSON unchanged, or a fixed error envelope.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/judge-relay/internal/errors"
	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
	"github.com/gin-gonic/gin"
)

const (
	maxInboundBody  = 1 << 20
	maxUpstreamBody = 32 << 20
)

// Upstream describes one platform endpoint
type Upstream struct {
	Name   string
	Method string

	// Target builds the outbound URL from the inbound request
	Target func(c *gin.Context) (string, error)

	// ForwardBody sends the inbound JSON body upstream byte-for-byte
	ForwardBody bool

	Headers map[string]string

	// ErrorMessage is the only error text the caller ever sees for
	// transport and status failures.
	ErrorMessage string

	// Check inspects a JSON body for platform-level failure. It runs before
	// the status check. ok=false fails the call with comment attached.
	Check func(body []byte) (comment string, ok bool)
}

// Relay serves one Upstream
type Relay struct {
	upstream Upstream
	pool     *resilience.ConnectionPool
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
}

// New creates a relay for upstream sending through pool
func New(upstream Upstream, pool *resilience.ConnectionPool, metrics *monitoring.Metrics, logger *monitoring.Logger) *Relay {
	if upstream.Method == "" {
		upstream.Method = http.MethodGet
	}
	return &Relay{
		upstream: upstream,
		pool:     pool,
		metrics:  metrics,
		logger:   logger,
	}
}

// Name returns the upstream label
func (r *Relay) Name() string {
	return r.upstream.Name
}

// Handler returns the gin handler for this relay
func (r *Relay) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, appErr := readJSONBody(c, r.upstream.ForwardBody)
		if appErr != nil {
			apperrors.Abort(c, appErr)
			return
		}

		target, err := r.upstream.Target(c)
		if err != nil {
			apperrors.Abort(c, apperrors.NewValidationError(err.Error(), err))
			return
		}

		var forward []byte
		if r.upstream.ForwardBody {
			forward = body
		}

		payload, appErr := r.Fetch(c.Request.Context(), target, forward)
		if appErr != nil {
			apperrors.Abort(c, appErr)
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
	}
}

// Fetch performs one upstream call and returns the JSON document on success
func (r *Relay) Fetch(ctx context.Context, target string, body []byte) ([]byte, *apperrors.AppError) {
	headers := make(map[string]string, len(r.upstream.Headers)+2)
	headers["Accept"] = "application/json"
	if body != nil {
		headers["Content-Type"] = "application/json"
	}
	for k, v := range r.upstream.Headers {
		headers[k] = v
	}

	start := time.Now()
	resp, err := r.pool.DoRequest(ctx, r.upstream.Method, target, body, headers)
	if err != nil {
		return nil, r.fail(target, 0, start, "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, r.fail(target, resp.StatusCode, start, "", fmt.Errorf("reading upstream body: %w", err))
	}

	valid := json.Valid(payload)

	if r.upstream.Check != nil && valid {
		if comment, ok := r.upstream.Check(payload); !ok {
			return nil, r.fail(target, resp.StatusCode, start, comment, fmt.Errorf("%s reported failure: %s", r.upstream.Name, comment))
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, r.fail(target, resp.StatusCode, start, "", fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	if !valid {
		return nil, r.fail(target, resp.StatusCode, start, "", fmt.Errorf("upstream body is not valid JSON"))
	}

	r.logger.UpstreamLogger(r.upstream.Name, r.upstream.Method, target, resp.StatusCode, time.Since(start), nil)
	r.metrics.RecordUpstreamRequest(r.upstream.Name, true)
	return payload, nil
}

func (r *Relay) fail(target string, status int, start time.Time, comment string, cause error) *apperrors.AppError {
	r.logger.UpstreamLogger(r.upstream.Name, r.upstream.Method, target, status, time.Since(start), cause)
	r.metrics.RecordUpstreamRequest(r.upstream.Name, false)
	return apperrors.NewUpstreamError(r.upstream.Name, r.upstream.ErrorMessage, comment, cause)
}

// Stats returns the pool statistics for this upstream
func (r *Relay) Stats() map[string]interface{} {
	return r.pool.GetStats()
}

// Close releases idle upstream connections
func (r *Relay) Close() error {
	return r.pool.Close()
}

// readJSONBody reads the inbound body and rejects malformed JSON. An empty
// body becomes "{}" when it is going to be forwarded.
func readJSONBody(c *gin.Context, forward bool) ([]byte, *apperrors.AppError) {
	if c.Request.Body == nil {
		if forward {
			return []byte("{}"), nil
		}
		return nil, nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxInboundBody))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid JSON body", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		if forward {
			return []byte("{}"), nil
		}
		return nil, nil
	}

	if !forward && !isJSONContent(c.ContentType()) {
		return nil, nil
	}

	if !json.Valid(trimmed) {
		return nil, apperrors.NewValidationError("invalid JSON body", fmt.Errorf("%d bytes of malformed JSON", len(trimmed)))
	}

	return raw, nil
}

func isJSONContent(contentType string) bool {
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}
