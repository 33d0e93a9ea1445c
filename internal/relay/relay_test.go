package relay

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/monitoring"
	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRelay(t *testing.T, upstream Upstream) (*Relay, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLoggerWithWriter(io.Discard, slog.LevelDebug)
	cb := resilience.NewCircuitBreaker(upstream.Name, resilience.CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Hour})
	pool := resilience.NewConnectionPool(resilience.PoolConfig{}, cb)
	t.Cleanup(func() { _ = pool.Close() })
	return New(upstream, pool, metrics, logger), metrics
}

func serve(r *Relay, method, path, body string) *httptest.ResponseRecorder {
	router := gin.New()
	router.Handle(method, path, r.Handler())

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fixed(url string) func(*gin.Context) (string, error) {
	return func(*gin.Context) (string, error) { return url, nil }
}

func TestRelay_ForwardsBodyAndReturnsUpstreamVerbatim(t *testing.T) {
	const upstreamBody = `{"data":{"x":1},"extra":[1,2,3]}`
	var gotBody, gotReferer, gotContentType string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotReferer = r.Header.Get("Referer")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(upstreamBody))
	}))
	defer upstream.Close()

	r, metrics := newTestRelay(t, Upstream{
		Name:         "graphql",
		Method:       http.MethodPost,
		Target:       fixed(upstream.URL),
		ForwardBody:  true,
		Headers:      map[string]string{"Referer": "https://example.test"},
		ErrorMessage: "Failed to fetch from GraphQL",
	})

	inbound := `{"operationName":"anything","variables":{"a":1},"query":"query { whatever }"}`
	w := serve(r, http.MethodPost, "/relay", inbound)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, upstreamBody, w.Body.String())
	assert.Equal(t, inbound, gotBody)
	assert.Equal(t, "https://example.test", gotReferer)
	assert.Equal(t, "application/json", gotContentType)

	stats := metrics.GetUpstreamStats()["graphql"].(map[string]interface{})
	assert.Equal(t, int64(1), stats["requests"])
	assert.Equal(t, int64(0), stats["errors"])
}

func TestRelay_ErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"detail":"internal upstream detail"}`))
			},
		},
		{
			name: "invalid JSON body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>maintenance</html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(tt.handler)
			defer upstream.Close()

			r, metrics := newTestRelay(t, Upstream{
				Name:         "rest",
				Method:       http.MethodPost,
				Target:       fixed(upstream.URL),
				ForwardBody:  true,
				ErrorMessage: "Failed to fetch from REST",
			})

			w := serve(r, http.MethodPost, "/relay", `{"handle":"alice"}`)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"error":"Failed to fetch from REST"}`, w.Body.String())
			assert.NotContains(t, w.Body.String(), "upstream detail")

			stats := metrics.GetUpstreamStats()["rest"].(map[string]interface{})
			assert.Equal(t, int64(1), stats["errors"])
		})
	}
}

func TestRelay_TransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := upstream.URL
	upstream.Close()

	r, _ := newTestRelay(t, Upstream{
		Name:         "dead",
		Method:       http.MethodGet,
		Target:       fixed(deadURL),
		ErrorMessage: "Failed to fetch from Dead",
	})

	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodGet, "/relay", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"Failed to fetch from Dead"}`, w.Body.String())
	}
}

func TestRelay_RecoversAfterTransportFailures(t *testing.T) {
	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 5 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if assert.NoError(t, err) {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer upstream.Close()

	r, _ := newTestRelay(t, Upstream{
		Name:         "flaky",
		Method:       http.MethodPost,
		Target:       fixed(upstream.URL),
		ForwardBody:  true,
		ErrorMessage: "Failed to fetch from Flaky",
	})

	for i := 0; i < 5; i++ {
		w := serve(r, http.MethodPost, "/relay", `{"query":"q"}`)
		require.Equal(t, http.StatusInternalServerError, w.Code)
	}

	// Earlier failures never stop a new request from reaching the upstream.
	w := serve(r, http.MethodPost, "/relay", `{"query":"q"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"data":{}}`, w.Body.String())
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
}

func TestRelay_InvalidInboundJSON(t *testing.T) {
	var calls int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	r, _ := newTestRelay(t, Upstream{
		Name:         "graphql",
		Method:       http.MethodPost,
		Target:       fixed(upstream.URL),
		ForwardBody:  true,
		ErrorMessage: "Failed",
	})

	w := serve(r, http.MethodPost, "/relay", `{"query": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, w.Body.String())
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRelay_EmptyBodyForwardsEmptyObject(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	r, _ := newTestRelay(t, Upstream{
		Name:         "rest",
		Method:       http.MethodPost,
		Target:       fixed(upstream.URL),
		ForwardBody:  true,
		ErrorMessage: "Failed",
	})

	w := serve(r, http.MethodPost, "/relay", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "{}", gotBody)
}

func TestRelay_SemanticCheckRunsBeforeStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"FAILED","comment":"handle: not found"}`))
	}))
	defer upstream.Close()

	r, _ := newTestRelay(t, Upstream{
		Name:         "checked",
		Method:       http.MethodGet,
		Target:       fixed(upstream.URL),
		ErrorMessage: "Failed to fetch from Checked",
		Check: func(body []byte) (string, bool) {
			if strings.Contains(string(body), `"FAILED"`) {
				return "handle: not found", false
			}
			return "", true
		},
	})

	w := serve(r, http.MethodGet, "/relay", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch from Checked","message":"handle: not found"}`, w.Body.String())
}

func TestRelay_TargetError(t *testing.T) {
	r, _ := newTestRelay(t, Upstream{
		Name:   "broken",
		Method: http.MethodGet,
		Target: func(*gin.Context) (string, error) {
			return "", assert.AnError
		},
		ErrorMessage: "Failed",
	})

	w := serve(r, http.MethodGet, "/relay", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
