package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")

	tests := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
		code     any
		prefix   string
	}{
		{"validation", NewValidationError("invalid JSON body", nil), CategoryValidation, http.StatusBadRequest, errbuilder.CodeInvalidArgument, "[VALIDATION_ERROR]"},
		{"upstream", NewUpstreamError("leetcode", "Failed to fetch from LeetCode", "", cause), CategoryUpstream, http.StatusInternalServerError, errbuilder.CodeUnavailable, "[UPSTREAM_ERROR]"},
		{"ai", NewAIError("analysis failed", cause), CategoryAI, http.StatusInternalServerError, errbuilder.CodeInternal, "[AI_ERROR]"},
		{"rate limit", NewRateLimitError("60s"), CategoryRateLimit, http.StatusTooManyRequests, errbuilder.CodeResourceExhausted, "[RATE_LIMIT_EXCEEDED]"},
		{"internal", NewInternalError("boom", cause), CategoryInternal, http.StatusInternalServerError, errbuilder.CodeInternal, "[INTERNAL_ERROR]"},
		{"configuration", NewConfigurationError("AI analysis is not configured", nil), CategoryConfiguration, http.StatusServiceUnavailable, errbuilder.CodeFailedPrecondition, "[CONFIGURATION_ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.ErrCode())
			assert.Contains(t, tt.err.Error(), tt.prefix)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestEnvelope(t *testing.T) {
	plain := NewUpstreamError("gfg", "Failed to fetch from GeeksforGeeks", "", fmt.Errorf("secret upstream body"))
	assert.Equal(t, gin.H{"error": "Failed to fetch from GeeksforGeeks"}, plain.Envelope())

	withComment := NewUpstreamError("codeforces", "Failed to fetch from Codeforces", "handle: User with handle nobody not found", nil)
	assert.Equal(t, gin.H{
		"error":   "Failed to fetch from Codeforces",
		"message": "handle: User with handle nobody not found",
	}, withComment.Envelope())

	internal := NewInternalError("database exploded", fmt.Errorf("boom"))
	assert.Equal(t, gin.H{"error": "Internal server error"}, internal.Envelope())
}

func TestToAppError(t *testing.T) {
	assert.Nil(t, ToAppError(nil))

	original := NewValidationError("bad", nil)
	assert.Same(t, original, ToAppError(original))

	wrapped := fmt.Errorf("context: %w", original)
	assert.Same(t, original, ToAppError(wrapped))

	converted := ToAppError(fmt.Errorf("plain error"))
	assert.Equal(t, CategoryInternal, converted.Category)
	assert.Equal(t, http.StatusInternalServerError, converted.HTTPStatus)
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	appErr := NewAIError("analysis failed", cause)
	assert.ErrorIs(t, appErr, cause)
}

func TestAbort(t *testing.T) {
	router := gin.New()
	router.GET("/fail", func(c *gin.Context) {
		Abort(c, NewValidationError("invalid JSON body", nil))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/fail", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, w.Body.String())
}

func TestErrorHandler(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/deferred", func(c *gin.Context) {
		_ = c.Error(NewConfigurationError("AI analysis is not configured", nil))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/deferred", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"AI analysis is not configured"}`, w.Body.String())
}

func TestRecoveryHandler(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected nil map")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotContains(t, w.Body.String(), "unexpected nil map")
}
