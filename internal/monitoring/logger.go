package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging helpers for the relay
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger on stdout at the given level
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter creates a JSON logger writing to w
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs one inbound HTTP request
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// UpstreamLogger logs one outbound platform call. statusCode is zero when
// the call never produced a response.
func (l *Logger) UpstreamLogger(upstream, method, endpoint string, statusCode int, duration time.Duration, err error) {
	attrs := []any{
		"upstream", upstream,
		"method", method,
		"endpoint", endpoint,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		l.Warn("Upstream Call", append(attrs, "error", err.Error())...)
		return
	}
	l.Info("Upstream Call", attrs...)
}

// AnalysisLogger logs a finished analysis request
func (l *Logger) AnalysisLogger(provider string, totalSolved int, usedFallback, roadmapInjected bool, duration time.Duration) {
	l.Info("Analysis Completed",
		"provider", provider,
		"total_solved", totalSolved,
		"fallback", usedFallback,
		"roadmap_injected", roadmapInjected,
		"duration_ms", duration.Milliseconds(),
	)
}

// SystemLogger logs process lifecycle events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
