package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
)

const assistantName = "Judge Stats Analyst"

// ThreadConfig configures a ThreadBackend
type ThreadConfig struct {
	APIKey      string
	BaseURL     string
	LLMProvider string // optional provider override sent with each message
	Model       string // optional model override sent with each message
	Timeout     time.Duration
}

// ThreadBackend drives an assistant/thread style API: one assistant per
// process, one short-lived thread per request.
type ThreadBackend struct {
	config  ThreadConfig
	pool    *resilience.ConnectionPool
	session *Session
	logger  *slog.Logger
}

// NewThreadBackend creates a thread backend sending through pool
func NewThreadBackend(cfg ThreadConfig, pool *resilience.ConnectionPool, logger *slog.Logger) *ThreadBackend {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ThreadBackend{
		config:  cfg,
		pool:    pool,
		session: NewSession(),
		logger:  logger,
	}
}

func (b *ThreadBackend) Name() string {
	return "backboard"
}

// Session exposes the assistant session
func (b *ThreadBackend) Session() *Session {
	return b.session
}

// Complete implements Backend. The system prompt is installed on the
// assistant when it is first created.
func (b *ThreadBackend) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	assistantID, err := b.session.AssistantID(ctx, func(ctx context.Context) (string, error) {
		return b.createAssistant(ctx, systemPrompt)
	})
	if err != nil {
		return "", fmt.Errorf("assistant unavailable: %w", err)
	}

	threadID, err := b.createThread(ctx, assistantID)
	if err != nil {
		return "", fmt.Errorf("thread creation failed: %w", err)
	}
	defer b.deleteThread(context.WithoutCancel(ctx), threadID)

	reply, err := b.sendMessage(ctx, threadID, prompt)
	if err != nil {
		return "", fmt.Errorf("message failed: %w", err)
	}
	return reply, nil
}

func (b *ThreadBackend) createAssistant(ctx context.Context, systemPrompt string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"name":          assistantName,
		"system_prompt": systemPrompt,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		AssistantID string `json:"assistant_id"`
		ID          string `json:"id"`
	}
	if err := b.call(ctx, http.MethodPost, "/assistants", body, "application/json", &out); err != nil {
		return "", err
	}

	id := firstNonEmpty(out.AssistantID, out.ID)
	b.logger.Info("Assistant created", "assistant_id", id)
	return id, nil
}

func (b *ThreadBackend) createThread(ctx context.Context, assistantID string) (string, error) {
	var out struct {
		ThreadID string `json:"thread_id"`
		ID       string `json:"id"`
	}
	if err := b.call(ctx, http.MethodPost, "/assistants/"+assistantID+"/threads", []byte("{}"), "application/json", &out); err != nil {
		return "", err
	}

	id := firstNonEmpty(out.ThreadID, out.ID)
	if id == "" {
		return "", fmt.Errorf("thread creation returned no identifier")
	}
	return id, nil
}

func (b *ThreadBackend) sendMessage(ctx context.Context, threadID, prompt string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"content", prompt},
		{"stream", "false"},
	}
	if b.config.LLMProvider != "" {
		fields = append(fields, [2]string{"llm_provider", b.config.LLMProvider})
	}
	if b.config.Model != "" {
		fields = append(fields, [2]string{"model_name", b.config.Model})
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return "", err
		}
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	var out struct {
		Content *string `json:"content"`
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	}
	if err := b.call(ctx, http.MethodPost, "/threads/"+threadID+"/messages", buf.Bytes(), form.FormDataContentType(), &out); err != nil {
		return "", err
	}

	switch {
	case out.Content != nil && *out.Content != "":
		return *out.Content, nil
	case out.Message != nil && out.Message.Content != nil:
		return *out.Message.Content, nil
	case out.Content != nil:
		return "", nil
	}
	return "", ErrNoReply
}

// deleteThread is best effort: failures are logged and never returned
func (b *ThreadBackend) deleteThread(ctx context.Context, threadID string) {
	if err := b.call(ctx, http.MethodDelete, "/threads/"+threadID, nil, "", nil); err != nil {
		b.logger.Warn("Thread cleanup failed", "thread_id", threadID, "error", err)
		return
	}
	b.logger.Debug("Thread deleted", "thread_id", threadID)
}

func (b *ThreadBackend) call(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}

	headers := map[string]string{
		"X-API-Key": b.config.APIKey,
		"Accept":    "application/json",
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	resp, err := b.pool.DoRequest(ctx, method, b.config.BaseURL+path, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(payload), 200)}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// StatusError reports a non-2xx answer from the AI service
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
