package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSession_ConcurrentFirstUse(t *testing.T) {
	session := NewSession()
	var creations int32

	create := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&creations, 1)
		time.Sleep(20 * time.Millisecond)
		return "asst_1", nil
	}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := session.AssistantID(context.Background(), create)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&creations))
	for _, id := range ids {
		assert.Equal(t, "asst_1", id)
	}
	assert.Equal(t, "asst_1", session.Current())
}

func TestSession_FailureIsNotCached(t *testing.T) {
	session := NewSession()
	attempts := 0

	create := func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("service unavailable")
		}
		return "asst_2", nil
	}

	_, err := session.AssistantID(context.Background(), create)
	require.Error(t, err)
	assert.Empty(t, session.Current())

	id, err := session.AssistantID(context.Background(), create)
	require.NoError(t, err)
	assert.Equal(t, "asst_2", id)
	assert.Equal(t, 2, attempts)
}

func TestSession_WaiterHonorsContext(t *testing.T) {
	session := NewSession()
	release := make(chan struct{})

	go func() {
		_, _ = session.AssistantID(context.Background(), func(ctx context.Context) (string, error) {
			<-release
			return "asst_slow", nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := session.AssistantID(ctx, func(ctx context.Context) (string, error) { return "other", nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

// fakeBackboard records the calls a ThreadBackend makes
type fakeBackboard struct {
	mu              sync.Mutex
	assistants      int
	threadsCreated  []string
	threadsDeleted  []string
	lastMessage     map[string]string
	systemPrompt    string
	failDelete      bool
	failMessage     bool
	reply           string
	rawReply        string // sent verbatim instead of {"content": reply}
	apiKeysObserved []string
}

func (f *fakeBackboard) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	var threadSeq int32

	mux.HandleFunc("/assistants", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.assistants++
		f.systemPrompt = body["system_prompt"]
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"assistant_id":"asst_42"}`))
	})

	mux.HandleFunc("/assistants/asst_42/threads", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		id := "thr_" + string(rune('a'+atomic.AddInt32(&threadSeq, 1)-1))
		f.mu.Lock()
		f.threadsCreated = append(f.threadsCreated, id)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"thread_id": id})
	})

	mux.HandleFunc("/threads/", func(w http.ResponseWriter, r *http.Request) {
		f.observe(r)
		rest := strings.TrimPrefix(r.URL.Path, "/threads/")
		switch {
		case r.Method == http.MethodDelete:
			f.mu.Lock()
			f.threadsDeleted = append(f.threadsDeleted, rest)
			fail := f.failDelete
			f.mu.Unlock()
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(rest, "/messages"):
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			f.mu.Lock()
			f.lastMessage = map[string]string{
				"content":      r.FormValue("content"),
				"stream":       r.FormValue("stream"),
				"llm_provider": r.FormValue("llm_provider"),
				"model_name":   r.FormValue("model_name"),
			}
			fail := f.failMessage
			reply := f.reply
			raw := f.rawReply
			f.mu.Unlock()
			if fail {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
				return
			}
			if raw != "" {
				_, _ = w.Write([]byte(raw))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"content": reply})
		default:
			http.NotFound(w, r)
		}
	})

	return mux
}

func (f *fakeBackboard) observe(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeysObserved = append(f.apiKeysObserved, r.Header.Get("X-API-Key"))
}

func newThreadBackend(t *testing.T, serverURL string) *ThreadBackend {
	t.Helper()
	pool := resilience.NewConnectionPool(resilience.PoolConfig{}, resilience.NewCircuitBreaker("backboard", resilience.CircuitBreakerConfig{}))
	t.Cleanup(func() { _ = pool.Close() })
	return NewThreadBackend(ThreadConfig{
		APIKey:      "bb-test-key",
		BaseURL:     serverURL + "/",
		LLMProvider: "openai",
		Model:       "gpt-4o",
	}, pool, discard)
}

func TestThreadBackend_Complete(t *testing.T) {
	fake := &fakeBackboard{reply: "```json\n{\"summary\":\"ok\"}\n```"}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	backend := newThreadBackend(t, server.URL)

	reply, err := backend.Complete(context.Background(), "rubric", "stats prompt")
	require.NoError(t, err)
	assert.Equal(t, fake.reply, reply)

	reply, err = backend.Complete(context.Background(), "rubric", "second prompt")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.assistants)
	assert.Equal(t, "rubric", fake.systemPrompt)
	assert.Equal(t, []string{"thr_a", "thr_b"}, fake.threadsCreated)
	assert.Equal(t, []string{"thr_a", "thr_b"}, fake.threadsDeleted)
	assert.Equal(t, map[string]string{
		"content":      "second prompt",
		"stream":       "false",
		"llm_provider": "openai",
		"model_name":   "gpt-4o",
	}, fake.lastMessage)
	for _, key := range fake.apiKeysObserved {
		assert.Equal(t, "bb-test-key", key)
	}
}

func TestThreadBackend_DeleteFailureIsIgnored(t *testing.T) {
	fake := &fakeBackboard{reply: `{"summary":"fine"}`, failDelete: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	backend := newThreadBackend(t, server.URL)

	reply, err := backend.Complete(context.Background(), "rubric", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"fine"}`, reply)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.threadsDeleted, 1)
}

func TestThreadBackend_MessageFailure(t *testing.T) {
	fake := &fakeBackboard{failMessage: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	backend := newThreadBackend(t, server.URL)

	_, err := backend.Complete(context.Background(), "rubric", "prompt")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)

	// The thread is still cleaned up.
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"thr_a"}, fake.threadsDeleted)
}

func TestThreadBackend_ReplyShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		err      error
	}{
		{"blank content", `{"content":"  "}`, "  ", nil},
		{"empty content", `{"content":""}`, "", nil},
		{"nested message", `{"message":{"content":"{\"summary\":\"x\"}"}}`, `{"summary":"x"}`, nil},
		{"empty top level falls through to message", `{"content":"","message":{"content":"hi"}}`, "hi", nil},
		{"no content field", `{"status":"ok"}`, "", ErrNoReply},
		{"message without content", `{"message":{}}`, "", ErrNoReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeBackboard{rawReply: tt.raw}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			reply, err := newThreadBackend(t, server.URL).Complete(context.Background(), "rubric", "prompt")
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, reply)
		})
	}
}

func TestChatBackend_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		authHeader = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"summary\":\"solid\"}"}}]
		}`))
	}))
	defer server.Close()

	backend := NewChatBackend(ChatConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1/"})
	assert.Equal(t, "openai", backend.Name())

	reply, err := backend.Complete(context.Background(), "rubric", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"solid"}`, reply)

	assert.Equal(t, "Bearer sk-test", authHeader)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "rubric", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "prompt", got.Messages[1].Content)
}

func TestChatBackend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	backend := NewChatBackend(ChatConfig{APIKey: "sk-bad", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1/"})

	_, err := backend.Complete(context.Background(), "rubric", "prompt")
	assert.Error(t, err)
}

func TestChatBackend_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	backend := NewChatBackend(ChatConfig{APIKey: "sk", Model: "m", BaseURL: server.URL + "/v1/"})

	_, err := backend.Complete(context.Background(), "s", "p")
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestChatBackend_BlankContentIsAReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "x", "object": "chat.completion", "created": 1, "model": "m",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "   "}}]
		}`))
	}))
	defer server.Close()

	backend := NewChatBackend(ChatConfig{APIKey: "sk", Model: "m", BaseURL: server.URL + "/v1/"})

	reply, err := backend.Complete(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Equal(t, "   ", reply)
}
