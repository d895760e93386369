package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = 2 * time.Millisecond
	cfg.BreakerEnabled = false
	return resilience.NewExecutor(cfg)
}

func TestGenerateSendsChatRequest(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"ok\":true}"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3.2", 5*time.Second, testExecutor())
	reply, err := client.Generate(context.Background(), "classify this", "you are a clerk")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != `{"ok":true}` {
		t.Fatalf("reply = %q", reply)
	}

	if captured.Model != "llama3.2" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.Stream {
		t.Errorf("streaming must be off")
	}
	if captured.Format != "json" {
		t.Errorf("format = %q", captured.Format)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", captured.Messages)
	}
	if captured.Messages[1].Content != "classify this" {
		t.Errorf("user prompt = %q", captured.Messages[1].Content)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"content":"{}"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3.2", 5*time.Second, testExecutor())
	reply, err := client.Generate(context.Background(), "p", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "{}" {
		t.Fatalf("reply = %q", reply)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGenerateExhaustedRetriesIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "llama3.2", 5*time.Second, testExecutor())
	_, err := client.Generate(context.Background(), "p", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("error = %v, want temporary kind", err)
	}
	if !strings.Contains(err.Error(), "down") {
		t.Errorf("response body missing from error: %v", err)
	}
}

func TestGenerateBadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown model", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "llama3.2", 5*time.Second, testExecutor())
	_, err := client.Generate(context.Background(), "p", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 for non-retryable status", calls.Load())
	}
}

func TestGenerateEmptyReplyIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"   "}}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3.2", 5*time.Second, testExecutor())
	_, err := client.Generate(context.Background(), "p", "")
	if err == nil {
		t.Fatal("blank model reply must be an error")
	}
}
