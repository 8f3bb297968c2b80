package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, exec *resilience.Executor) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("test-key", "gpt-4", "text-embedding-ada-002", Options{
		BaseURL:            server.URL + "/v1",
		ResilienceExecutor: exec,
	})
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2},
	})
}

func TestEmbedderOrdersVectorsByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != "text-embedding-ada-002" || len(payload.Input) != 2 {
			t.Errorf("unexpected payload: %#v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-ada-002","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`))
	}, nil)

	vectors, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not ordered by index: %v", vectors)
	}
}

func TestEmbedderFailsAfterRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}, fastExecutor())

	_, err := NewEmbedder(client).EmbedQuery(context.Background(), "hello")
	if !domain.IsKind(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected embedding failure, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestGeneratorSendsSystemFraming(t *testing.T) {
	var messages []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Messages []map[string]any `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		messages = payload.Messages
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Renew at the office. "},"finish_reason":"stop"}]}`))
	}, nil)

	out, err := NewGenerator(client).Generate(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "Renew at the office." {
		t.Fatalf("unexpected answer %q", out)
	}
	if len(messages) != 2 || messages[0]["role"] != "system" || messages[1]["content"] != "user text" {
		t.Fatalf("unexpected messages: %#v", messages)
	}
}

func TestGeneratorWrapsClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}, fastExecutor())

	_, err := NewGenerator(client).Generate(context.Background(), "", "hi")
	if !domain.IsKind(err, domain.ErrGenerationFailure) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls.Load())
	}
}
