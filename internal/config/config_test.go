package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	for _, key := range []string{"CHUNK_SIZE", "CHUNK_OVERLAP", "RAG_TOP_K", "RAG_SCORE_THRESHOLD", "EMBED_RETRY_INITIAL_BACKOFF", "EMBED_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Fatalf("unexpected chunk defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.RAGTopK)
	}
	if cfg.RAGScoreThreshold != 0.7 {
		t.Fatalf("expected default threshold 0.7, got %v", cfg.RAGScoreThreshold)
	}
	if cfg.EmbedRetryInitialBackoff != 4*time.Second || cfg.EmbedTimeout != 10*time.Second {
		t.Fatalf("unexpected embedding retry defaults: %v/%v", cfg.EmbedRetryInitialBackoff, cfg.EmbedTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RAG_SCORE_THRESHOLD", "0.55")
	t.Setenv("EMBED_TIMEOUT", "3s")
	t.Setenv("VECTOR_BACKEND", "PgVector")
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "false")
	t.Setenv("RAG_TOP_K", "not-a-number")

	cfg := Load()
	if cfg.RAGScoreThreshold != 0.55 {
		t.Fatalf("expected threshold override, got %v", cfg.RAGScoreThreshold)
	}
	if cfg.EmbedTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %v", cfg.EmbedTimeout)
	}
	if cfg.VectorBackend != "pgvector" {
		t.Fatalf("expected lowercased backend, got %q", cfg.VectorBackend)
	}
	if cfg.CircuitBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.RAGTopK != 3 {
		t.Fatalf("expected fallback top k on parse error, got %d", cfg.RAGTopK)
	}
}

func TestValidateRejectsBadChunking(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("CHUNK_OVERLAP", "50")

	err := Load().Validate()
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	for _, value := range []string{"0", "-0.1", "1"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("RAG_SCORE_THRESHOLD", value)

			if err := Load().Validate(); !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Fatalf("expected invalid configuration for %s, got %v", value, err)
			}
		})
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")

	if err := Load().Validate(); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestLoadSynonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	body := "groups:\n  - term: work permit\n    synonyms: [job authorization, employment permit]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	groups, err := LoadSynonyms(path)
	if err != nil {
		t.Fatalf("LoadSynonyms() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Term != "work permit" || len(groups[0].Synonyms) != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestLoadSynonymsEmptyPath(t *testing.T) {
	groups, err := LoadSynonyms("")
	if err != nil || groups != nil {
		t.Fatalf("expected nil groups without error, got %v, %v", groups, err)
	}
}

func TestLoadSynonymsRejectsEmptyGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	if err := os.WriteFile(path, []byte("groups:\n  - term: visa\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadSynonyms(path); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
