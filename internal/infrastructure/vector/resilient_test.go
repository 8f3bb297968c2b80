package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

type flakyIndex struct {
	failures int
	err      error
	upserts  int
}

func (f *flakyIndex) EnsureIndex(context.Context, int) error { return nil }

func (f *flakyIndex) Upsert(context.Context, []domain.IndexEntry) error {
	f.upserts++
	if f.upserts <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyIndex) DeleteStale(context.Context, string, []string) error {
	f.upserts++
	if f.upserts <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyIndex) Query(context.Context, []float32, int) ([]domain.ScoredEntry, error) {
	return nil, nil
}

func fastExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = time.Millisecond
	cfg.Breaker.Enabled = false
	return resilience.NewExecutor(cfg)
}

func TestResilientIndexRetriesBatch(t *testing.T) {
	inner := &flakyIndex{failures: 2, err: errors.New("connection reset")}
	index := NewResilientIndex(inner, fastExecutor())

	if err := index.Upsert(context.Background(), []domain.IndexEntry{{ID: "chunk-0"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if inner.upserts != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.upserts)
	}
}

func TestResilientIndexWrapsExhaustion(t *testing.T) {
	inner := &flakyIndex{failures: 10, err: errors.New("connection reset")}
	index := NewResilientIndex(inner, fastExecutor())

	err := index.Upsert(context.Background(), []domain.IndexEntry{{ID: "chunk-0"}})
	if !errors.Is(err, domain.ErrIndexWriteFailure) {
		t.Fatalf("expected index write failure, got %v", err)
	}
	if inner.upserts != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.upserts)
	}
}

func TestResilientIndexDoesNotRetryConfigurationErrors(t *testing.T) {
	inner := &flakyIndex{failures: 10, err: CheckDimension("upsert", 3, 2)}
	index := NewResilientIndex(inner, fastExecutor())

	err := index.Upsert(context.Background(), []domain.IndexEntry{{ID: "chunk-0"}})
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if inner.upserts != 1 {
		t.Fatalf("expected a single attempt, got %d", inner.upserts)
	}
}
