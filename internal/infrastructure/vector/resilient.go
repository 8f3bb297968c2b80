package vector

import (
	"context"
	"errors"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

// ResilientIndex retries whole upsert batches and stale-entry pruning
// through an Executor. Queries
// and index creation are passed through untouched: a failed query is
// handled by the caller's degradation path.
type ResilientIndex struct {
	inner    ports.VectorIndex
	executor *resilience.Executor
}

func NewResilientIndex(inner ports.VectorIndex, executor *resilience.Executor) *ResilientIndex {
	return &ResilientIndex{inner: inner, executor: executor}
}

func (r *ResilientIndex) EnsureIndex(ctx context.Context, dimension int) error {
	return r.inner.EnsureIndex(ctx, dimension)
}

func (r *ResilientIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if r.executor == nil {
		return r.inner.Upsert(ctx, entries)
	}
	err := r.executor.Execute(ctx, "vector.upsert", func(callCtx context.Context) error {
		return r.inner.Upsert(callCtx, entries)
	}, classifyWriteError)
	if err != nil && !errors.Is(err, domain.ErrIndexWriteFailure) && !errors.Is(err, domain.ErrInvalidConfiguration) {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, "vector.upsert", err)
	}
	return err
}

func (r *ResilientIndex) DeleteStale(ctx context.Context, document string, keep []string) error {
	if r.executor == nil {
		return r.inner.DeleteStale(ctx, document, keep)
	}
	err := r.executor.Execute(ctx, "vector.delete_stale", func(callCtx context.Context) error {
		return r.inner.DeleteStale(callCtx, document, keep)
	}, classifyWriteError)
	if err != nil && !errors.Is(err, domain.ErrIndexWriteFailure) {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, "vector.delete_stale", err)
	}
	return err
}

func (r *ResilientIndex) Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredEntry, error) {
	return r.inner.Query(ctx, vector, topK)
}

func classifyWriteError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
}
