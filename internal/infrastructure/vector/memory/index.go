// Package memory is an in-process vector index used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/vector"
)

type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]domain.IndexEntry
}

func New() *Index {
	return &Index{entries: make(map[string]domain.IndexEntry)}
}

func (i *Index) EnsureIndex(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidConfiguration, "memory.ensure_index", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dimension != 0 {
		return vector.CheckDimension("memory.ensure_index", i.dimension, dimension)
	}
	i.dimension = dimension
	return nil
}

func (i *Index) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, "memory.upsert", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, entry := range entries {
		if err := vector.CheckDimension("memory.upsert", i.dimension, len(entry.Vector)); err != nil {
			return err
		}
	}
	for _, entry := range entries {
		stored := entry
		stored.Vector = append([]float32(nil), entry.Vector...)
		i.entries[entry.ID] = stored
	}
	return nil
}

func (i *Index) Query(ctx context.Context, queryVector []float32, topK int) ([]domain.ScoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapCallError(domain.ErrIndexQueryFailure, "memory.query", err)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := vector.CheckDimension("memory.query", i.dimension, len(queryVector)); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	matches := make([]domain.ScoredEntry, 0, len(i.entries))
	for _, entry := range i.entries {
		matches = append(matches, domain.ScoredEntry{
			Entry: entry,
			Score: vector.CosineSimilarity(queryVector, entry.Vector),
		})
	}
	vector.SortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (i *Index) DeleteStale(ctx context.Context, document string, keep []string) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, "memory.delete_stale", err)
	}
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for id, entry := range i.entries {
		if entry.Metadata.Document != document {
			continue
		}
		if _, ok := kept[id]; !ok {
			delete(i.entries, id)
		}
	}
	return nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}
