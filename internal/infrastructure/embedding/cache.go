package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

// CachedEmbedder memoizes embeddings by text. lru.Cache is safe for
// concurrent use, so no extra locking is needed.
type CachedEmbedder struct {
	inner ports.Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner ports.Embedder, size int) (*CachedEmbedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedding cache: inner embedder is nil")
	}
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vector, ok := c.cache.Get(key); ok {
		return cloneVector(vector), nil
	}
	vector, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vector))
	return vector, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	order := make([]string, 0, len(texts))
	for i, text := range texts {
		if vector, ok := c.cache.Get(cacheKey(text)); ok {
			results[i] = cloneVector(vector)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return results, nil
	}

	embedded, err := c.inner.Embed(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(order) {
		return nil, fmt.Errorf("embedding cache: received %d embeddings for %d texts", len(embedded), len(order))
	}
	for i, text := range order {
		for _, idx := range missing[text] {
			results[idx] = cloneVector(embedded[i])
		}
		c.cache.Add(cacheKey(text), cloneVector(embedded[i]))
	}
	return results, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
