package embedding

import (
	"context"
	"errors"
	"testing"
)

type countingEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, texts)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func TestCachedEmbedderServesRepeatedQueriesFromCache(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}

	first, err := cached.EmbedQuery(context.Background(), "renew visa")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	first[0] = 999

	second, err := cached.EmbedQuery(context.Background(), "renew visa")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one inner call, got %d", inner.calls)
	}
	if second[0] != float32(len("renew visa")) {
		t.Fatalf("cached vector was mutated through caller: %v", second)
	}
}

func TestCachedEmbedderEmbedsOnlyMissingUniqueTexts(t *testing.T) {
	inner := &countingEmbedder{}
	cached, _ := NewCachedEmbedder(inner, 8)

	if _, err := cached.EmbedQuery(context.Background(), "a"); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	vectors, err := cached.Embed(context.Background(), []string{"a", "bb", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 4 || vectors[2][0] != 2 || vectors[3][0] != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	last := inner.inputs[len(inner.inputs)-1]
	if len(last) != 2 || last[0] != "bb" || last[1] != "ccc" {
		t.Fatalf("expected only missing unique texts, got %v", last)
	}
}

func TestCachedEmbedderDoesNotCacheFailures(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	cached, _ := NewCachedEmbedder(inner, 8)

	for i := 0; i < 2; i++ {
		if _, err := cached.EmbedQuery(context.Background(), "q"); err == nil {
			t.Fatalf("expected error")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("expected failures to reach provider each time, got %d", inner.calls)
	}
}
