package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

type embedderFake struct {
	mu      sync.Mutex
	vector  []float32
	err     error
	queries []string
	batches [][]string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), f.vectorOrDefault()...)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorOrDefault(), nil
}

func (f *embedderFake) vectorOrDefault() []float32 {
	if f.vector == nil {
		return []float32{1, 0}
	}
	return f.vector
}

type indexFake struct {
	mu       sync.Mutex
	matches  []domain.ScoredEntry
	queryErr error
	writeErr error
	topK     int
	upserted []domain.IndexEntry
	ensured  int
	pruned   map[string][]string
}

func (f *indexFake) EnsureIndex(_ context.Context, dimension int) error {
	f.ensured = dimension
	return nil
}

func (f *indexFake) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.upserted = append(f.upserted, entries...)
	return nil
}

func (f *indexFake) DeleteStale(_ context.Context, document string, keep []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pruned == nil {
		f.pruned = make(map[string][]string)
	}
	f.pruned[document] = keep
	return nil
}

func (f *indexFake) Query(_ context.Context, _ []float32, topK int) ([]domain.ScoredEntry, error) {
	f.topK = topK
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func scored(id, text string, score float64) domain.ScoredEntry {
	return domain.ScoredEntry{
		Entry: domain.IndexEntry{ID: id, Metadata: domain.EntryMetadata{Text: text, Source: "guide.pdf"}},
		Score: score,
	}
}

type generatorCall struct {
	system string
	prompt string
}

type generatorFake struct {
	text  string
	err   error
	calls []generatorCall
}

func (f *generatorFake) Generate(_ context.Context, system, prompt string) (string, error) {
	f.calls = append(f.calls, generatorCall{system: system, prompt: prompt})
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type retrieverFake struct {
	result domain.RetrievalResult
	err    error
}

func (f *retrieverFake) Retrieve(context.Context, string) (domain.RetrievalResult, error) {
	return f.result, f.err
}
