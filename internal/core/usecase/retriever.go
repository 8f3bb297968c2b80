package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const (
	DefaultTopK           = 3
	DefaultScoreThreshold = 0.7
)

type RetrieverConfig struct {
	TopK           int
	ScoreThreshold float64
	QueryTimeout   time.Duration
}

type RetrieverUseCase struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	augmenter *QueryAugmenter
	cfg       RetrieverConfig
}

func NewRetrieverUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	augmenter *QueryAugmenter,
	cfg RetrieverConfig,
) *RetrieverUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if augmenter == nil {
		augmenter = NewQueryAugmenter(nil)
	}
	return &RetrieverUseCase{
		embedder:  embedder,
		index:     index,
		augmenter: augmenter,
		cfg:       cfg,
	}
}

// Retrieve returns contexts scoring strictly above the threshold, best first.
// Embedding and index failures are returned as ErrRetrievalFailure with the
// cause kept in the chain.
func (uc *RetrieverUseCase) Retrieve(ctx context.Context, query string) (domain.RetrievalResult, error) {
	augmented := uc.augmenter.Augment(query)
	if augmented == "" {
		return domain.NewRetrievalResult(nil), nil
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, augmented)
	if err != nil {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrRetrievalFailure, "retrieve.embed_query", err)
	}

	matches, err := uc.queryIndex(ctx, queryVector)
	if err != nil {
		return domain.RetrievalResult{}, domain.WrapCallError(domain.ErrRetrievalFailure, "retrieve.query_index", err)
	}

	return domain.NewRetrievalResult(uc.filter(matches)), nil
}

func (uc *RetrieverUseCase) queryIndex(ctx context.Context, queryVector []float32) ([]domain.ScoredEntry, error) {
	if uc.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.QueryTimeout)
		defer cancel()
	}
	return uc.index.Query(ctx, queryVector, uc.cfg.TopK)
}

func (uc *RetrieverUseCase) filter(matches []domain.ScoredEntry) []domain.RetrievalContext {
	contexts := make([]domain.RetrievalContext, 0, len(matches))
	for _, match := range matches {
		if match.Score <= uc.cfg.ScoreThreshold {
			continue
		}
		contexts = append(contexts, domain.RetrievalContext{
			Text:   match.Entry.Metadata.Text,
			Score:  match.Score,
			Source: match.Entry.Metadata.Source,
		})
	}
	sort.SliceStable(contexts, func(i, j int) bool {
		return contexts[i].Score > contexts[j].Score
	})
	if len(contexts) > uc.cfg.TopK {
		contexts = contexts[:uc.cfg.TopK]
	}
	return contexts
}
