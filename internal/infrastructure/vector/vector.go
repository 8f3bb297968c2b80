// Package vector holds helpers shared by the index backends.
package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// SortMatches orders matches by descending score. Equal scores are ordered
// by ascending entry id so that results are stable across backends.
func SortMatches(matches []domain.ScoredEntry) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Entry.ID < matches[j].Entry.ID
		}
		return matches[i].Score > matches[j].Score
	})
}

// CheckDimension fails with ErrInvalidConfiguration when a vector does not
// match the index dimension.
func CheckDimension(operation string, want, got int) error {
	if want > 0 && want != got {
		return domain.WrapError(
			domain.ErrInvalidConfiguration,
			operation,
			fmt.Errorf("vector dimension %d does not match index dimension %d", got, want),
		)
	}
	return nil
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
