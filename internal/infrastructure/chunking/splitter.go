package chunking

import (
	"fmt"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// Splitter windows text by rune offsets. Windows are ChunkSize runes long and
// advance by ChunkSize-Overlap; the last window is truncated to the text.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}, nil
}

func Validate(chunkSize, overlap int) error {
	if overlap < 0 || chunkSize <= overlap {
		return domain.WrapError(
			domain.ErrInvalidConfiguration,
			"chunking.validate",
			fmt.Errorf("chunk size %d must be greater than overlap %d >= 0", chunkSize, overlap),
		)
	}
	return nil
}

// Split is the one-shot form of Splitter.Split.
func Split(text string, chunkSize, overlap int) ([]domain.Chunk, error) {
	s, err := NewSplitter(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

func (s *Splitter) Split(text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	out := make([]domain.Chunk, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		out = append(out, domain.Chunk{
			ID:           domain.ChunkID(len(out)),
			Text:         string(runes[start:end]),
			SourceOffset: start,
		})
	}
	return out
}
