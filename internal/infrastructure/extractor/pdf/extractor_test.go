package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "story.pdf", strings.NewReader("plain text, not a pdf"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
