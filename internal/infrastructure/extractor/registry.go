package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/extractor/html"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/extractor/xlsx"
)

// Registry dispatches extraction by file extension.
type Registry struct {
	byExt map[string]ports.TextExtractor
}

func NewRegistry() *Registry {
	text := plaintext.NewExtractor()
	markup := html.NewExtractor()
	return &Registry{byExt: map[string]ports.TextExtractor{
		".txt":  text,
		".md":   text,
		".csv":  text,
		".pdf":  pdf.NewExtractor(),
		".xlsx": xlsx.NewExtractor(),
		".html": markup,
		".htm":  markup,
	}}
}

func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func (r *Registry) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := r.byExt[ext]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extractor.extract", fmt.Errorf("unsupported file type %q", ext))
	}
	return extractor.Extract(ctx, filename, body)
}
