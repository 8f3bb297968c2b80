package html

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Extractor keeps visible text nodes and drops script and style content.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(body)
	var parts []string
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parse %s: %w", filename, err)
			}
			return strings.Join(parts, "\n"), nil
		case html.StartTagToken:
			if isHidden(tokenizer.Token().Data) {
				skipDepth++
			}
		case html.EndTagToken:
			if isHidden(tokenizer.Token().Data) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(tokenizer.Text())), " ")
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func isHidden(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template":
		return true
	default:
		return false
	}
}
