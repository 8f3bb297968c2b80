package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

const (
	SystemFraming   = "You are an AI assistant that extracts answers from the given documentation."
	FallbackFraming = "You are a helpful assistant. Answer the user's request directly and concisely."
	noContextNote   = "I couldn't find specific information about this in the documentation."
)

// ComposePrompt builds the grounded prompt, or the no-context prompt when
// result has no contexts. The no-context prompt never carries relevance
// markers, source labels or a request to cite.
func ComposePrompt(userInput string, result domain.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(SystemFraming)
	b.WriteString("\n\n")

	if len(result.Contexts) == 0 {
		b.WriteString(noContextNote)
		b.WriteString("\n\nQuestion: ")
		b.WriteString(userInput)
		b.WriteString("\n\nAnswer from general knowledge and do not refer to any documents.")
		return b.String()
	}

	b.WriteString("Relevant documentation:\n")
	for _, c := range result.Contexts {
		fmt.Fprintf(&b, "\n[Relevance: %.2f]", c.Score)
		if c.Source != "" {
			fmt.Fprintf(&b, " (source: %s)", c.Source)
		}
		b.WriteString("\n")
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(userInput)
	b.WriteString("\n\nAnswer the question using the documentation above and cite the sources you relied on.")
	return b.String()
}
