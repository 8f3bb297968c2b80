package html

import (
	"context"
	"strings"
	"testing"
)

func TestExtractKeepsVisibleText(t *testing.T) {
	page := `<html><head><style>p{color:red}</style><script>var x = 1;</script></head>
<body><h1>Visa   renewal</h1><p>Bring your passport &amp; photo.</p></body></html>`

	text, err := NewExtractor().Extract(context.Background(), "guide.html", strings.NewReader(page))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Visa renewal\nBring your passport & photo." {
		t.Fatalf("unexpected text %q", text)
	}
}
