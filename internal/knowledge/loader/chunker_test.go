package loader

import (
	"strings"
	"testing"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	doc := knowledge.Document{Path: "p/a.md", Filename: "a.md", Text: "short body"}
	chunks := Split(doc, DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text != "short body" || c.Index != 0 || c.Source != "p/a.md" || c.Filename != "a.md" {
		t.Fatalf("unexpected chunk: %+v", c)
	}
	if c.ID == "" {
		t.Fatalf("chunk needs an id")
	}
}

func TestSplitEmptyText(t *testing.T) {
	doc := knowledge.Document{Path: "p/a.md", Filename: "a.md", Text: "   \n  "}
	if chunks := Split(doc, DefaultChunkSize, DefaultChunkOverlap); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplitOverlapAndMonotonicIndices(t *testing.T) {
	// 2500 runes at size 1000 / overlap 200 gives starts 0, 800, 1600.
	text := strings.Repeat("abcdefghij", 250)
	doc := knowledge.Document{Path: "p/big.md", Filename: "big.md", Text: text}

	chunks := Split(doc, 1000, 200)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
	}
	for i := 0; i < len(chunks)-1; i++ {
		if len(chunks[i].Text) != 1000 {
			t.Fatalf("chunk %d length = %d", i, len(chunks[i].Text))
		}
		tail := chunks[i].Text[800:]
		if !strings.HasPrefix(chunks[i+1].Text, tail) {
			t.Fatalf("chunk %d does not start with chunk %d's overlap", i+1, i)
		}
	}
	if len(chunks[2].Text) != 900 {
		t.Fatalf("final chunk length = %d", len(chunks[2].Text))
	}
}

func TestSplitRuneSafety(t *testing.T) {
	// Multibyte runes must never be cut mid-sequence.
	text := strings.Repeat("日本語テキスト断片", 100)
	doc := knowledge.Document{Path: "p/jp.md", Filename: "jp.md", Text: text}

	chunks := Split(doc, 300, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		for _, r := range c.Text {
			if r == '�' {
				t.Fatalf("chunk %d contains a broken rune", i)
			}
		}
	}
}

func TestSplitClampsTinyChunkSize(t *testing.T) {
	text := strings.Repeat("x", 500)
	doc := knowledge.Document{Path: "p/t.md", Filename: "t.md", Text: text}

	// Sizes below the floor are raised to 200; overlap 0 means step 200.
	chunks := Split(doc, 10, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks at the floor size, got %d", len(chunks))
	}
	if len(chunks[0].Text) != 200 || len(chunks[2].Text) != 100 {
		t.Fatalf("unexpected chunk lengths %d/%d", len(chunks[0].Text), len(chunks[2].Text))
	}
}
