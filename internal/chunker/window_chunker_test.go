package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"finsight/internal/domain"
)

func TestNewWindowChunkerRejectsBadOverlap(t *testing.T) {
	cases := []struct{ size, overlap int }{{0, 0}, {100, 0}, {100, 100}, {100, 150}, {100, -1}}
	for _, tc := range cases {
		if _, err := NewWindowChunker(tc.size, tc.overlap); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("NewWindowChunker(%d, %d) error = %v, want validation error", tc.size, tc.overlap, err)
		}
	}
}

func TestChunkFourThousandCharPage(t *testing.T) {
	c, err := NewWindowChunker(3600, 800)
	if err != nil {
		t.Fatalf("NewWindowChunker failed: %v", err)
	}
	chunks, err := c.Chunk([]domain.Page{{Number: 1, Text: strings.Repeat("a", 4000)}})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].StartChar != 0 || chunks[0].EndChar != 3600 || len(chunks[0].Text) != 3600 {
		t.Fatalf("first chunk = [%d,%d) len %d", chunks[0].StartChar, chunks[0].EndChar, len(chunks[0].Text))
	}
	if chunks[1].StartChar != 2800 || chunks[1].EndChar != 4000 || len(chunks[1].Text) != 1200 {
		t.Fatalf("second chunk = [%d,%d) len %d", chunks[1].StartChar, chunks[1].EndChar, len(chunks[1].Text))
	}
}

func TestChunkShortPageSingleChunk(t *testing.T) {
	c, _ := NewWindowChunker(100, 20)
	chunks, err := c.Chunk([]domain.Page{{Number: 3, Text: "  revenue grew 12%  "}})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	got := chunks[0]
	if got.Text != "revenue grew 12%" || got.Page != 3 || got.StartChar != 0 || got.EndChar != 20 {
		t.Fatalf("unexpected chunk %+v", got)
	}
}

func TestChunkIDsDenseAcrossEmptyPages(t *testing.T) {
	c, _ := NewWindowChunker(10, 4)
	pages := []domain.Page{
		{Number: 1, Text: "abcdefghijklmnop"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "   \n\t  "},
		{Number: 4, Text: "qrstuvwxyz0123"},
	}
	chunks, err := c.Chunk(pages)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for i, ch := range chunks {
		if ch.ID != i {
			t.Fatalf("chunk %d has id %d", i, ch.ID)
		}
		if ch.Page == 2 || ch.Page == 3 {
			t.Fatalf("blank page %d produced a chunk", ch.Page)
		}
	}
	if chunks[len(chunks)-1].Page != 4 {
		t.Fatalf("last chunk page = %d, want 4", chunks[len(chunks)-1].Page)
	}
}

func TestChunkSkipsWhitespaceWindow(t *testing.T) {
	c, _ := NewWindowChunker(4, 1)
	// windows: [0,4) "ab  ", [3,7) and [6,10) blank, [9,12) " cd"
	chunks, err := c.Chunk([]domain.Page{{Number: 1, Text: "ab        cd"}})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	var texts []string
	for _, ch := range chunks {
		texts = append(texts, ch.Text)
	}
	if !reflect.DeepEqual(texts, []string{"ab", "cd"}) {
		t.Fatalf("texts = %q", texts)
	}
	if chunks[1].ID != 1 {
		t.Fatalf("second chunk id = %d, want 1", chunks[1].ID)
	}
}

func TestChunkCountsRunes(t *testing.T) {
	c, _ := NewWindowChunker(3, 1)
	chunks, err := c.Chunk([]domain.Page{{Number: 1, Text: "€€€€€"}})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 2 || chunks[1].StartChar != 2 || chunks[1].EndChar != 5 || chunks[1].Text != "€€€" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestChunkDeterministic(t *testing.T) {
	c, _ := NewWindowChunker(50, 10)
	pages := []domain.Page{{Number: 1, Text: strings.Repeat("net income and cash flow. ", 20)}, {Number: 2, Text: "balance sheet"}}
	a, _ := c.Chunk(pages)
	b, _ := c.Chunk(pages)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("chunking is not deterministic")
	}
}

func TestChunkRejectsZeroPageNumber(t *testing.T) {
	c, _ := NewWindowChunker(10, 2)
	if _, err := c.Chunk([]domain.Page{{Number: 0, Text: "x"}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
