package chunker

import (
	"strings"

	"finsight/internal/domain"
)

const (
	DefaultChunkSize = 3600
	DefaultOverlap   = 800
)

// WindowChunker splits each page into fixed-size character windows that overlap
// by a fixed number of characters. Offsets count runes, not bytes.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

// NewWindowChunker validates 0 < overlap < chunkSize.
func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize <= 0 {
		return nil, domain.NewValidationError("chunk_size", chunkSize, "must be positive")
	}
	if overlap <= 0 || overlap >= chunkSize {
		return nil, domain.NewValidationError("overlap", overlap, "must satisfy 0 < overlap < chunk_size")
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk emits chunks in page order with ids assigned across the whole document.
// Whitespace-only windows are skipped without consuming an id.
func (c *WindowChunker) Chunk(pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	nextID := 0
	step := c.chunkSize - c.overlap
	for _, p := range pages {
		if p.Number < 1 {
			return nil, domain.NewValidationError("page_number", p.Number, "must be 1-based")
		}
		text := []rune(p.Text)
		for start := 0; start < len(text); start += step {
			end := min(start+c.chunkSize, len(text))
			trimmed := strings.TrimSpace(string(text[start:end]))
			if trimmed != "" {
				chunks = append(chunks, domain.Chunk{
					ID:        nextID,
					Page:      p.Number,
					Text:      trimmed,
					StartChar: start,
					EndChar:   end,
				})
				nextID++
			}
			if end >= len(text) {
				break
			}
		}
	}
	return chunks, nil
}
