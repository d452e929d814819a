package domain

import "context"

// Page is the extracted text of one document page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is an overlapping character window of a page.
// ID is dense and zero-based across the whole document.
type Chunk struct {
	ID        int
	Page      int
	Text      string
	StartChar int
	EndChar   int
}

// IndexEntry is the metadata stored alongside each vector.
type IndexEntry struct {
	ChunkID int    `json:"chunk_id"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
}

// Entry projects a chunk onto the stored metadata.
func (c Chunk) Entry() IndexEntry {
	return IndexEntry{ChunkID: c.ID, Page: c.Page, Text: c.Text}
}

// RetrievalResult is a search hit with its similarity score.
type RetrievalResult struct {
	IndexEntry
	Score float32 `json:"score"`
}

// Message is one turn of the chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// IngestResult summarizes a successful ingestion.
type IngestResult struct {
	TotalPages  int    `json:"total_pages"`
	TotalChunks int    `json:"total_chunks"`
	Summary     string `json:"summary,omitempty"`
}

// Chunker splits pages into chunks.
type Chunker interface {
	Chunk(pages []Page) ([]Chunk, error)
}

// Embedder maps text to unit-normalized vectors of a fixed dimension.
// Output order always matches input order.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Answerer produces an answer from retrieved chunks and prior turns.
type Answerer interface {
	Answer(ctx context.Context, query string, retrieved []RetrievalResult, history []Message) (string, error)
}

// Summarizer produces a brief overview of a document.
type Summarizer interface {
	Summarize(pages []Page, maxSentences int) (string, error)
}

// PageExtractor turns a document file into ordered pages.
type PageExtractor interface {
	Extract(path string) ([]Page, error)
}
