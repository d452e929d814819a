package answer

import (
	"context"
	"fmt"
	"strings"

	"finsight/internal/domain"
)

const (
	localExcerpts    = 3
	localExcerptSize = 300
)

// Local answers without a model by quoting the best-matching chunks.
type Local struct{}

func (Local) Answer(_ context.Context, _ string, retrieved []domain.RetrievalResult, _ []domain.Message) (string, error) {
	if len(retrieved) == 0 {
		return "No relevant information found in the document.", nil
	}
	var b strings.Builder
	b.WriteString("Here are the most relevant excerpts from the document:\n\n")
	for _, r := range retrieved[:min(localExcerpts, len(retrieved))] {
		fmt.Fprintf(&b, "**Page %d, Chunk %d:**\n", r.Page, r.ChunkID)
		b.WriteString(truncateRunes(r.Text, localExcerptSize))
		b.WriteString("...\n\n")
	}
	b.WriteString("\n_Note: Running in local mode. Set GROQ_API_KEY environment variable for AI-powered responses._")
	return b.String(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
