// Package answer turns retrieved chunks and chat history into an answer,
// either through a Groq-hosted chat model or a local excerpt fallback.
package answer

import (
	"fmt"
	"strings"

	"finsight/internal/domain"
)

// NotAvailable is the phrase the model must use when the context lacks the answer.
const NotAvailable = "Not available in the provided document."

const systemPrompt = `You are FinSight, an expert financial analyst answering questions about a single uploaded document.

Rules:
1. Use ONLY the retrieved document chunks as evidence.
2. ALWAYS cite sources in this exact format: (page: X, chunk: Y)
3. If the information is not in the provided chunks, say: "` + NotAvailable + `"
4. For follow-up questions, extend your previous answer with the new context.
5. Structure the answer with short paragraphs or bullet points.
6. Never invent figures, names or dates.

Example: "The total revenue was $2.4 billion in Q4 2023. (page: 5, chunk: 12)"`

// BuildContext renders retrieved chunks in relevance order, one block per chunk.
func BuildContext(results []domain.RetrievalResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Page %d, Chunk %d]\n%s\n", r.Page, r.ChunkID, r.Text))
	}
	return strings.Join(parts, "\n---\n")
}

func userMessage(query, context string) string {
	return "Retrieved document context:\n\n" + context +
		"\n\n---\n\nUser question: " + query +
		"\n\nPlease answer based on the retrieved context above, citing sources."
}
