// Package pdf extracts per-page plain text from PDF files.
package pdf

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"finsight/internal/domain"
)

// Extractor implements domain.PageExtractor.
type Extractor struct{}

// Extract returns every page in order. Pages without extractable text are
// kept with empty Text so page numbering has no gaps.
func (Extractor) Extract(path string) (pages []domain.Page, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()
	// the parser panics on some malformed streams
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("parse pdf %s: %v", path, rec)
		}
	}()
	n := r.NumPage()
	pages = make([]domain.Page, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d of %s: %w", i, path, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

// IsPDF reports whether name has a .pdf extension.
func IsPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
