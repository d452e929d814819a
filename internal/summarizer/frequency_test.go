package summarizer

import (
	"strings"
	"testing"

	"finsight/internal/domain"
)

func TestSummarizeKeepsReadingOrderAndCitesPages(t *testing.T) {
	pages := []domain.Page{
		{Number: 1, Text: "Revenue increased strongly this year. The office moved downtown recently."},
		{Number: 2, Text: ""},
		{Number: 3, Text: "Revenue growth came from subscription revenue. Lunch menus changed twice."},
	}
	got, err := NewFrequencySummarizer().Summarize(pages, 2)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	want := "Revenue increased strongly this year. (page: 1) Revenue growth came from subscription revenue. (page: 3)"
	if got != want {
		t.Fatalf("Summarize = %q\nwant %q", got, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize([]domain.Page{{Number: 1, Text: "  "}}, 3)
	if err != nil || got != "" {
		t.Fatalf("Summarize = %q, %v", got, err)
	}
}

func TestSummarizeCapsSentences(t *testing.T) {
	text := strings.Repeat("Operating margin improved again this quarter. ", 10)
	got, _ := NewFrequencySummarizer().Summarize([]domain.Page{{Number: 1, Text: text}}, 3)
	if n := strings.Count(got, "(page: 1)"); n != 3 {
		t.Fatalf("got %d sentences: %q", n, got)
	}
}
