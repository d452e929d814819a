package summarizer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"finsight/internal/domain"
	"finsight/internal/textproc"
)

// maxSentenceRunes drops table rows and other run-on fragments that PDF
// extraction tends to glue into one "sentence".
const maxSentenceRunes = 400

// FrequencySummarizer builds an extractive overview: sentences are ranked by the
// document-wide frequency of their tokens and the best ones are kept in reading order.
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer { return &FrequencySummarizer{} }

type sentence struct {
	page   int
	text   string
	tokens []string
	score  float64
	order  int
}

// Summarize returns up to maxSentences sentences, each suffixed with its page citation.
func (s *FrequencySummarizer) Summarize(pages []domain.Page, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	var sentences []sentence
	freq := map[string]float64{}
	for _, p := range pages {
		for _, text := range textproc.Sentences(p.Text) {
			if len([]rune(text)) > maxSentenceRunes {
				continue
			}
			toks := textproc.Tokenize(text)
			if len(toks) < 3 {
				continue
			}
			for _, t := range toks {
				freq[t]++
			}
			sentences = append(sentences, sentence{page: p.Number, text: strings.Join(strings.Fields(text), " "), tokens: toks, order: len(sentences)})
		}
	}
	if len(sentences) == 0 {
		return "", nil
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for i := range sentences {
		sum := 0.0
		for _, t := range sentences[i].tokens {
			sum += freq[t] / maxF
		}
		// normalize by length so long sentences do not dominate
		sentences[i].score = sum / math.Sqrt(float64(len(sentences[i].tokens)))
	}
	ranked := slices.Clone(sentences)
	slices.SortStableFunc(ranked, func(a, b sentence) int { return cmp.Compare(b.score, a.score) })
	ranked = ranked[:min(maxSentences, len(ranked))]
	slices.SortFunc(ranked, func(a, b sentence) int { return cmp.Compare(a.order, b.order) })

	out := make([]string, 0, len(ranked))
	for _, sn := range ranked {
		out = append(out, fmt.Sprintf("%s (page: %d)", sn.text, sn.page))
	}
	return strings.Join(out, " "), nil
}
