package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"finsight/internal/domain"
	"finsight/internal/embedding"
	"finsight/internal/textproc"
)

const DefaultDimension = 384

const (
	unigramWeight = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// Embedder is a deterministic local embedder. It hashes word unigrams, word
// bigrams and character trigrams into a fixed number of buckets, damps
// repeated features with log(1+weight) and L2-normalizes the result.
type Embedder struct {
	dimension int
}

// NewEmbedder returns an embedder of the given dimension (DefaultDimension if <= 0).
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string   { return "hashing" }
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedBatch embeds texts in order. Any empty text fails the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, &domain.EmbeddingError{Op: "batch", Err: err}
		}
		v, err := e.embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedOne shares the batch transformation.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embed(text string) ([]float32, error) {
	counts := make(map[int]float64)
	tokens := textproc.Tokenize(text)
	for i, tok := range tokens {
		counts[e.bucket("w:"+tok)] += unigramWeight
		if i > 0 {
			counts[e.bucket("b:"+tokens[i-1]+" "+tok)] += bigramWeight
		}
	}
	for _, g := range trigrams(strings.ToLower(strings.TrimSpace(text))) {
		counts[e.bucket("c:"+g)] += trigramWeight
	}
	vec := make([]float32, e.dimension)
	for idx, c := range counts {
		vec[idx] = float32(math.Log1p(c))
	}
	if err := embedding.Normalize(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *Embedder) bucket(feature string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dimension))
}

// trigrams returns the rune trigrams of s, or s itself when shorter than three runes.
func trigrams(s string) []string {
	r := []rune(s)
	if len(r) == 0 {
		return nil
	}
	if len(r) < 3 {
		return []string{s}
	}
	out := make([]string, 0, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		out = append(out, string(r[i:i+3]))
	}
	return out
}
