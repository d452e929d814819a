// Package embedding contains helpers shared by Embedder implementations.
package embedding

import (
	"math"

	"finsight/internal/domain"
)

// Normalize scales vec to unit L2 norm in place. A zero or non-finite norm
// fails with an EmbeddingError wrapping domain.ErrZeroNorm; vec is left untouched.
func Normalize(vec []float32) error {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return &domain.EmbeddingError{Op: "normalize", Err: domain.ErrZeroNorm}
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return nil
}

// Norm returns the L2 norm of vec.
func Norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
