package embedding

import (
	"errors"
	"math"
	"testing"

	"finsight/internal/domain"
)

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	if err := Normalize(v); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if math.Abs(Norm(v)-1) > 1e-6 || math.Abs(float64(v[0])-0.6) > 1e-6 {
		t.Fatalf("unexpected result %v", v)
	}
}

func TestNormalizeZeroNorm(t *testing.T) {
	err := Normalize(make([]float32, 8))
	if !errors.Is(err, domain.ErrEmbedding) || !errors.Is(err, domain.ErrZeroNorm) {
		t.Fatalf("Normalize(zero) error = %v", err)
	}
}
