// Package similarity scores how close two embeddings are.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/spigell/cv-matcher/internal/embedding"
)

var (
	ErrEmptyVector       = errors.New("vector must not be empty")
	ErrDimensionMismatch = errors.New("vectors have different dimensions")
	ErrNotFinite         = errors.New("similarity is not a finite number")
)

// Cosine returns the cosine similarity of a and b, in [-1, 1].
// A zero-norm vector has no direction and scores 0.
func Cosine(a, b embedding.Vector) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}

	score := dot / denom
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, ErrNotFinite
	}

	return math.Max(-1, math.Min(1, score)), nil
}

// Percent renders a raw score for display, e.g. 0.81424 -> "81.42%".
func Percent(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}
