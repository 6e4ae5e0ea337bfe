// Package embed defines the embedding-provider capability boundary and its
// implementations. The detection core only depends on Provider; which model
// actually produces vectors is a deployment decision.
package embed

import (
	"context"
	"errors"
	"math"
)

// Provider generates fixed-dimension embeddings for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ErrUnavailable is returned when the provider cannot serve embeddings.
var ErrUnavailable = errors.New("embedding provider unavailable")

// CosineSimilarity calculates similarity between two float32 vectors.
// Returns 0 for mismatched or empty vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
