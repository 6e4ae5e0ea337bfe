package detect

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrNoAnomalyModel is returned when neither a classifier artifact nor a
// seed index is available.
var ErrNoAnomalyModel = errors.New("anomaly classifier has no model loaded")

// AnomalyClassifier scores an embedding for attack-likeness. Stateless at
// call time beyond the artifact loaded at construction; deterministic for a
// fixed artifact version and embedding, and its latency is bounded by
// embedding dimensionality, not input length.
//
// Two strategies, tried in order:
//  1. linear classifier artifact (weights + bias, sigmoid output);
//  2. similarity against known-attack seeds, when no artifact is loaded.
type AnomalyClassifier struct {
	artifact *ModelArtifact
	seeds    *SeedIndex
}

// NewAnomalyClassifier builds a classifier from an optional artifact and an
// optional seed index. At least one must be provided.
func NewAnomalyClassifier(artifact *ModelArtifact, seeds *SeedIndex) (*AnomalyClassifier, error) {
	if artifact == nil && seeds == nil {
		return nil, ErrNoAnomalyModel
	}
	return &AnomalyClassifier{artifact: artifact, seeds: seeds}, nil
}

// Version returns the loaded artifact version, or "seeds" in fallback mode.
func (c *AnomalyClassifier) Version() string {
	if c.artifact != nil {
		return c.artifact.Version
	}
	return "seeds"
}

// Classify maps an embedding to a threat confidence in [0,1].
func (c *AnomalyClassifier) Classify(ctx context.Context, embedding []float32) (float64, error) {
	if c.artifact != nil {
		return c.classifyLinear(embedding)
	}
	return c.classifyBySimilarity(ctx, embedding)
}

func (c *AnomalyClassifier) classifyLinear(embedding []float32) (float64, error) {
	if len(embedding) != c.artifact.Dimension {
		return 0, fmt.Errorf("embedding dimension %d does not match artifact dimension %d",
			len(embedding), c.artifact.Dimension)
	}

	z := c.artifact.Bias
	for i, w := range c.artifact.Weights {
		z += w * float64(embedding[i])
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

// classifyBySimilarity scores by nearest known-attack seed. A strong match
// against a high-severity seed approaches that seed's severity; weak matches
// decay toward a floor rather than zero so genuinely novel inputs stay in
// the ambiguous band and escalate to the reasoning layer.
func (c *AnomalyClassifier) classifyBySimilarity(ctx context.Context, embedding []float32) (float64, error) {
	match, ok, err := c.seeds.Nearest(ctx, embedding)
	if err != nil {
		return 0, err
	}
	if !ok || match.Similarity < 0.5 {
		return 0.1, nil
	}

	score := match.Similarity * match.Severity
	if score < 0.1 {
		score = 0.1
	}
	return clamp01(score), nil
}
