package detect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/soteria-labs/soteria/pkg/embed"
	"github.com/soteria-labs/soteria/pkg/threat"
)

// Router escalates an input through detection layers of increasing cost:
// pattern matching, anomaly classification over an embedding, and finally a
// remote reasoning provider. A layer that is decisive terminates the
// cascade; only ambiguous inputs pay for the expensive layers.
type Router struct {
	embedder embed.Provider
	anomaly  *AnomalyClassifier
	reasoner Reasoner

	blockThreshold   float64
	allowThreshold   float64
	reasoningTimeout time.Duration
}

// RouterConfig tunes the cascade. Zero values pick the defaults.
type RouterConfig struct {
	// BlockThreshold terminates the cascade as a threat. Default 0.95.
	BlockThreshold float64
	// AllowThreshold terminates the cascade as benign. Default 0.05.
	AllowThreshold float64
	// ReasoningTimeout bounds the reasoning provider call. Default 10s.
	ReasoningTimeout time.Duration
}

// NewRouter builds a cascade. embedder, anomaly, and reasoner may each be
// nil; a missing layer is skipped and the cascade settles on whatever
// signals remain.
func NewRouter(embedder embed.Provider, anomaly *AnomalyClassifier, reasoner Reasoner, cfg RouterConfig) *Router {
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = 0.95
	}
	if cfg.AllowThreshold <= 0 {
		cfg.AllowThreshold = 0.05
	}
	if cfg.ReasoningTimeout <= 0 {
		cfg.ReasoningTimeout = 10 * time.Second
	}
	return &Router{
		embedder:         embedder,
		anomaly:          anomaly,
		reasoner:         reasoner,
		blockThreshold:   cfg.BlockThreshold,
		allowThreshold:   cfg.AllowThreshold,
		reasoningTimeout: cfg.ReasoningTimeout,
	}
}

// Route runs the cascade over normalized text. The returned map holds the
// threat confidence of every layer that actually computed one, keyed by
// layer, for the arbiter's disagreement analysis.
//
// The pattern score terminates the cascade only on the block side: a
// high-severity match is decisive, but the absence of pattern evidence says
// nothing about novel attacks, so severity 0 still escalates.
func (r *Router) Route(ctx context.Context, text string, signal RegexSignal) (Verdict, map[Layer]float64) {
	scores := make(map[Layer]float64, 3)

	patternScore := signal.Confidence()
	scores[LayerPattern] = patternScore
	if patternScore >= r.blockThreshold {
		return Threat(r.patternType(signal), patternScore, "high-severity pattern match", LayerPattern), scores
	}

	verdict := r.verdictFromScore(patternScore, signal, "pattern signal only", LayerPattern)

	if score, ok := r.classifyAnomaly(ctx, text, scores); ok {
		verdict = r.verdictFromScore(score, signal, "anomaly classifier score", LayerAnomaly)
		if score >= r.blockThreshold || score <= r.allowThreshold {
			return verdict, scores
		}
	}

	if r.reasoner == nil {
		return verdict, scores
	}

	rctx, cancel := context.WithTimeout(ctx, r.reasoningTimeout)
	defer cancel()

	reasoned, err := r.reasoner.Analyze(rctx, text)
	switch {
	case err == nil:
		scores[LayerReasoning] = reasoned.Confidence
		return reasoned, scores
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// Deadline miss: fall back to the best already-computed signal.
		log.Printf("router: reasoning provider deadline exceeded, using %s verdict", verdict.Source)
		return verdict, scores
	default:
		// Malformed or failed provider response counts as an uncertain
		// layer. Recording 0.5 raises the ensemble disagreement instead
		// of silently defaulting to safe.
		log.Printf("router: reasoning provider error: %v", err)
		scores[LayerReasoning] = 0.5
		return r.verdictFromScore(0.5, signal, fmt.Sprintf("reasoning provider error: %v", err), LayerReasoning), scores
	}
}

// classifyAnomaly embeds the text and scores it. Reports ok=false when the
// layer is not configured. An embedding or inference failure records the
// layer as uncertain rather than skipping it.
func (r *Router) classifyAnomaly(ctx context.Context, text string, scores map[Layer]float64) (float64, bool) {
	if r.embedder == nil || r.anomaly == nil {
		return 0, false
	}

	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("router: embedding failed: %v", err)
		scores[LayerAnomaly] = 0.5
		return 0.5, true
	}

	score, err := r.anomaly.Classify(ctx, embedding)
	if err != nil {
		log.Printf("router: anomaly classification failed: %v", err)
		scores[LayerAnomaly] = 0.5
		return 0.5, true
	}

	scores[LayerAnomaly] = score
	return score, true
}

func (r *Router) verdictFromScore(score float64, signal RegexSignal, reasoning string, source Layer) Verdict {
	if score >= 0.5 {
		return Threat(r.patternType(signal), score, reasoning, source)
	}
	return Benign(score, reasoning, source)
}

func (r *Router) patternType(signal RegexSignal) threat.Type {
	if ty := signal.First(); !ty.IsBenign() {
		return ty
	}
	return threat.AdversarialInput
}
