package detect

// Arbiter scores disagreement across the detection layers that actually ran.
// Its output is a pure side channel: a high disagreement flags inputs that
// fooled one layer but not the others, for logging and offline review, and
// never changes the verdict the caller receives.
type Arbiter struct {
	weights           map[Layer]float64
	escalateThreshold float64
}

// ArbiterConfig tunes the ensemble. Zero values pick the defaults.
type ArbiterConfig struct {
	// Weights applied per layer when averaging. Layers absent from the map
	// get weight 1. Skipped layers never contribute.
	Weights map[Layer]float64
	// EscalateThreshold is the disagreement score at and above which the
	// diagnostics carry escalate=true. Default 0.4.
	EscalateThreshold float64
}

func NewArbiter(cfg ArbiterConfig) *Arbiter {
	if cfg.EscalateThreshold <= 0 {
		cfg.EscalateThreshold = 0.4
	}
	return &Arbiter{
		weights:           cfg.Weights,
		escalateThreshold: cfg.EscalateThreshold,
	}
}

// Analyze computes the weighted ensemble confidence and the disagreement
// score (max minus min) over the layer scores that were computed. An empty
// score map yields zeroed diagnostics.
func (a *Arbiter) Analyze(scores map[Layer]float64) Diagnostics {
	if len(scores) == 0 {
		return Diagnostics{LayerScores: map[Layer]float64{}}
	}

	var (
		weightedSum float64
		totalWeight float64
		minScore    = 1.0
		maxScore    = 0.0
	)
	for layer, score := range scores {
		w := 1.0
		if a.weights != nil {
			if lw, ok := a.weights[layer]; ok {
				w = lw
			}
		}
		weightedSum += score * w
		totalWeight += w
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}

	ensemble := 0.0
	if totalWeight > 0 {
		ensemble = weightedSum / totalWeight
	}
	disagreement := maxScore - minScore

	layerScores := make(map[Layer]float64, len(scores))
	for layer, score := range scores {
		layerScores[layer] = score
	}

	return Diagnostics{
		Escalate:           disagreement >= a.escalateThreshold,
		DisagreementScore:  disagreement,
		EnsembleConfidence: clamp01(ensemble),
		LayerScores:        layerScores,
	}
}
