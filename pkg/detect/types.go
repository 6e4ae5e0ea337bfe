package detect

import "github.com/soteria-labs/soteria/pkg/threat"

// Layer identifies which detection layer produced a verdict.
type Layer string

const (
	// LayerPattern is the compiled-regex fast path.
	LayerPattern Layer = "pattern"
	// LayerAnomaly is embedding-based classification.
	LayerAnomaly Layer = "anomaly"
	// LayerReasoning is the external semantic-reasoning capability.
	LayerReasoning Layer = "reasoning"
	// LayerFusion marks verdicts synthesized by the fusion policy.
	LayerFusion Layer = "fusion"
	// LayerCache marks verdicts served from a cache tier.
	LayerCache Layer = "cache"
	// LayerOutput marks verdicts produced by the output validator.
	LayerOutput Layer = "output"
)

// Verdict is the canonical output of every detection-capable component.
// Immutable once constructed; callers receive copies, never shared pointers.
type Verdict struct {
	IsThreat   bool        `json:"is_threat"`
	ThreatType threat.Type `json:"threat_type"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning,omitempty"`
	Source     Layer       `json:"source_layer"`
}

// Benign builds an allow verdict with the given confidence and source.
func Benign(confidence float64, reasoning string, source Layer) Verdict {
	return Verdict{
		IsThreat:   false,
		ThreatType: threat.Benign,
		Confidence: clamp01(confidence),
		Reasoning:  reasoning,
		Source:     source,
	}
}

// Threat builds a block verdict with the given category, confidence and source.
func Threat(ty threat.Type, confidence float64, reasoning string, source Layer) Verdict {
	return Verdict{
		IsThreat:   true,
		ThreatType: ty,
		Confidence: clamp01(confidence),
		Reasoning:  reasoning,
		Source:     source,
	}
}

// Severity levels produced by the pattern matcher. Level 2 is reserved for
// future intermediate categories and is never produced by the current policy.
const (
	SeverityNone = 0
	SeverityLow  = 1
	SeverityHigh = 3
)

// RegexSignal is the pattern matcher's per-call output. Not persisted.
type RegexSignal struct {
	Threats  []threat.Type
	Severity int
	Matches  map[threat.Type][]string
}

// First returns the first matched category in catalog order, or Benign.
func (s RegexSignal) First() threat.Type {
	if len(s.Threats) == 0 {
		return threat.Benign
	}
	return s.Threats[0]
}

// Diagnostics is the ensemble side channel. It never alters a Verdict; it
// exists so adversarial inputs that fooled one layer but not others can be
// flagged for review without changing the returned decision.
type Diagnostics struct {
	Escalate           bool              `json:"escalate"`
	DisagreementScore  float64           `json:"disagreement_score"`
	EnsembleConfidence float64           `json:"ensemble_confidence"`
	LayerScores        map[Layer]float64 `json:"layer_scores"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
