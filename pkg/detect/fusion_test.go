package detect

import (
	"math"
	"testing"

	"github.com/soteria-labs/soteria/pkg/threat"
)

func TestFuse_HighSeverityOverridesEverything(t *testing.T) {
	signal := RegexSignal{
		Threats:  []threat.Type{threat.PromptInjection},
		Severity: SeverityHigh,
	}

	// The deep layers disagree in every possible way; rule 1 must win.
	routerVerdicts := []Verdict{
		Benign(0.01, "reasoning says benign", LayerReasoning),
		Threat(threat.Jailbreak, 0.6, "reasoning says jailbreak", LayerReasoning),
		Benign(0.5, "reasoning timed out", LayerPattern),
	}
	for _, routed := range routerVerdicts {
		got := Fuse(signal, routed)
		if !got.IsThreat {
			t.Errorf("high-severity match fused with %+v: IsThreat = false", routed)
		}
		if got.Confidence != 0.95 {
			t.Errorf("high-severity match confidence = %v, want 0.95", got.Confidence)
		}
		if got.ThreatType != threat.PromptInjection {
			t.Errorf("high-severity match type = %s, want prompt_injection", got.ThreatType)
		}
	}
}

func TestFuse_LowSeverityBoostsAgreeingRouter(t *testing.T) {
	signal := RegexSignal{
		Threats:  []threat.Type{threat.DoSAttack},
		Severity: SeverityLow,
	}

	routed := Threat(threat.DoSAttack, 0.7, "anomaly score", LayerAnomaly)
	got := Fuse(signal, routed)

	if !got.IsThreat {
		t.Fatal("corroborated threat fused to benign")
	}
	if math.Abs(got.Confidence-0.9) > 1e-9 {
		t.Errorf("boosted confidence = %v, want 0.9", got.Confidence)
	}
	if got.ThreatType != threat.DoSAttack {
		t.Errorf("type = %s, want dos_attack from router", got.ThreatType)
	}
}

func TestFuse_BoostIsCappedAtOne(t *testing.T) {
	signal := RegexSignal{
		Threats:  []threat.Type{threat.Jailbreak},
		Severity: SeverityLow,
	}

	got := Fuse(signal, Threat(threat.Jailbreak, 0.9, "", LayerReasoning))
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want capped at 1.0", got.Confidence)
	}
}

func TestFuse_LowSeverityOverridesBenignRouter(t *testing.T) {
	signal := RegexSignal{
		Threats:  []threat.Type{threat.BusinessLogicAbuse},
		Severity: SeverityLow,
	}

	got := Fuse(signal, Benign(0.1, "reasoning says fine", LayerReasoning))
	if !got.IsThreat {
		t.Fatal("weak pattern evidence was fully discounted")
	}
	if got.Confidence != 0.5 {
		t.Errorf("override confidence = %v, want 0.5", got.Confidence)
	}
	if got.ThreatType != threat.BusinessLogicAbuse {
		t.Errorf("type = %s, want the matched pattern category", got.ThreatType)
	}
}

func TestFuse_NoPatternEvidencePassesRouterThrough(t *testing.T) {
	signal := RegexSignal{Severity: SeverityNone}

	for _, routed := range []Verdict{
		Benign(0.02, "clearly benign", LayerReasoning),
		Threat(threat.DataExfiltration, 0.97, "anomaly spike", LayerAnomaly),
	} {
		if got := Fuse(signal, routed); got != routed {
			t.Errorf("Fuse with severity 0 = %+v, want router verdict %+v unchanged", got, routed)
		}
	}
}
