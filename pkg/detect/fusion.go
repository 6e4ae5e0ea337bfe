package detect

import "fmt"

// Fuse combines the pattern signal with the router's verdict under a fixed
// rule table, evaluated top to bottom, first match wins. The policy is
// deliberately asymmetric: pattern evidence can raise a verdict toward
// threat but never lower one, so the pipeline over-blocks rather than
// under-blocks.
//
//  1. High-severity pattern match: block at 0.95 with the first matched
//     high-severity category. Heavier layers need not agree.
//  2. Low-severity match and the router agrees it is a threat: boost the
//     router's confidence by 0.2, capped at 1.0.
//  3. Low-severity match but the router says benign: override to a threat
//     at 0.5 with the matched category. Weak pattern evidence is never
//     fully discounted.
//  4. No pattern evidence: the router's verdict stands unchanged.
func Fuse(signal RegexSignal, routed Verdict) Verdict {
	switch {
	case signal.Severity == SeverityHigh:
		return Threat(
			signal.First(),
			0.95,
			fmt.Sprintf("high-severity pattern match: %s", signal.First()),
			LayerFusion,
		)

	case signal.Severity == SeverityLow && routed.IsThreat:
		boosted := routed
		boosted.Confidence = clamp01(routed.Confidence + 0.2)
		boosted.Reasoning = fmt.Sprintf("pattern corroboration: %s", routed.Reasoning)
		boosted.Source = LayerFusion
		return boosted

	case signal.Severity == SeverityLow && !routed.IsThreat:
		return Threat(
			signal.First(),
			0.5,
			"low-severity pattern match despite benign deep-layer verdict",
			LayerFusion,
		)

	default:
		return routed
	}
}
