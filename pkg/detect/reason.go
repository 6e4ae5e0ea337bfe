package detect

import (
	"context"
	"errors"

	"github.com/soteria-labs/soteria/pkg/threat"
)

// ErrReasonerUnavailable is returned when no reasoning provider is
// configured or the configured one cannot be reached.
var ErrReasonerUnavailable = errors.New("reasoning provider unavailable")

// Reasoner is an upstream model that analyzes ambiguous inputs the cheaper
// layers could not settle. Implementations must honor ctx deadlines; the
// router treats a deadline miss as an unavailable layer, not a verdict.
type Reasoner interface {
	Analyze(ctx context.Context, text string) (Verdict, error)
}

// FakeReasoner returns a canned verdict or error. Test double.
type FakeReasoner struct {
	Result Verdict
	Err    error
	Calls  int
}

func (f *FakeReasoner) Analyze(ctx context.Context, text string) (Verdict, error) {
	f.Calls++
	if f.Err != nil {
		return Verdict{}, f.Err
	}
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	return f.Result, nil
}

// NewFakeReasoner creates a reasoner that always reports the given verdict.
func NewFakeReasoner(isThreat bool, ty threat.Type, confidence float64) *FakeReasoner {
	v := Benign(confidence, "canned verdict", LayerReasoning)
	if isThreat {
		v = Threat(ty, confidence, "canned verdict", LayerReasoning)
	}
	return &FakeReasoner{Result: v}
}

// BlockingReasoner never returns until ctx is done. Used to exercise
// deadline handling in the router.
type BlockingReasoner struct{}

func (BlockingReasoner) Analyze(ctx context.Context, text string) (Verdict, error) {
	<-ctx.Done()
	return Verdict{}, ctx.Err()
}

// PatternReasoner answers reasoning requests from a pattern catalog alone.
// It is an offline stand-in for deployments without a remote provider: a
// high-severity match reports a strong threat, anything else a weak benign.
type PatternReasoner struct {
	matcher *Matcher
}

// NewPatternReasoner wraps a matcher. A nil matcher uses the default catalog.
func NewPatternReasoner(m *Matcher) *PatternReasoner {
	if m == nil {
		m = NewMatcher(nil)
	}
	return &PatternReasoner{matcher: m}
}

func (p *PatternReasoner) Analyze(ctx context.Context, text string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	signal := p.matcher.Check(Normalize(text))
	switch signal.Severity {
	case SeverityHigh:
		return Threat(signal.First(), 0.9, "offline pattern analysis", LayerReasoning), nil
	case SeverityLow:
		return Threat(signal.First(), 0.6, "offline pattern analysis", LayerReasoning), nil
	default:
		return Benign(0.1, "offline pattern analysis", LayerReasoning), nil
	}
}
