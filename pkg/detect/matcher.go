package detect

import (
	"log"
	"regexp"

	"github.com/soteria-labs/soteria/pkg/threat"
)

// Matcher is the compiled-pattern fast path. Patterns are compiled exactly
// once at construction; Check is safe for concurrent use.
type Matcher struct {
	compiled     map[threat.Type][]*regexp.Regexp
	order        []threat.Type
	highSeverity map[threat.Type]bool
}

// NewMatcher compiles a catalog into a Matcher. Categories outside the
// taxonomy and patterns that fail to compile are skipped with a warning;
// compilation problems are never fatal. An empty resulting pattern set is the
// caller's configuration error to detect.
func NewMatcher(catalog *Catalog) *Matcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	m := &Matcher{
		compiled:     make(map[threat.Type][]*regexp.Regexp),
		highSeverity: make(map[threat.Type]bool),
	}

	for name, patterns := range catalog.Patterns {
		ty, ok := threat.Parse(name)
		if !ok || ty.IsBenign() {
			log.Printf("pattern catalog: skipping unknown category %q", name)
			continue
		}
		for _, p := range patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				log.Printf("pattern catalog: skipping invalid pattern for %s: %v", ty, err)
				continue
			}
			m.compiled[ty] = append(m.compiled[ty], re)
		}
	}

	for _, name := range catalog.HighSeverity {
		ty, ok := threat.Parse(name)
		if !ok || ty.IsBenign() {
			log.Printf("pattern catalog: skipping unknown high-severity category %q", name)
			continue
		}
		m.highSeverity[ty] = true
	}
	if len(catalog.HighSeverity) == 0 {
		m.highSeverity = threat.DefaultHighSeverity()
	}

	// High-severity categories are scanned first so a single hit can return
	// immediately without evaluating the rest of the catalog.
	for _, ty := range threat.All() {
		if m.highSeverity[ty] && len(m.compiled[ty]) > 0 {
			m.order = append(m.order, ty)
		}
	}
	for _, ty := range threat.All() {
		if !m.highSeverity[ty] && len(m.compiled[ty]) > 0 {
			m.order = append(m.order, ty)
		}
	}

	return m
}

// PatternCount returns the number of compiled patterns, for startup checks.
func (m *Matcher) PatternCount() int {
	n := 0
	for _, res := range m.compiled {
		n += len(res)
	}
	return n
}

// IsHighSeverity reports whether a category triggers an immediate block.
func (m *Matcher) IsHighSeverity(ty threat.Type) bool {
	return m.highSeverity[ty]
}

// Check scans normalized text and returns the accumulated signal. On the
// first high-severity match it returns immediately with SeverityHigh; the
// remaining categories are not scanned (latency bound, not recall bound —
// the decision is already an immediate block). Otherwise all categories are
// scanned and the signal carries SeverityLow if anything matched.
func (m *Matcher) Check(text string) RegexSignal {
	text = Normalize(text)

	sig := RegexSignal{
		Severity: SeverityNone,
		Matches:  make(map[threat.Type][]string),
	}
	if text == "" {
		return sig
	}

	for _, ty := range m.order {
		var hits []string
		for _, re := range m.compiled[ty] {
			if loc := re.FindString(text); loc != "" {
				hits = append(hits, loc)
			}
		}
		if len(hits) == 0 {
			continue
		}

		sig.Threats = append(sig.Threats, ty)
		sig.Matches[ty] = hits

		if m.highSeverity[ty] {
			sig.Severity = SeverityHigh
			return sig
		}
		sig.Severity = SeverityLow
	}

	return sig
}

// Confidence maps a signal to the pattern layer's threat confidence, used by
// the confidence router before heavier layers run.
func (s RegexSignal) Confidence() float64 {
	switch s.Severity {
	case SeverityHigh:
		return 0.95
	case SeverityLow:
		return 0.5
	default:
		return 0.05
	}
}
