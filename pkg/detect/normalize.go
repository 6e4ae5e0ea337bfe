package detect

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxScanLength caps the text fed to any detection layer. Longer inputs are
// truncated so worst-case latency stays bounded regardless of payload size.
const MaxScanLength = 10000

// Normalize prepares raw text for matching and cache keying: NFKC folding
// (collapses mathematical/fullwidth/circled Unicode variants onto ASCII),
// whitespace trim, case fold, and the length cap. Every layer and every cache
// tier must see the same normalized form so identical inputs hash identically.
func Normalize(text string) string {
	n := norm.NFKC.String(text)
	n = strings.TrimSpace(n)
	n = strings.ToLower(n)
	if len(n) > MaxScanLength {
		n = n[:MaxScanLength]
	}
	return n
}
