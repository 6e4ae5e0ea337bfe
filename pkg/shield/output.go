// Package shield orchestrates the full guarded request path: cached input
// screening, speculative execution of the protected core logic, output
// validation, and failure logging.
package shield

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/soteria-labs/soteria/pkg/detect"
)

// Violation classifies an unsafe generated output.
type Violation string

const (
	ViolationNone         Violation = "benign"
	ViolationPIIExposure  Violation = "pii_exposure"
	ViolationDataLeakage  Violation = "data_leakage"
	ViolationJailbreak    Violation = "jailbreak_success"
	ViolationMaliciousCmd Violation = "malicious_instructions"
	ViolationIndirect     Violation = "indirect_injection"
)

// Report is the output validator's result. Its pass/fail is independent of
// the input guard: it is the safety net for attacks that evade input-side
// detection.
type Report struct {
	Safe       bool      `json:"safe"`
	Violation  Violation `json:"violation_type"`
	Confidence float64   `json:"confidence"`
	Details    string    `json:"violation_details,omitempty"`
	Matches    []string  `json:"matches,omitempty"`
}

// OutputValidator screens generated text with a pattern catalog and,
// optionally, the same reasoning capability the input path uses.
type OutputValidator struct {
	compiled map[Violation][]*regexp.Regexp
	order    []Violation
	reasoner detect.Reasoner
}

// outputPatterns is the built-in catalog of post-generation signatures:
// secrets and PII, leaked system prompts, successful jailbreaks, and
// instructions smuggled into the response.
var outputPatterns = map[Violation][]string{
	ViolationPIIExposure: {
		`\b\d{3}-\d{2}-\d{4}\b`,
		`\b(?:\d{4}[-\s]?){3}\d{4}\b`,
		`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		`(?:api[_\s]?key|secret[_\s]?key|access[_\s]?token)[\s:=]+[a-zA-Z0-9\-]{20,}`,
		`(?:password|passwd|pwd)[\s:=]+\S{8,}`,
	},
	ViolationDataLeakage: {
		`system\s+prompt|internal\s+instructions?|core\s+directive`,
		`secret\s+instruction|hidden\s+prompt|private\s+directive`,
	},
	ViolationJailbreak: {
		`developer\s+mode|jailbreak|all\s+rules\s+removed|without\s+restrictions`,
		`\bDAN\b\s+mode|uncensored\s+mode`,
		`override\s+safety|bypass\s+(?:guard|filter)s?`,
	},
	ViolationMaliciousCmd: {
		`(?:curl|wget)\s+\S+\.(?:exe|sh|py|bat|cmd)`,
		`(?:sudo\s+)?rm\s+-rf\s+/|format\s+(?:the\s+)?drive`,
		`(?:run|execute)\s+this\s+(?:code|command|script)`,
	},
	ViolationIndirect: {
		`ignore\s+previous\s+instructions`,
		`as\s+instructed\s+by\s+the\s+(?:document|email|page)`,
		`override\s+(?:your|the)\s+behavior`,
	},
}

// NewOutputValidator compiles the built-in catalog. The reasoner is
// optional; when present it screens outputs the patterns pass.
func NewOutputValidator(reasoner detect.Reasoner) *OutputValidator {
	v := &OutputValidator{
		compiled: make(map[Violation][]*regexp.Regexp, len(outputPatterns)),
		order: []Violation{
			ViolationPIIExposure,
			ViolationDataLeakage,
			ViolationJailbreak,
			ViolationMaliciousCmd,
			ViolationIndirect,
		},
		reasoner: reasoner,
	}
	for violation, patterns := range outputPatterns {
		for _, p := range patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				log.Printf("output validator: skipping invalid pattern %q: %v", p, err)
				continue
			}
			v.compiled[violation] = append(v.compiled[violation], re)
		}
	}
	return v
}

// Validate screens the generated output. originalInput gives the reasoner
// context and may be empty.
func (v *OutputValidator) Validate(ctx context.Context, output, originalInput string) Report {
	if strings.TrimSpace(output) == "" {
		return Report{Safe: true, Violation: ViolationNone, Confidence: 1}
	}

	scanned := output
	if len(scanned) > detect.MaxScanLength {
		scanned = scanned[:detect.MaxScanLength]
	}

	var (
		detected []Violation
		matches  []string
	)
	for _, violation := range v.order {
		for _, re := range v.compiled[violation] {
			if m := re.FindString(scanned); m != "" {
				detected = append(detected, violation)
				matches = append(matches, m)
				break
			}
		}
	}
	if len(detected) > 0 {
		names := make([]string, len(detected))
		for i, d := range detected {
			names[i] = string(d)
		}
		return Report{
			Safe:       false,
			Violation:  detected[0],
			Confidence: 0.9,
			Details:    "detected: " + strings.Join(names, ", "),
			Matches:    matches,
		}
	}

	if v.reasoner != nil {
		verdict, err := v.reasoner.Analyze(ctx, scanned)
		if err != nil {
			log.Printf("output validator: reasoner unavailable, pattern result stands: %v", err)
		} else if verdict.IsThreat && verdict.Confidence >= 0.5 {
			return Report{
				Safe:       false,
				Violation:  ViolationIndirect,
				Confidence: verdict.Confidence,
				Details:    verdict.Reasoning,
			}
		}
	}

	return Report{Safe: true, Violation: ViolationNone, Confidence: 0.9, Details: "no output violations detected"}
}
