package detect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soteria-labs/soteria/pkg/threat"
)

// Catalog is the structured pattern configuration: category name to pattern
// strings, plus the explicit high-severity category list. Loaded once at
// startup; invalid entries are skipped with a warning, never fatal.
type Catalog struct {
	Patterns     map[string][]string `yaml:"patterns"`
	HighSeverity []string            `yaml:"high_severity"`
}

// LoadCatalog reads a YAML pattern catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse pattern catalog: %w", err)
	}
	if len(c.Patterns) == 0 {
		return nil, fmt.Errorf("pattern catalog %s contains no patterns", path)
	}
	return &c, nil
}

// DefaultCatalog returns the built-in pattern catalog used when no external
// catalog is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Patterns: map[string][]string{
			threat.PromptInjection.String(): {
				`ignore\s+(?:all\s+)?(?:previous|prior|your)\s+(?:instructions?|prompts?|rules?)`,
				`disregard\s+(?:previous|all|system)\s+(?:instructions?|constraints?)`,
				`forget\s+(?:everything|all|your)\s+(?:above|previous|instructions?)`,
				`new\s+(?:instructions?|task|role|persona)\s*:`,
				`you\s+are\s+now\s+(?:a|an|the)\s+\w+`,
				`act\s+as\s+(?:if|a|an)\s+\w+`,
			},
			threat.SystemPromptAttack.String(): {
				`system\s+prompt`,
				`reveal\s+(?:your|the)\s+(?:prompt|instructions?)`,
				`print\s+(?:the|your)\s+(?:prompt|instructions?|system)`,
				`override\s+(?:system|the\s+system)`,
				`</?(?:system|instruction|prompt|rules?)>`,
			},
			threat.Jailbreak.String(): {
				`\bjailbreak\b|break\s+out\s+of\s+(?:your|the)\s+(?:rules|sandbox)`,
				`developer\s+mode|admin\s+mode|unrestricted\s+mode`,
				`\bDAN\b|do\s+anything\s+now`,
				`bypass\s+(?:restrictions|filters|rules|safety)`,
				`unrestricted|uncensored|unfiltered`,
			},
			threat.AuthBypass.String(): {
				`(?:admin|root|administrator|superuser)[\s:]+(?:access|login|auth)`,
				`bypass\s+(?:authentication|authorization|login|security)`,
				`(?:skip|ignore)\s+(?:auth|login|verification)`,
				`backdoor|master\s+password`,
				`privilege\s+escalation`,
			},
			threat.DataExfiltration.String(): {
				`(?:show|display|print|return|give)\s+(?:me\s+)?(?:all\s+)?(?:the\s+)?(?:user|customer|client)\s+(?:data|info|details)`,
				`database\s+(?:dump|export|backup|content)`,
				`list\s+(?:all\s+)?(?:users?|customers?|accounts?|emails?)`,
				`\b(?:api[_\s]?key|secret[_\s]?key|access[_\s]?token)[\s:]\s*[a-zA-Z0-9]{20,}`,
			},
			threat.CodeInjection.String(): {
				`<script[\s>]`,
				`\beval\s*\(`,
				`os\.system\s*\(|subprocess\.|exec\s*\(`,
				`(?:rm\s+-rf|chmod\s+777|curl\s+http\S*\s*\|\s*(?:ba)?sh)`,
				`union\s+select|drop\s+table|information_schema`,
			},
			threat.DoSAttack.String(): {
				`(?:ddos|denial\s+of\s+service)`,
				`(?:flood|spam|overload)\s+(?:with\s+)?(?:requests?|traffic)`,
				`exhaust\s+(?:server|system)\s+resources`,
			},
			threat.BusinessLogicAbuse.String(): {
				`(?:free|unlimited|infinite)\s+(?:credits?|points?|tokens?|money|balance)`,
				`(?:skip|bypass|ignore)\s+(?:payment|billing|subscription|limit)`,
				`refund\s+(?:all|everything|\$\d+)`,
			},
			threat.ContentManipulation.String(): {
				`(?:inject|embed)\s+(?:malicious|hidden)\s+content`,
				`(?:censor|bypass)\s+(?:filters|moderation)`,
			},
		},
		HighSeverity: highSeverityNames(threat.DefaultHighSeverity()),
	}
}

func highSeverityNames(set map[threat.Type]bool) []string {
	names := make([]string, 0, len(set))
	for _, ty := range threat.All() {
		if set[ty] {
			names = append(names, ty.String())
		}
	}
	return names
}
