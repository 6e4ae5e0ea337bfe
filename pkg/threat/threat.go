// Package threat defines the closed taxonomy of threat categories used by
// every detection layer. The set is fixed at startup; configuration may only
// adjust which categories count as high severity, never add new ones.
package threat

// Type identifies one category in the threat taxonomy.
type Type string

const (
	// Core injection types
	PromptInjection    Type = "prompt_injection"
	SystemPromptAttack Type = "system_prompt_attack"
	Jailbreak          Type = "jailbreak"
	ContextManipulation Type = "context_manipulation"

	// Access and data threats
	AuthBypass            Type = "auth_bypass"
	PrivilegeEscalation   Type = "privilege_escalation"
	DataExfiltration      Type = "data_exfiltration"
	InformationDisclosure Type = "information_disclosure"
	SessionHijacking      Type = "session_hijacking"

	// Execution threats
	CodeInjection      Type = "code_injection"
	OutputManipulation Type = "output_manipulation"

	// Resource abuse
	DoSAttack          Type = "dos_attack"
	ResourceExhaustion Type = "resource_exhaustion"
	BusinessLogicAbuse Type = "business_logic_abuse"

	// Content threats
	ContentManipulation Type = "content_manipulation"
	ToxicContent        Type = "toxic_content"

	// Model-level attacks
	ModelInversion   Type = "model_inversion"
	AdversarialInput Type = "adversarial_input"
	ManInTheMiddle   Type = "man_in_the_middle"

	// Benign is the absence of a threat. It is part of the taxonomy so that
	// every verdict carries a valid Type, but it is never high severity.
	Benign Type = "benign"
)

// String returns the string representation of a Type.
func (t Type) String() string {
	return string(t)
}

// IsBenign reports whether the type represents the no-threat category.
func (t Type) IsBenign() bool {
	return t == Benign || t == ""
}

// descriptions provides human-readable descriptions for logs and reports.
var descriptions = map[Type]string{
	PromptInjection:       "Instruction override - ignore/bypass system instructions",
	SystemPromptAttack:    "System prompt extraction or modification",
	Jailbreak:             "DAN, mode switching, persona attacks",
	ContextManipulation:   "Context confusion, window manipulation",
	AuthBypass:            "Authentication/authorization bypass attempts",
	PrivilegeEscalation:   "Privilege or role escalation attempts",
	DataExfiltration:      "Bulk data extraction, secrets exposure",
	InformationDisclosure: "Targeted disclosure of internal information",
	SessionHijacking:      "Session token or identity theft",
	CodeInjection:         "Shell/code execution attempts",
	OutputManipulation:    "Steering generated output toward attacker goals",
	DoSAttack:             "Denial of service via request flooding",
	ResourceExhaustion:    "Token/compute exhaustion attacks",
	BusinessLogicAbuse:    "Free credits, refund fraud, limit bypass",
	ContentManipulation:   "Filter evasion, hidden content injection",
	ToxicContent:          "Harassment, hate, or abusive content",
	ModelInversion:        "Training data or model parameter extraction",
	AdversarialInput:      "Inputs crafted to fool individual detection layers",
	ManInTheMiddle:        "Relay or interception of privileged exchanges",
	Benign:                "No threat detected",
}

// Description returns the human-readable description for a type.
func (t Type) Description() string {
	if d, ok := descriptions[t]; ok {
		return d
	}
	return "Unknown threat category"
}

// All returns every threat category excluding Benign.
func All() []Type {
	return []Type{
		PromptInjection,
		SystemPromptAttack,
		Jailbreak,
		ContextManipulation,
		AuthBypass,
		PrivilegeEscalation,
		DataExfiltration,
		InformationDisclosure,
		SessionHijacking,
		CodeInjection,
		OutputManipulation,
		DoSAttack,
		ResourceExhaustion,
		BusinessLogicAbuse,
		ContentManipulation,
		ToxicContent,
		ModelInversion,
		AdversarialInput,
		ManInTheMiddle,
	}
}

// Valid reports whether s names a known category (including benign).
func Valid(s string) bool {
	_, ok := descriptions[Type(s)]
	return ok
}

// Parse converts a string to a Type, returning Benign for empty input and
// ok=false for names outside the taxonomy.
func Parse(s string) (Type, bool) {
	if s == "" {
		return Benign, true
	}
	t := Type(s)
	if _, ok := descriptions[t]; ok {
		return t, true
	}
	return Benign, false
}

// DefaultHighSeverity is the set of categories whose detection alone is
// sufficient for an immediate block. Overridable from the pattern catalog.
func DefaultHighSeverity() map[Type]bool {
	return map[Type]bool{
		PromptInjection:    true,
		SystemPromptAttack: true,
		AuthBypass:         true,
		CodeInjection:      true,
		DataExfiltration:   true,
		Jailbreak:          true,
	}
}
