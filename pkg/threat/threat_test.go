package threat

import "testing"

func TestAllCategoriesHaveDescriptions(t *testing.T) {
	for _, ty := range All() {
		if ty.Description() == "Unknown threat category" {
			t.Errorf("category %s has no description", ty)
		}
	}
	if len(All()) != 19 {
		t.Errorf("expected 19 threat categories, got %d", len(All()))
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   Type
		wantOK bool
	}{
		{"prompt_injection", PromptInjection, true},
		{"auth_bypass", AuthBypass, true},
		{"benign", Benign, true},
		{"", Benign, true},
		{"not_a_category", Benign, false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Parse(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDefaultHighSeverity(t *testing.T) {
	hs := DefaultHighSeverity()
	if !hs[PromptInjection] {
		t.Error("prompt_injection should be high severity by default")
	}
	if hs[Benign] {
		t.Error("benign must never be high severity")
	}
	for ty := range hs {
		if !Valid(ty.String()) {
			t.Errorf("high severity set contains unknown category %s", ty)
		}
	}
}

func TestIsBenign(t *testing.T) {
	if !Benign.IsBenign() {
		t.Error("Benign.IsBenign() = false")
	}
	if PromptInjection.IsBenign() {
		t.Error("PromptInjection.IsBenign() = true")
	}
}
