package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default returned nil")
	}

	if cfg.Detection.BlockThreshold <= 0 || cfg.Detection.BlockThreshold > 1 {
		t.Errorf("BlockThreshold should be between 0 and 1, got %f", cfg.Detection.BlockThreshold)
	}
	if cfg.Detection.AllowThreshold <= 0 || cfg.Detection.AllowThreshold >= cfg.Detection.BlockThreshold {
		t.Errorf("AllowThreshold %f should sit below BlockThreshold %f",
			cfg.Detection.AllowThreshold, cfg.Detection.BlockThreshold)
	}
	if !cfg.SpeculativeEnabled() {
		t.Error("speculative execution should default to enabled")
	}
	if cfg.CacheTTL() != time.Hour {
		t.Errorf("default cache TTL = %v, want 1h", cfg.CacheTTL())
	}
}

func TestHighSecurity(t *testing.T) {
	cfg := HighSecurity()
	defaultCfg := Default()

	// Stricter profile widens the ambiguous band so more inputs reach the
	// deep layers.
	if cfg.Detection.BlockThreshold >= defaultCfg.Detection.BlockThreshold {
		t.Errorf("expected lower BlockThreshold for high security, got %f >= %f",
			cfg.Detection.BlockThreshold, defaultCfg.Detection.BlockThreshold)
	}
	if cfg.SpeculativeEnabled() {
		t.Error("high-security profile must not run core logic speculatively")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soteria.yaml")
	content := `
listen_addr: ":9090"
detection:
  block_threshold: 0.9
  reasoner_endpoint: http://localhost:7000/detect
cache:
  ttl: 15m
shield:
  speculative: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Detection.BlockThreshold != 0.9 {
		t.Errorf("BlockThreshold = %f, want the file's 0.9", cfg.Detection.BlockThreshold)
	}
	if cfg.Detection.AllowThreshold != 0.05 {
		t.Errorf("AllowThreshold = %f, want the 0.05 default preserved", cfg.Detection.AllowThreshold)
	}
	if cfg.CacheTTL() != 15*time.Minute {
		t.Errorf("cache TTL = %v, want 15m", cfg.CacheTTL())
	}
	if cfg.SpeculativeEnabled() {
		t.Error("explicit speculative: false was ignored")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Detection.BlockThreshold != Default().Detection.BlockThreshold {
		t.Error("empty path should return defaults")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/definitely/not/here.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Default()
	cfg.Detection.ReasoningTimeout = "not-a-duration"
	if got := cfg.ReasoningTimeout(); got != 10*time.Second {
		t.Errorf("malformed duration = %v, want 10s fallback", got)
	}
	cfg.Detection.ReasoningTimeout = "250ms"
	if got := cfg.ReasoningTimeout(); got != 250*time.Millisecond {
		t.Errorf("ReasoningTimeout = %v, want 250ms", got)
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		val, min, max, expected int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}
	for _, tt := range tests {
		if got := clampInt(tt.val, tt.min, tt.max); got != tt.expected {
			t.Errorf("clampInt(%d, %d, %d) = %d, want %d",
				tt.val, tt.min, tt.max, got, tt.expected)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SOTERIA_TEST_INT", "42")
	if got := GetEnvInt("SOTERIA_TEST_INT", 10); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	if got := GetEnvInt("SOTERIA_TEST_INT_MISSING", 100); got != 100 {
		t.Errorf("expected default 100, got %d", got)
	}

	t.Setenv("SOTERIA_TEST_INT_BAD", "not-a-number")
	if got := GetEnvInt("SOTERIA_TEST_INT_BAD", 50); got != 50 {
		t.Errorf("expected default 50 for invalid int, got %d", got)
	}
}
