// Package config holds the process configuration: detection thresholds,
// cache sizing, artifact locations, and external collaborator endpoints.
// Configuration is loaded once at startup and treated as read-only after.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	Detection  DetectionConfig  `yaml:"detection"`
	Cache      CacheConfig      `yaml:"cache"`
	Shield     ShieldConfig     `yaml:"shield"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Observer   ObserverConfig   `yaml:"observability"`
	FailureLog FailureLogConfig `yaml:"failure_log"`
}

// DetectionConfig tunes the cascade and its artifacts.
type DetectionConfig struct {
	// BlockThreshold terminates the router cascade as a threat.
	BlockThreshold float64 `yaml:"block_threshold"`
	// AllowThreshold terminates the router cascade as benign.
	AllowThreshold float64 `yaml:"allow_threshold"`
	// EscalateThreshold is the ensemble disagreement at which diagnostics
	// flag the input for review.
	EscalateThreshold float64 `yaml:"escalate_threshold"`

	CatalogPath      string `yaml:"catalog_path"`
	ArtifactDir      string `yaml:"artifact_dir"`
	ArtifactVersion  string `yaml:"artifact_version"`
	SeedDir          string `yaml:"seed_dir"`
	ReasonerEndpoint string `yaml:"reasoner_endpoint"`
	ReasoningTimeout string `yaml:"reasoning_timeout"`
}

// CacheConfig tunes the verdict cache tiers.
type CacheConfig struct {
	ExactCapacity       int     `yaml:"exact_capacity"`
	SemanticCapacity    int     `yaml:"semantic_capacity"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TTL                 string  `yaml:"ttl"`
	// RedisAddr enables the external tier-3 cache when set.
	RedisAddr string `yaml:"redis_addr"`
}

// ShieldConfig tunes the orchestrator.
type ShieldConfig struct {
	// Speculative runs the protected core logic concurrently with input
	// screening. Disable for core logic with irreversible side effects.
	Speculative *bool `yaml:"speculative"`
	// CoreTimeout bounds a single core-logic invocation.
	CoreTimeout string `yaml:"core_timeout"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	ModelPath       string `yaml:"model_path"`
	OnnxLibraryPath string `yaml:"onnx_library_path"`
}

// ObserverConfig configures tracing and metrics export.
type ObserverConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// FailureLogConfig selects the failure-record sink. When PostgresDSN is set
// records go to Postgres, otherwise to a JSONL file at Path.
type FailureLogConfig struct {
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the baseline configuration.
func Default() *Config {
	speculative := true
	return &Config{
		ListenAddr: getEnv("SOTERIA_LISTEN_ADDR", ":8080"),
		Detection: DetectionConfig{
			BlockThreshold:    0.95,
			AllowThreshold:    0.05,
			EscalateThreshold: 0.4,
			ArtifactVersion:   "latest",
			ReasoningTimeout:  "10s",
		},
		Cache: CacheConfig{
			ExactCapacity:       GetEnvInt("SOTERIA_CACHE_CAPACITY", 1024),
			SemanticCapacity:    256,
			SimilarityThreshold: 0.95,
			TTL:                 "1h",
			RedisAddr:           getEnv("SOTERIA_REDIS_ADDR", ""),
		},
		Shield: ShieldConfig{
			Speculative: &speculative,
			CoreTimeout: "30s",
		},
		Observer: ObserverConfig{
			ServiceName: "soteria",
			SampleRatio: 1,
		},
		FailureLog: FailureLogConfig{
			Path: "failures.jsonl",
		},
	}
}

// HighSecurity returns a stricter profile: a wider ambiguous band so more
// inputs reach the deep layers, a more sensitive escalation flag, and no
// speculative core execution.
func HighSecurity() *Config {
	cfg := Default()
	cfg.Detection.BlockThreshold = 0.85
	cfg.Detection.AllowThreshold = 0.02
	cfg.Detection.EscalateThreshold = 0.3
	speculative := false
	cfg.Shield.Speculative = &speculative
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = ":8080"
	}
	c.Detection.BlockThreshold = clampFloat(c.Detection.BlockThreshold, 0.5, 1)
	c.Detection.AllowThreshold = clampFloat(c.Detection.AllowThreshold, 0, 0.5)
	if c.Detection.EscalateThreshold <= 0 {
		c.Detection.EscalateThreshold = 0.4
	}
	if strings.TrimSpace(c.Detection.ArtifactVersion) == "" {
		c.Detection.ArtifactVersion = "latest"
	}
	if c.Cache.ExactCapacity <= 0 {
		c.Cache.ExactCapacity = 1024
	}
	c.Cache.ExactCapacity = clampInt(c.Cache.ExactCapacity, 16, 1<<20)
	if c.Cache.SemanticCapacity <= 0 {
		c.Cache.SemanticCapacity = 256
	}
	if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
		c.Cache.SimilarityThreshold = 0.95
	}
	if c.Observer.SampleRatio <= 0 || c.Observer.SampleRatio > 1 {
		c.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(c.Observer.ServiceName) == "" {
		c.Observer.ServiceName = "soteria"
	}
}

// SpeculativeEnabled reports the speculative-execution setting, defaulting
// to enabled when unset.
func (c *Config) SpeculativeEnabled() bool {
	if c.Shield.Speculative == nil {
		return true
	}
	return *c.Shield.Speculative
}

// ReasoningTimeout parses the configured deadline, defaulting to 10s.
func (c *Config) ReasoningTimeout() time.Duration {
	return parseDuration(c.Detection.ReasoningTimeout, 10*time.Second)
}

// CacheTTL parses the configured entry lifetime, defaulting to 1h.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, time.Hour)
}

// CoreTimeout parses the core-logic deadline, defaulting to 30s.
func (c *Config) CoreTimeout() time.Duration {
	return parseDuration(c.Shield.CoreTimeout, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt reads an integer environment variable with a fallback for
// missing or malformed values.
func GetEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
