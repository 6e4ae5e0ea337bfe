package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Artifacts produced by the offline optimizer are laid out as versioned
// directories (v1, v2, ...) under a base dir, with an optional "latest"
// entry (symlink or directory) pointing at the one to serve.

// ResolveArtifactDir resolves a version selector ("latest" or an explicit
// version name) against a base directory.
func ResolveArtifactDir(baseDir, version string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("artifact base dir not configured")
	}
	if version == "" {
		version = "latest"
	}

	candidate := filepath.Join(baseDir, version)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	if version != "latest" {
		return "", fmt.Errorf("artifact version %s not found under %s", version, baseDir)
	}

	// No "latest" pointer: fall back to the highest version directory.
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return "", fmt.Errorf("read artifact dir: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "v") {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no artifact versions found under %s", baseDir)
	}
	sort.Strings(versions)
	return filepath.Join(baseDir, versions[len(versions)-1]), nil
}

// ModelArtifact is the serialized anomaly classifier: a linear model over
// embeddings plus its feature schema. Read-only after load.
type ModelArtifact struct {
	Version   string    `yaml:"version"`
	Dimension int       `yaml:"dimension"`
	Bias      float64   `yaml:"bias"`
	Weights   []float64 `yaml:"weights"`
	Threshold float64   `yaml:"threshold"`
}

// LoadModelArtifact reads and validates a classifier artifact.
func LoadModelArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var a ModelArtifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if a.Dimension <= 0 || len(a.Weights) != a.Dimension {
		return nil, fmt.Errorf("model artifact %s: weight count %d does not match dimension %d",
			path, len(a.Weights), a.Dimension)
	}
	if a.Threshold == 0 {
		a.Threshold = 0.5
	}
	return &a, nil
}

// Demonstration is one labeled example in an exemplar config.
type Demonstration struct {
	Input      string `yaml:"input" json:"input"`
	IsThreat   bool   `yaml:"is_threat" json:"is_threat"`
	ThreatType string `yaml:"threat_type" json:"threat_type"`
	Reasoning  string `yaml:"reasoning" json:"reasoning"`
}

// ExemplarConfig is the versioned prompt/exemplar artifact consumed by the
// reasoning capability. Read-only after load; its content is produced by the
// offline optimizer and never edited by this process.
type ExemplarConfig struct {
	Version        string          `yaml:"version"`
	Instructions   string          `yaml:"instructions"`
	Demonstrations []Demonstration `yaml:"demonstrations"`
}

// LoadExemplarConfig reads an exemplar artifact from an artifact directory.
func LoadExemplarConfig(dir string) (*ExemplarConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, "exemplars.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read exemplar config: %w", err)
	}
	var c ExemplarConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse exemplar config: %w", err)
	}
	if c.Instructions == "" {
		return nil, fmt.Errorf("exemplar config in %s has empty instructions", dir)
	}
	return &c, nil
}
