package detect

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v3"

	"github.com/soteria-labs/soteria/pkg/embed"
	"github.com/soteria-labs/soteria/pkg/threat"
)

// SeedIndex stores embeddings of known attack and benign exemplars in an
// in-process vector collection. It backs the anomaly classifier's
// similarity fallback and is loaded once at startup from YAML seed files.
type SeedIndex struct {
	collection *chromem.Collection
	embedder   embed.Provider
}

// SeedMatch is the best seed found for a query embedding.
type SeedMatch struct {
	Category   threat.Type
	Severity   float64
	Similarity float64
}

type seedFile struct {
	Seeds []seedEntry `yaml:"seeds"`
}

type seedEntry struct {
	Text     string  `yaml:"text"`
	Category string  `yaml:"category"`
	Severity float64 `yaml:"severity"`
}

// NewSeedIndex creates an empty index backed by the given embedder.
func NewSeedIndex(embedder embed.Provider) (*SeedIndex, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("threat-seeds", nil, func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("create seed collection: %w", err)
	}
	return &SeedIndex{collection: collection, embedder: embedder}, nil
}

// LoadDir loads every *.yaml seed file under dir. A file that fails to parse
// is skipped with a warning; the remaining files still load.
func (s *SeedIndex) LoadDir(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return 0, fmt.Errorf("list seed files: %w", err)
	}

	total := 0
	for _, file := range files {
		n, err := s.LoadFile(ctx, file)
		if err != nil {
			log.Printf("seed index: skipping %s: %v", file, err)
			continue
		}
		total += n
	}
	return total, nil
}

// LoadFile loads a single YAML seed file into the index. Entries with
// unknown categories are skipped with a warning.
func (s *SeedIndex) LoadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	return s.add(ctx, file.Seeds)
}

// add embeds and stores entries. Returns the number actually stored.
func (s *SeedIndex) add(ctx context.Context, entries []seedEntry) (int, error) {
	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		ty, ok := threat.Parse(e.Category)
		if !ok {
			log.Printf("seed index: skipping seed with unknown category %q", e.Category)
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      uuid.NewString(),
			Content: e.Text,
			Metadata: map[string]string{
				"category": ty.String(),
				"severity": strconv.FormatFloat(e.Severity, 'f', -1, 64),
			},
		})
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("store seeds: %w", err)
	}
	return len(docs), nil
}

// Count returns the number of stored seeds.
func (s *SeedIndex) Count() int {
	return s.collection.Count()
}

// Nearest returns the most similar seed for an embedding, or ok=false for an
// empty index.
func (s *SeedIndex) Nearest(ctx context.Context, embedding []float32) (SeedMatch, bool, error) {
	if s.collection.Count() == 0 {
		return SeedMatch{}, false, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, 1, nil, nil)
	if err != nil {
		return SeedMatch{}, false, fmt.Errorf("seed query: %w", err)
	}
	if len(results) == 0 {
		return SeedMatch{}, false, nil
	}

	r := results[0]
	ty, _ := threat.Parse(r.Metadata["category"])
	severity, err := strconv.ParseFloat(r.Metadata["severity"], 64)
	if err != nil {
		severity = 0.85
	}

	return SeedMatch{
		Category:   ty,
		Severity:   severity,
		Similarity: float64(r.Similarity),
	}, true, nil
}
