// Package cache provides the multi-tier verdict cache wrapping the
// detection pipeline: an exact-match LRU tier, a semantic-similarity tier,
// an optional external tier, and single-flight deduplication so concurrent
// identical requests share one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soteria-labs/soteria/pkg/detect"
	"github.com/soteria-labs/soteria/pkg/embed"
)

// Tier identifies which cache tier served a lookup.
type Tier string

const (
	TierNone     Tier = ""
	TierExact    Tier = "exact"
	TierSemantic Tier = "semantic"
	TierRemote   Tier = "remote"
)

// Entry is an immutable cached verdict. Entries are replaced, never mutated
// in place.
type Entry struct {
	KeyHash   string         `json:"key_hash"`
	Embedding []float32      `json:"embedding,omitempty"`
	Verdict   detect.Verdict `json:"verdict"`
	CreatedAt time.Time      `json:"created_at"`
	TTL       time.Duration  `json:"ttl"`
}

// Expired reports whether the entry is past its time to live.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Key hashes normalized input text into a cache key.
func Key(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Config tunes the cache tiers. Zero values pick the defaults.
type Config struct {
	// ExactCapacity bounds the tier-1 LRU. Default 1024.
	ExactCapacity int
	// SemanticCapacity bounds the tier-2 embedding list. Default 256.
	SemanticCapacity int
	// SimilarityThreshold is the minimum cosine similarity for a tier-2
	// hit. Default 0.95.
	SimilarityThreshold float64
	// TTL bounds entry age across all tiers. Default 1h.
	TTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.ExactCapacity <= 0 {
		c.ExactCapacity = 1024
	}
	if c.SemanticCapacity <= 0 {
		c.SemanticCapacity = 256
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.95
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	return c
}

// Stats are monotonic hit/miss counters, updated atomically.
type Stats struct {
	ExactHits    uint64 `json:"exact_hits"`
	SemanticHits uint64 `json:"semantic_hits"`
	RemoteHits   uint64 `json:"remote_hits"`
	Misses       uint64 `json:"misses"`
}

// Result is a completed lookup-or-compute.
type Result struct {
	Verdict detect.Verdict
	// Tier is the tier that served the verdict, or TierNone for a fresh
	// computation.
	Tier Tier
	// Shared is true when the verdict came from another in-flight caller's
	// computation rather than our own.
	Shared bool
}

// Store is the multi-tier cache. Safe for concurrent use; all mutations for
// a given key are serialized through the single-flight group.
type Store struct {
	cfg      Config
	embedder embed.Provider
	remote   Remote

	mu       sync.Mutex
	exact    *lruCache
	semantic *semanticCache

	group singleflight.Group
	now   func() time.Time

	exactHits    atomic.Uint64
	semanticHits atomic.Uint64
	remoteHits   atomic.Uint64
	misses       atomic.Uint64
}

// NewStore builds a cache. The embedder enables the semantic tier and may
// be nil; remote enables tier 3 and may be nil.
func NewStore(cfg Config, embedder embed.Provider, remote Remote) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		remote:   remote,
		exact:    newLRUCache(cfg.ExactCapacity),
		semantic: newSemanticCache(cfg.SemanticCapacity),
		now:      time.Now,
	}
}

// Do returns the cached verdict for text, or runs compute exactly once per
// distinct in-flight key and caches its result. compute receives the
// normalized text.
func (s *Store) Do(ctx context.Context, text string, compute func(ctx context.Context, normalized string) (detect.Verdict, error)) (Result, error) {
	normalized := detect.Normalize(text)
	key := Key(normalized)

	if verdict, tier, ok := s.lookup(ctx, key, normalized); ok {
		return Result{Verdict: verdict, Tier: tier}, nil
	}
	s.misses.Add(1)

	v, err, shared := s.group.Do(key, func() (any, error) {
		// Another caller may have populated the key while we waited for
		// the flight slot.
		if verdict, _, ok := s.lookup(ctx, key, normalized); ok {
			return verdict, nil
		}

		verdict, err := compute(ctx, normalized)
		if err != nil {
			return detect.Verdict{}, err
		}
		s.store(ctx, key, normalized, verdict)
		return verdict, nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Verdict: v.(detect.Verdict), Shared: shared}, nil
}

// lookup walks the tiers in order. Expired entries count as misses.
func (s *Store) lookup(ctx context.Context, key, normalized string) (detect.Verdict, Tier, bool) {
	now := s.now()

	s.mu.Lock()
	if entry, ok := s.exact.get(key); ok {
		if entry.Expired(now) {
			s.exact.remove(key)
		} else {
			s.mu.Unlock()
			s.exactHits.Add(1)
			return entry.Verdict, TierExact, true
		}
	}
	s.mu.Unlock()

	if embedding, ok := s.embedText(ctx, normalized); ok {
		s.mu.Lock()
		entry, ok := s.semantic.nearest(embedding, s.cfg.SimilarityThreshold, now)
		s.mu.Unlock()
		if ok {
			s.semanticHits.Add(1)
			return entry.Verdict, TierSemantic, true
		}
	}

	if s.remote != nil {
		entry, ok, err := s.remote.Get(ctx, key)
		if err != nil {
			log.Printf("cache: remote get failed: %v", err)
		} else if ok && !entry.Expired(now) {
			s.remoteHits.Add(1)
			return entry.Verdict, TierRemote, true
		}
	}

	return detect.Verdict{}, TierNone, false
}

// store writes a fresh entry into every configured tier.
func (s *Store) store(ctx context.Context, key, normalized string, verdict detect.Verdict) {
	entry := Entry{
		KeyHash:   key,
		Verdict:   verdict,
		CreatedAt: s.now(),
		TTL:       s.cfg.TTL,
	}
	if embedding, ok := s.embedText(ctx, normalized); ok {
		entry.Embedding = embedding
	}

	s.mu.Lock()
	s.exact.put(key, entry)
	if entry.Embedding != nil {
		s.semantic.add(entry)
	}
	s.mu.Unlock()

	if s.remote != nil {
		if err := s.remote.Set(ctx, key, entry); err != nil {
			log.Printf("cache: remote set failed: %v", err)
		}
	}
}

func (s *Store) embedText(ctx context.Context, normalized string) ([]float32, bool) {
	if s.embedder == nil || normalized == "" {
		return nil, false
	}
	embedding, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		log.Printf("cache: embedding for semantic tier failed: %v", err)
		return nil, false
	}
	return embedding, true
}

// Stats returns a snapshot of the hit/miss counters.
func (s *Store) Stats() Stats {
	return Stats{
		ExactHits:    s.exactHits.Load(),
		SemanticHits: s.semanticHits.Load(),
		RemoteHits:   s.remoteHits.Load(),
		Misses:       s.misses.Load(),
	}
}
