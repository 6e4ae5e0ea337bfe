package cache

import (
	"time"

	"github.com/soteria-labs/soteria/pkg/embed"
)

// semanticCache is the tier-2 cache: a bounded list of (embedding, verdict)
// pairs matched by cosine similarity. Eviction is first-in-first-out.
// A linear scan is fine here: the list is capacity-bounded and only reached
// on a tier-1 miss. Not safe for concurrent use; the Store serializes
// access.
type semanticCache struct {
	capacity int
	entries  []Entry
}

func newSemanticCache(capacity int) *semanticCache {
	return &semanticCache{capacity: capacity}
}

func (c *semanticCache) add(entry Entry) {
	if len(c.entries) >= c.capacity {
		// FIFO: drop the oldest inserted entry.
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, entry)
}

// nearest returns the best non-expired entry at or above the similarity
// threshold.
func (c *semanticCache) nearest(embedding []float32, threshold float64, now time.Time) (Entry, bool) {
	var (
		best    Entry
		bestSim float64
		found   bool
	)
	for _, entry := range c.entries {
		if entry.Expired(now) {
			continue
		}
		sim := embed.CosineSimilarity(embedding, entry.Embedding)
		if sim >= threshold && (!found || sim > bestSim) {
			best = entry
			bestSim = sim
			found = true
		}
	}
	return best, found
}

func (c *semanticCache) len() int {
	return len(c.entries)
}
