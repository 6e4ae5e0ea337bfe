package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// Fixed is a deterministic embedder for tests and offline runs. Vectors are
// derived from a hash of the input, so identical text always embeds
// identically and distinct texts are very unlikely to collide.
type Fixed struct {
	Dim int
	// Err, when set, is returned by every Embed call.
	Err error
	// Vectors maps exact input text to a canned embedding, overriding the
	// hash derivation. Useful for forcing semantic-cache hits in tests.
	Vectors map[string][]float32
}

// NewFixed creates a deterministic embedder with the given dimension.
func NewFixed(dim int) *Fixed {
	return &Fixed{Dim: dim}
}

func (f *Fixed) Dimension() int {
	return f.Dim
}

func (f *Fixed) Embed(_ context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if v, ok := f.Vectors[text]; ok {
		return v, nil
	}

	vec := make([]float32, f.Dim)
	sum := sha256.Sum256([]byte(text))
	seed := sum[:]
	for i := range vec {
		if i%len(seed) == 0 && i > 0 {
			next := sha256.Sum256(seed)
			seed = next[:]
		}
		word := binary.LittleEndian.Uint16(seed[(i*2)%(len(seed)-1):])
		vec[i] = float32(word)/32768.0 - 1.0
	}
	return vec, nil
}
