package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder derives reproducible pseudo-vectors from a SHA-256 digest of
// the input text. Identical text always yields a bit-identical vector and
// distinct texts collide only if SHA-256 does.
//
// It exists for development and tests: retrieval plumbing can be exercised
// end to end without network access or an API key. Hash vectors carry no
// semantic signal, so it must never back production grounding guarantees.
type HashEmbedder struct{}

// NewHashEmbedder creates a deterministic local embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// Embed returns one deterministic unit vector per input text.
func (*HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = hashVector(t, Dimension)
	}
	return vectors, nil
}

// hashVector tiles the SHA-256 digest of text across dim entries, maps each
// 4-byte window to [-1, 1], and L2-normalizes the result.
func hashVector(text string, dim int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec
}
