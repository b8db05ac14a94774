// Package drift scores semantic drift of LLM output text against a static
// baseline embedding set and a trailing window of recent samples.
package drift

import (
	"crypto/sha256"

	"gonum.org/v1/gonum/floats"
)

// Dim is the embedding dimensionality. The hash embedder only fills the
// first 32 positions; the remainder is zero padding kept for shape
// compatibility with real sentence embeddings.
const Dim = 384

// Embedder produces deterministic unit vectors for text. It is a stand-in
// feature extractor, not a language model: identical text always maps to an
// identical embedding.
type Embedder struct{}

// NewEmbedder returns the hash-based embedder.
func NewEmbedder() *Embedder { return &Embedder{} }

// Encode maps text to an L2-normalized Dim-length vector derived from its
// SHA-256 digest.
func (e *Embedder) Encode(text string) []float64 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float64, Dim)
	for i, b := range digest {
		vec[i] = float64(b) / 255.0
	}
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

// Similarity returns the cosine similarity of two embeddings. Both inputs
// are expected to be unit vectors, so the dot product suffices. Mismatched
// dimensions (a malformed baseline row) score zero rather than panicking.
func (e *Embedder) Similarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	return floats.Dot(a, b)
}
