package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/hupe1980/ragfuse/distance"
)

// Mock is a deterministic offline embedder: the vector is derived from a
// hash of the text, so equal texts always embed identically across
// processes. Useful for tests and air-gapped runs.
type Mock struct {
	dimension int
}

// NewMock creates a mock embedder with the given dimensionality.
func NewMock(dimension int) *Mock {
	return &Mock{dimension: dimension}
}

// Embed derives a unit vector from the text hash.
func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))

	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, m.dimension)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}

	// NormFloat64 across a whole vector is never all zeros in practice,
	// but guard the degenerate dimension anyway.
	if !distance.NormalizeL2InPlace(vec) {
		vec[0] = 1
	}

	return vec, nil
}

// Dimension returns the configured vector dimensionality.
func (m *Mock) Dimension() int { return m.dimension }

// Model returns the fixed mock identifier.
func (m *Mock) Model() string { return "mock" }
