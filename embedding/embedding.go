// Package embedding turns query text into dense vectors.
//
// The retrieval path only ever embeds single queries; batch embedding for
// index building goes through the same interface one text at a time via
// the CLI tooling.
package embedding

import "context"

// Embedder produces a raw (unnormalized) embedding vector for a text.
type Embedder interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimensionality this embedder produces.
	Dimension() int

	// Model returns the model identifier, used for cache keying.
	Model() string
}
