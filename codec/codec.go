// Package codec centralizes artifact compression.
//
// Codec selection is a breaking-change boundary: artifacts written with one
// codec only decode with the same codec. The manifest therefore records the
// codec name per corpus, and loaders resolve it via ByName.
package codec

import "fmt"

// Compressor encodes/decodes artifact payloads.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// ByName returns a built-in compressor by its stable name.
//
// The empty name maps to None so manifests written without a codec field
// keep working.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "", "none":
		return None{}, true
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// MustByName is a helper for tests and tools with known-valid names.
func MustByName(name string) Compressor {
	c, ok := ByName(name)
	if !ok {
		panic(fmt.Errorf("unknown codec %q", name))
	}
	return c
}

// None is the identity compressor.
type None struct{}

// Compress returns data unchanged.
func (None) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns data unchanged.
func (None) Decompress(data []byte) ([]byte, error) { return data, nil }

// Name returns the unique name of the codec ("none").
func (None) Name() string { return "none" }
