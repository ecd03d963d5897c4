package codec

import "github.com/klauspost/compress/zstd"

// Zstd compresses artifacts with Zstandard.
//
// The default choice for index blobs: good ratio at high decode speed,
// which is what the cold-start path cares about.
type Zstd struct{}

// Compress encodes data as a zstd stream.
func (Zstd) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	out := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// Decompress decodes a zstd stream.
func (Zstd) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// Name returns the unique name of the codec ("zstd").
func (Zstd) Name() string { return "zstd" }
