package flat

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/ragfuse/distance"
)

// Artifact layout: magic, u16 format version, u32 dimension, u32 count,
// then count*dimension little-endian float32 values.
const (
	magic         = "RFX1"
	formatVersion = 1
	headerSize    = 4 + 2 + 4 + 4
)

// EncodeBlob serializes vectors into the flat artifact format.
//
// Vectors are L2-normalized during encoding so the stored block satisfies
// the inner-product-equals-cosine contract. Zero vectors are rejected.
func EncodeBlob(dim int, vectors [][]float32) ([]byte, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("flat: invalid dimension %d", dim)
	}

	buf := make([]byte, headerSize+4*dim*len(vectors))
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:6], formatVersion)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(dim))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(vectors)))

	off := headerSize
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		norm, ok := distance.NormalizeL2Copy(v)
		if !ok {
			return nil, fmt.Errorf("flat: cannot normalize zero vector at row %d", i)
		}
		for _, f := range norm {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
			off += 4
		}
	}
	return buf, nil
}

// Load decodes an artifact blob and validates it against the
// manifest-declared dimension.
func Load(data []byte, declaredDim int) (*Index, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("flat: artifact too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != magic {
		return nil, fmt.Errorf("flat: bad magic %q", data[0:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != formatVersion {
		return nil, fmt.Errorf("flat: unsupported format version %d (expected %d)", v, formatVersion)
	}

	dim := int(binary.LittleEndian.Uint32(data[6:10]))
	count := int(binary.LittleEndian.Uint32(data[10:14]))
	if dim <= 0 {
		return nil, fmt.Errorf("flat: invalid dimension %d", dim)
	}
	if dim != declaredDim {
		return nil, &ErrDimensionMismatch{Expected: declaredDim, Actual: dim}
	}

	want := headerSize + 4*dim*count
	if len(data) != want {
		return nil, fmt.Errorf("flat: artifact size %d does not match header (want %d)", len(data), want)
	}

	vectors := make([]float32, dim*count)
	off := headerSize
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
	}

	return &Index{
		dimension: dim,
		count:     count,
		vectors:   vectors,
	}, nil
}
