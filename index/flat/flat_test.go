package flat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustBlob(t *testing.T, dim int, vectors [][]float32) []byte {
	t.Helper()
	blob, err := EncodeBlob(dim, vectors)
	require.NoError(t, err)
	return blob
}

func TestEncodeLoad_Roundtrip(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 3, 4}, // normalized on encode
	}
	blob := mustBlob(t, 4, vectors)

	idx, err := Load(blob, 4)
	require.NoError(t, err)
	require.Equal(t, 4, idx.Dimension())
	require.Equal(t, 3, idx.Count())

	// Row 2 was normalized to unit length
	v := idx.vector(2)
	require.InDelta(t, 0.6, float64(v[2]), 1e-6)
	require.InDelta(t, 0.8, float64(v[3]), 1e-6)
}

func TestEncodeBlob_Rejects(t *testing.T) {
	_, err := EncodeBlob(0, nil)
	require.Error(t, err)

	_, err = EncodeBlob(3, [][]float32{{1, 2}})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)

	_, err = EncodeBlob(2, [][]float32{{0, 0}})
	require.Error(t, err)
}

func TestLoad_DeclaredDimensionMismatch(t *testing.T) {
	blob := mustBlob(t, 4, [][]float32{{1, 0, 0, 0}})

	_, err := Load(blob, 8)
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	require.Equal(t, 8, dm.Expected)
	require.Equal(t, 4, dm.Actual)
}

func TestLoad_Corrupt(t *testing.T) {
	blob := mustBlob(t, 4, [][]float32{{1, 0, 0, 0}})

	_, err := Load(blob[:8], 4)
	require.Error(t, err)

	bad := append([]byte("XXXX"), blob[4:]...)
	_, err = Load(bad, 4)
	require.Error(t, err)

	_, err = Load(blob[:len(blob)-4], 4)
	require.Error(t, err)
}

func TestSearch_OrderingAndTies(t *testing.T) {
	// Unit vectors along axes; query on axis 0 with a small axis-1 component.
	blob := mustBlob(t, 3, [][]float32{
		{0, 1, 0}, // id 0: score 0.1 vs query
		{1, 0, 0}, // id 1: score ~0.995
		{0, 0, 1}, // id 2: score 0
		{1, 0, 0}, // id 3: duplicate of id 1 -> tie, higher id
	})
	idx, err := Load(blob, 3)
	require.NoError(t, err)

	q := []float32{0.9950372, 0.0995037, 0} // normalized (10,1,0)
	hits, err := idx.Search(q, 10)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	// Tie between id 1 and id 3 resolves to ascending id
	require.Equal(t, uint32(1), hits[0].ID)
	require.Equal(t, uint32(3), hits[1].ID)
	require.Equal(t, uint32(0), hits[2].ID)
	require.Equal(t, uint32(2), hits[3].ID)

	for i := 1; i < len(hits); i++ {
		require.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearch_KTruncation(t *testing.T) {
	blob := mustBlob(t, 2, [][]float32{
		{1, 0}, {0, 1}, {1, 1},
	})
	idx, err := Load(blob, 2)
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, uint32(0), hits[0].ID)
}

func TestSearch_Errors(t *testing.T) {
	blob := mustBlob(t, 2, [][]float32{{1, 0}})
	idx, err := Load(blob, 2)
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0}, 0)
	require.ErrorIs(t, err, ErrInvalidK)

	_, err = idx.Search([]float32{1, 0, 0}, 1)
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
}

func TestSearch_Deterministic(t *testing.T) {
	vectors := make([][]float32, 50)
	for i := range vectors {
		vectors[i] = []float32{float32(i%7) + 1, float32(i%3) + 1, float32(i%5) + 1}
	}
	idx, err := Load(mustBlob(t, 3, vectors), 3)
	require.NoError(t, err)

	q := []float32{0.5773503, 0.5773503, 0.5773503}
	first, err := idx.Search(q, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := idx.Search(q, 10)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
