// Package flat provides an exact inner-product index over an immutable,
// blob-loaded vector block.
//
// Similarity is the dot product of L2-normalized vectors (equivalent to
// cosine). Vectors are normalized by the artifact producer and queries by the
// caller; the index itself never normalizes. Search is exhaustive: no
// approximation, no training step.
package flat

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/hupe1980/ragfuse/distance"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Hit is a single search result. Rank is implied by slice position (1-based).
type Hit struct {
	// ID is the internal (positional) identifier of the matched vector.
	ID uint32

	// Score is the inner product between the query and the matched vector.
	Score float32
}

// Index holds the decoded vector block. Immutable after Load, so concurrent
// searches need no locking.
type Index struct {
	dimension int
	count     int
	vectors   []float32 // row-major, count*dimension
}

// Dimension returns the vector dimensionality of the index.
func (x *Index) Dimension() int { return x.dimension }

// Count returns the number of vectors in the index.
func (x *Index) Count() int { return x.count }

func (x *Index) vector(id int) []float32 {
	off := id * x.dimension
	return x.vectors[off : off+x.dimension]
}

// candidateHeap keeps the current top-k with the worst candidate on top.
// A candidate is worse when its score is lower, or equal with a higher id.
type candidateHeap []Hit

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ID > h[j].ID
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(v any) { *h = append(*h, v.(Hit)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Search performs an exact exhaustive top-k search.
//
// Results are strictly descending by score; ties break by ascending internal
// id for determinism. The caller supplies an already L2-normalized query.
func (x *Index) Search(q []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(q) != x.dimension {
		return nil, &ErrDimensionMismatch{Expected: x.dimension, Actual: len(q)}
	}
	if x.count == 0 {
		return nil, nil
	}

	actualK := k
	if actualK > x.count {
		actualK = x.count
	}

	top := make(candidateHeap, 0, actualK)

	for id := 0; id < x.count; id++ {
		score := distance.Dot(q, x.vector(id))
		hit := Hit{ID: uint32(id), Score: score}

		if top.Len() < actualK {
			heap.Push(&top, hit)
			continue
		}

		worst := top[0]
		if score > worst.Score || (score == worst.Score && hit.ID < worst.ID) {
			top[0] = hit
			heap.Fix(&top, 0)
		}
	}

	results := make([]Hit, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		results[i] = heap.Pop(&top).(Hit)
	}
	return results, nil
}
