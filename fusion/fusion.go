// Package fusion merges per-corpus ranked lists into one globally ranked
// list using Reciprocal Rank Fusion (RRF).
package fusion

import (
	"fmt"
	"sort"
)

// Candidate is one entry of a corpus's ranked list. Rank is implied by slice
// position (1-based). Score is the corpus's original similarity score, kept
// for citations.
type Candidate struct {
	ChunkID string
	Score   float64
}

// Source records one corpus's contribution to a fused result.
type Source struct {
	Corpus string
	Rank   int
	Score  float64
}

// Result is one fused entry.
type Result struct {
	ChunkID string
	Score   float64 // RRF score
	Sources []Source
}

// Engine fuses ranked lists with a configured smoothing constant.
//
// Algorithm: score(chunk) = Σ 1/(k + rank_c) over the corpora that list the
// chunk. Absence from a corpus contributes zero, not a penalty. The constant
// is deliberately not defaulted here; deployments disagree on its value, so
// it arrives from configuration.
type Engine struct {
	k int
}

// NewEngine creates a fusion engine. k must be positive.
func NewEngine(k int) (*Engine, error) {
	if k <= 0 {
		return nil, fmt.Errorf("fusion: k must be positive, got %d", k)
	}
	return &Engine{k: k}, nil
}

// K returns the configured smoothing constant.
func (e *Engine) K() int { return e.k }

type accumulator struct {
	result   Result
	bestRank int // lowest contributing rank, corpora visited in sorted order
}

// Fuse merges the per-corpus ranked lists.
//
// Ordering is fully deterministic for identical inputs: RRF score
// descending, then best contributing rank ascending (corpora visited in
// lexicographic order), then chunk ID ascending. Empty input yields an
// empty, non-nil slice. O(Σ|lists|) time, O(distinct chunks) space.
func (e *Engine) Fuse(lists map[string][]Candidate) []Result {
	if len(lists) == 0 {
		return []Result{}
	}

	corpora := make([]string, 0, len(lists))
	for name := range lists {
		corpora = append(corpora, name)
	}
	sort.Strings(corpora)

	acc := make(map[string]*accumulator)
	order := make([]string, 0) // first-seen order, for stable map iteration

	for _, corpus := range corpora {
		seen := make(map[string]struct{}, len(lists[corpus]))
		for i, cand := range lists[corpus] {
			if _, dup := seen[cand.ChunkID]; dup {
				continue // chunk ids are unique per corpus; ignore bad input
			}
			seen[cand.ChunkID] = struct{}{}

			rank := i + 1
			a, ok := acc[cand.ChunkID]
			if !ok {
				a = &accumulator{
					result:   Result{ChunkID: cand.ChunkID},
					bestRank: rank,
				}
				acc[cand.ChunkID] = a
				order = append(order, cand.ChunkID)
			} else if rank < a.bestRank {
				a.bestRank = rank
			}

			a.result.Score += 1.0 / float64(e.k+rank)
			a.result.Sources = append(a.result.Sources, Source{
				Corpus: corpus,
				Rank:   rank,
				Score:  cand.Score,
			})
		}
	}

	fused := make([]*accumulator, 0, len(order))
	for _, id := range order {
		fused = append(fused, acc[id])
	}

	sort.SliceStable(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.result.ChunkID < b.result.ChunkID
	})

	results := make([]Result, len(fused))
	for i, a := range fused {
		results[i] = a.result
	}
	return results
}
