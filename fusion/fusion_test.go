package fusion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEngine_RejectsNonPositiveK(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := NewEngine(k)
		require.Error(t, err)
	}

	e, err := NewEngine(60)
	require.NoError(t, err)
	require.Equal(t, 60, e.K())
}

// The worked example: pdf=[A,B], sas=[B,C], K=60.
// Expected order B > A > C.
func TestFuse_TwoCorpora(t *testing.T) {
	e, err := NewEngine(60)
	require.NoError(t, err)

	results := e.Fuse(map[string][]Candidate{
		"pdf": {{ChunkID: "A", Score: 0.9}, {ChunkID: "B", Score: 0.5}},
		"sas": {{ChunkID: "B", Score: 0.8}, {ChunkID: "C", Score: 0.4}},
	})

	require.Len(t, results, 3)
	require.Equal(t, "B", results[0].ChunkID)
	require.Equal(t, "A", results[1].ChunkID)
	require.Equal(t, "C", results[2].ChunkID)

	require.InDelta(t, 1.0/61+1.0/62, results[0].Score, 1e-9)
	require.InDelta(t, 1.0/61, results[1].Score, 1e-9)
	require.InDelta(t, 1.0/62, results[2].Score, 1e-9)

	// Citations: B contributed from both corpora with original scores kept
	require.Len(t, results[0].Sources, 2)
	require.Equal(t, Source{Corpus: "pdf", Rank: 2, Score: 0.5}, results[0].Sources[0])
	require.Equal(t, Source{Corpus: "sas", Rank: 1, Score: 0.8}, results[0].Sources[1])
}

// Rank 1 in two corpora always beats rank r in one corpus for any K>0.
func TestFuse_DoubleFirstBeatsSingle(t *testing.T) {
	for _, k := range []int{1, 8, 60, 1000} {
		e, err := NewEngine(k)
		require.NoError(t, err)

		results := e.Fuse(map[string][]Candidate{
			"a": {{ChunkID: "both", Score: 1}},
			"b": {{ChunkID: "both", Score: 1}},
			"c": {{ChunkID: "solo", Score: 1}},
		})
		require.Equal(t, "both", results[0].ChunkID, "k=%d", k)
		require.InDelta(t, 2.0/float64(k+1), results[0].Score, 1e-9)
		require.InDelta(t, 1.0/float64(k+1), results[1].Score, 1e-9)
	}
}

func TestFuse_Deterministic(t *testing.T) {
	e, err := NewEngine(8)
	require.NoError(t, err)

	lists := map[string][]Candidate{
		"pdf": {{ChunkID: "x", Score: 0.3}, {ChunkID: "y", Score: 0.2}, {ChunkID: "z", Score: 0.1}},
		"sas": {{ChunkID: "z", Score: 0.9}, {ChunkID: "x", Score: 0.8}},
		"web": {{ChunkID: "y", Score: 0.7}, {ChunkID: "w", Score: 0.6}},
	}

	first := e.Fuse(lists)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, e.Fuse(lists))
	}
}

func TestFuse_TieBreaking(t *testing.T) {
	e, err := NewEngine(60)
	require.NoError(t, err)

	// Two chunks each ranked 1st in exactly one corpus: identical scores.
	// Tie resolves by chunk ID ascending.
	results := e.Fuse(map[string][]Candidate{
		"a": {{ChunkID: "zzz", Score: 1}},
		"b": {{ChunkID: "aaa", Score: 1}},
	})
	require.Equal(t, "aaa", results[0].ChunkID)
	require.Equal(t, "zzz", results[1].ChunkID)
}

func TestFuse_EmptyInput(t *testing.T) {
	e, err := NewEngine(60)
	require.NoError(t, err)

	require.NotNil(t, e.Fuse(nil))
	require.Empty(t, e.Fuse(nil))

	// Corpora present but no hits anywhere: valid, empty result
	results := e.Fuse(map[string][]Candidate{"pdf": nil, "sas": {}})
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestFuse_AbsenceIsNotPenalized(t *testing.T) {
	e, err := NewEngine(10)
	require.NoError(t, err)

	// "only" appears in one of three corpora; its score must be exactly
	// 1/(K+1), with no contribution for the two lists it is absent from.
	results := e.Fuse(map[string][]Candidate{
		"a": {{ChunkID: "only", Score: 1}},
		"b": {{ChunkID: "other", Score: 1}, {ChunkID: "noise", Score: 0.5}},
		"c": {{ChunkID: "other", Score: 1}},
	})

	var only Result
	for _, r := range results {
		if r.ChunkID == "only" {
			only = r
		}
	}
	require.InDelta(t, 1.0/11, only.Score, 1e-9)
	require.Len(t, only.Sources, 1)
}

func TestFuse_DuplicateWithinCorpusIgnored(t *testing.T) {
	e, err := NewEngine(60)
	require.NoError(t, err)

	results := e.Fuse(map[string][]Candidate{
		"a": {{ChunkID: "x", Score: 1}, {ChunkID: "x", Score: 0.9}},
	})
	require.Len(t, results, 1)
	require.InDelta(t, 1.0/61, results[0].Score, 1e-9)
	require.Len(t, results[0].Sources, 1)
}
