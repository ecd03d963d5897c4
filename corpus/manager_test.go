package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragfuse/blobstore"
	"github.com/hupe1980/ragfuse/codec"
	"github.com/hupe1980/ragfuse/index/flat"
	"github.com/hupe1980/ragfuse/manifest"
)

// countingStore counts Get calls so tests can assert download dedup.
type countingStore struct {
	blobstore.BlobStore
	gets atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	return s.BlobStore.Get(ctx, key)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedCorpus writes a complete artifact set for one corpus version and
// returns the matching pointer.
func seedCorpus(t *testing.T, store blobstore.BlobStore, location, version, codecName string, vectors [][]float32, chunkIDs []string) manifest.CorpusPointer {
	t.Helper()

	ctx := context.Background()
	dim := len(vectors[0])

	blob, err := flat.EncodeBlob(dim, vectors)
	require.NoError(t, err)

	comp := codec.MustByName(codecName)
	compressed, err := comp.Compress(blob)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, location+"/"+indexArtifact(comp.Name()), compressed))

	var ids, docs []byte
	for i, id := range chunkIDs {
		ids = append(ids, []byte(fmt.Sprintf(`{"ann_id": %d, "id": %q}`+"\n", i, id))...)
		docs = append(docs, []byte(fmt.Sprintf(`{"id": %q, "text": "text of %s", "metadata": {"corpus": "test"}}`+"\n", id, id))...)
	}

	require.NoError(t, store.Put(ctx, location+"/"+idsArtifact, ids))
	require.NoError(t, store.Put(ctx, location+"/"+docsArtifact, docs))

	return manifest.CorpusPointer{
		Version:   version,
		Location:  location,
		Dimension: dim,
		Count:     len(vectors),
		Codec:     codecName,
	}
}

func TestManagerEnsureLoaded(t *testing.T) {
	ctx := context.Background()

	store := &countingStore{BlobStore: blobstore.NewMemoryStore()}
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}, []string{"pdf-001", "pdf-002", "pdf-003"})

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	cc, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.NoError(t, err)
	require.Equal(t, "pdf", cc.Name)
	require.Equal(t, "v1", cc.Version)
	require.Equal(t, 3, cc.Index.Count())
	require.Equal(t, 3, cc.ChunkCount())

	chunkID, doc, ok := cc.Resolve(1)
	require.True(t, ok)
	require.Equal(t, "pdf-002", chunkID)
	require.Equal(t, "text of pdf-002", doc.Text)
	require.Equal(t, "test", doc.Metadata["corpus"])

	_, _, ok = cc.Resolve(99)
	require.False(t, ok)

	// Fast path: same version means zero further I/O.
	before := store.gets.Load()
	again, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.NoError(t, err)
	require.Same(t, cc, again)
	require.Equal(t, before, store.gets.Load())
}

func TestManagerConcurrentLoadOnce(t *testing.T) {
	ctx := context.Background()

	store := &countingStore{BlobStore: blobstore.NewMemoryStore()}
	ptr := seedCorpus(t, store, "corpora/sas/v1", "v1", "", [][]float32{
		{1, 0},
		{0, 1},
	}, []string{"sas-001", "sas-002"})

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	const callers = 16

	var wg sync.WaitGroup

	results := make([]*CachedCorpus, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.EnsureLoaded(ctx, "sas", ptr)
		}(i)
	}

	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, results[0], results[i])
	}

	// One load means exactly one Get per artifact.
	require.Equal(t, int64(3), store.gets.Load())
}

func TestManagerPartialFailureNotPublished(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{{1, 0}}, []string{"pdf-001"})

	require.NoError(t, store.Delete(ctx, "corpora/pdf/v1/"+docsArtifact))

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	_, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.Error(t, err)

	var fetchErr *ArtifactFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "pdf", fetchErr.Corpus)
	require.Equal(t, "v1", fetchErr.Version)
	require.Equal(t, docsArtifact, fetchErr.Artifact)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	_, ok := m.Get("pdf")
	require.False(t, ok)
	require.Empty(t, m.Loaded())
}

func TestManagerVersionSwap(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	v1 := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{
		{1, 0},
		{0, 1},
	}, []string{"old-001", "old-002"})
	v2 := seedCorpus(t, store, "corpora/pdf/v2", "v2", "", [][]float32{
		{0, 1},
	}, []string{"new-001"})

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	oldCC, err := m.EnsureLoaded(ctx, "pdf", v1)
	require.NoError(t, err)

	newCC, err := m.EnsureLoaded(ctx, "pdf", v2)
	require.NoError(t, err)
	require.NotSame(t, oldCC, newCC)
	require.Equal(t, "v2", newCC.Version)

	current, ok := m.Get("pdf")
	require.True(t, ok)
	require.Same(t, newCC, current)

	// The superseded reference keeps working for in-flight holders.
	hits, err := oldCC.Index.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	chunkID, _, ok := oldCC.Resolve(hits[0].ID)
	require.True(t, ok)
	require.Equal(t, "old-001", chunkID)
}

func TestManagerDiskStaging(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := &countingStore{BlobStore: blobstore.NewMemoryStore()}
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{{1, 0}}, []string{"pdf-001"})

	m := NewManager(store, func(o *ManagerOptions) {
		o.Dir = dir
		o.Logger = quietLogger()
	})

	_, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.NoError(t, err)

	for _, artifact := range []string{indexArtifactBase, idsArtifact, docsArtifact} {
		_, err := os.Stat(filepath.Join(dir, "pdf", "v1", artifact))
		require.NoError(t, err)
	}

	// A fresh manager over the same staging dir loads without touching the
	// store again.
	store.gets.Store(0)

	m2 := NewManager(store, func(o *ManagerOptions) {
		o.Dir = dir
		o.Logger = quietLogger()
	})

	cc, err := m2.EnsureLoaded(ctx, "pdf", ptr)
	require.NoError(t, err)
	require.Equal(t, int64(0), store.gets.Load())
	require.Equal(t, 1, cc.Index.Count())
}

func TestManagerCompressedArtifacts(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "zstd", [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	}, []string{"pdf-001", "pdf-002"})

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	cc, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.NoError(t, err)
	require.Equal(t, 2, cc.Index.Count())
}

func TestManagerDimensionMismatch(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{{1, 0, 0}}, []string{"pdf-001"})
	ptr.Dimension = 768 // manifest disagrees with the blob

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	_, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.Error(t, err)

	var dimErr *flat.ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	require.Equal(t, 768, dimErr.Expected)
	require.Equal(t, 3, dimErr.Actual)

	_, ok := m.Get("pdf")
	require.False(t, ok)
}

func TestManagerInvalidate(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{{1, 0}}, []string{"pdf-001"})

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	cc, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.NoError(t, err)

	m.Invalidate("pdf")

	_, ok := m.Get("pdf")
	require.False(t, ok)

	// The dropped reference stays usable.
	_, doc, ok := cc.Resolve(0)
	require.True(t, ok)
	require.NotEmpty(t, doc.Text)
}

func TestParseIDMapTolerance(t *testing.T) {
	data := []byte(`{"ann_id": 0, "id": "chunk-0"}
not json at all
{"ann_id": 42, "id": "out-of-range"}

{"ann_id": 1, "id": "chunk-1"}
`)

	ids, err := parseIDMap(data, 2, quietLogger())
	require.NoError(t, err)
	require.Equal(t, []string{"chunk-0", "chunk-1"}, ids)
}

func TestParseDocMapTolerance(t *testing.T) {
	data := []byte(`{"id": "chunk-0", "text": "hello", "metadata": {"page": 1}}
{"text": "missing id"}
{broken
{"id": "chunk-1", "text": "world"}
`)

	docs, err := parseDocMap(data, quietLogger())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "hello", docs["chunk-0"].Text)
	require.Equal(t, float64(1), docs["chunk-0"].Metadata["page"])
	require.Nil(t, docs["chunk-1"].Metadata)
}

func TestManagerUnknownCodec(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	ptr := seedCorpus(t, store, "corpora/pdf/v1", "v1", "", [][]float32{{1, 0}}, []string{"pdf-001"})
	ptr.Codec = "snappy"

	m := NewManager(store, func(o *ManagerOptions) { o.Logger = quietLogger() })

	_, err := m.EnsureLoaded(ctx, "pdf", ptr)
	require.Error(t, err)

	var fetchErr *ArtifactFetchError
	require.True(t, errors.As(err, &fetchErr))
}
