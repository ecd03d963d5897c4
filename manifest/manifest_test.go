package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragfuse/blobstore"
)

func validManifestJSON() []byte {
	return []byte(`{
		"version": "2024-06-01",
		"corpora": {
			"pdf": {"version": "v3", "location": "rag/pdf/v3", "dimension": 1536, "count": 1200},
			"sas": {"version": "v1", "location": "rag/sas/v1", "dimension": 1536, "count": 400, "codec": "zstd"}
		}
	}`)
}

func TestResolver_Fetch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "rag/manifest.json", validManifestJSON()))

	r := NewResolver(store, "rag/manifest.json")
	m, err := r.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-06-01", m.Version)
	require.Len(t, m.Corpora, 2)
	require.Equal(t, "v3", m.Corpora["pdf"].Version)
	require.Equal(t, "zstd", m.Corpora["sas"].Codec)
}

func TestResolver_Fetch_Missing(t *testing.T) {
	r := NewResolver(blobstore.NewMemoryStore(), "rag/manifest.json")

	_, err := r.Fetch(context.Background())
	var me *ManifestError
	require.ErrorAs(t, err, &me)
	require.Equal(t, "fetch", me.Stage)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestResolver_Fetch_Malformed(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "m.json", []byte(`{"version": `)))

	r := NewResolver(store, "m.json")
	_, err := r.Fetch(ctx)
	var me *ManifestError
	require.ErrorAs(t, err, &me)
	require.Equal(t, "decode", me.Stage)
}

func TestResolver_Fetch_Invalid(t *testing.T) {
	ctx := context.Background()

	cases := map[string]string{
		"no corpora":     `{"version": "v1", "corpora": {}}`,
		"empty version":  `{"version": "", "corpora": {"pdf": {"version": "v1", "location": "l", "dimension": 4, "count": 1}}}`,
		"bad dimension":  `{"version": "v1", "corpora": {"pdf": {"version": "v1", "location": "l", "dimension": 0, "count": 1}}}`,
		"negative count": `{"version": "v1", "corpora": {"pdf": {"version": "v1", "location": "l", "dimension": 4, "count": -1}}}`,
		"no location":    `{"version": "v1", "corpora": {"pdf": {"version": "v1", "location": "", "dimension": 4, "count": 1}}}`,
		"unknown codec":  `{"version": "v1", "corpora": {"pdf": {"version": "v1", "location": "l", "dimension": 4, "count": 1, "codec": "brotli"}}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			require.NoError(t, store.Put(ctx, "m.json", []byte(body)))

			_, err := NewResolver(store, "m.json").Fetch(ctx)
			var me *ManifestError
			require.ErrorAs(t, err, &me)
			require.Equal(t, "validate", me.Stage)
		})
	}
}

func TestResolver_CheckVersion(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "m.json", validManifestJSON()))

	r := NewResolver(store, "m.json")
	tok1, err := r.CheckVersion(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tok1)

	tok2, err := r.CheckVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, tok1, tok2)

	// Any content change bumps the token
	require.NoError(t, store.Put(ctx, "m.json", append(validManifestJSON(), '\n')))
	tok3, err := r.CheckVersion(ctx)
	require.NoError(t, err)
	require.NotEqual(t, tok1, tok3)
}

func TestCorpusNames_Sorted(t *testing.T) {
	m := &Manifest{
		Version: "v1",
		Corpora: map[string]CorpusPointer{
			"zeta": {}, "alpha": {}, "mid": {},
		},
	}
	require.Equal(t, []string{"alpha", "mid", "zeta"}, m.CorpusNames())
}
