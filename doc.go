// Package ragfuse provides a multi-corpus retrieval engine with rank
// fusion.
//
// A manifest in a blob store names a set of corpora, each pointing at an
// immutable, versioned artifact set (vector index, id mapping, document
// mapping). The Retriever loads the corpora, embeds incoming queries,
// searches every corpus exactly (inner product over L2-normalized
// vectors) and merges the per-corpus rankings with Reciprocal Rank
// Fusion into one globally ranked result list with per-corpus citations.
//
// # Quick start
//
//	store := blobstore.NewLocalStore("/data/indexes")
//	embedder, _ := embedding.NewOpenAIEmbedder(apiKey, "text-embedding-3-small", 1536)
//
//	r, err := ragfuse.New(store, "manifest.json", embedder,
//	    ragfuse.WithFusionK(60),
//	    ragfuse.WithCacheDir("/var/cache/ragfuse"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	if _, err := r.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := r.Search(ctx, "what is the refund policy", 5)
//	for _, res := range out.Results {
//	    fmt.Println(res.ChunkID, res.Score, res.Text)
//	}
//
// The retriever keeps serving while a new manifest version loads in the
// background; searches always run against one consistent snapshot.
//
// Backends exist for local directories, in-memory stores (tests), AWS S3
// (blobstore/s3) and MinIO or other S3-compatible object stores
// (blobstore/minio).
package ragfuse
