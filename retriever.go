package ragfuse

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ragfuse/blobstore"
	"github.com/hupe1980/ragfuse/corpus"
	"github.com/hupe1980/ragfuse/distance"
	"github.com/hupe1980/ragfuse/embedding"
	"github.com/hupe1980/ragfuse/fusion"
	"github.com/hupe1980/ragfuse/manifest"
)

// Status is the retriever lifecycle state.
type Status int32

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
	StatusFailed
	StatusReloading
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusReloading:
		return "reloading"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// SearchResult is one fused, resolved result.
type SearchResult struct {
	ChunkID  string
	Text     string
	Metadata map[string]any
	Score    float64
	Sources  []fusion.Source
}

// SearchOutput carries the ranked results plus the manifest corpora that
// could not contribute to this search.
type SearchOutput struct {
	Results        []SearchResult
	SkippedCorpora []string
}

// retrieverSnapshot is the immutable state one search operates on. A new
// manifest version produces a whole new snapshot; it is swapped in via
// atomic pointer so in-flight searches keep the one they captured.
type retrieverSnapshot struct {
	manifestVersion string
	versionToken    string
	manifest        *manifest.Manifest
	corpora         map[string]*corpus.CachedCorpus
	failed          map[string]error
	skipped         []string // manifest corpora not in corpora, sorted
}

// Retriever is the multi-corpus retrieval facade: it resolves the manifest,
// keeps per-corpus indexes cached, embeds queries, fans searches out over
// the loaded corpora and fuses the ranked lists.
type Retriever struct {
	resolver *manifest.Resolver
	manager  *corpus.Manager
	embedder embedding.Embedder
	fuser    *fusion.Engine
	opts     options

	mu    sync.Mutex // serializes lifecycle transitions
	state atomic.Int32

	snapshot  atomic.Pointer[retrieverSnapshot]
	initErrs  map[string]error // per-corpus errors of a failed Initialize
	reloading atomic.Bool
}

// New creates a Retriever reading the manifest at manifestKey from store.
// Call Initialize before Search.
func New(store blobstore.BlobStore, manifestKey string, embedder embedding.Embedder, optFns ...Option) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("ragfuse: store must not be nil")
	}

	if manifestKey == "" {
		return nil, fmt.Errorf("ragfuse: manifest key must not be empty")
	}

	if embedder == nil {
		return nil, fmt.Errorf("ragfuse: embedder must not be nil")
	}

	opts := applyOptions(optFns)

	fuser, err := fusion.NewEngine(opts.fusionK)
	if err != nil {
		return nil, err
	}

	manager := corpus.NewManager(store, func(o *corpus.ManagerOptions) {
		o.Dir = opts.cacheDir
		o.Limiter = opts.downloadLimiter
		o.Logger = opts.logger.Logger
	})

	return &Retriever{
		resolver: manifest.NewResolver(store, manifestKey),
		manager:  manager,
		embedder: embedder,
		fuser:    fuser,
		opts:     opts,
	}, nil
}

// Status returns the current lifecycle state.
func (r *Retriever) Status() Status {
	return Status(r.state.Load())
}

// ManifestVersion returns the manifest version the current snapshot was
// built from, or "" before initialization.
func (r *Retriever) ManifestVersion() string {
	if snap := r.snapshot.Load(); snap != nil {
		return snap.manifestVersion
	}

	return ""
}

// CorpusErrors returns the per-corpus load errors of the current snapshot
// (or of the failed initialization attempt). The map is a copy.
func (r *Retriever) CorpusErrors() map[string]error {
	var src map[string]error

	if snap := r.snapshot.Load(); snap != nil {
		src = snap.failed
	} else {
		r.mu.Lock()
		src = r.initErrs
		r.mu.Unlock()
	}

	out := make(map[string]error, len(src))
	for name, err := range src {
		out[name] = err
	}

	return out
}

// Initialize resolves the manifest and loads all corpora. It is idempotent
// and safe for concurrent use: callers serialize, and once the retriever
// is ready further calls return immediately.
//
// The retriever becomes ready when at least one corpus loads; it fails only
// when every corpus fails, returning an *InitializationError that retains
// the per-corpus causes. A later call retries after a failure.
func (r *Retriever) Initialize(ctx context.Context) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch Status(r.state.Load()) {
	case StatusClosed:
		return StatusClosed, ErrClosed
	case StatusReady, StatusReloading:
		return StatusReady, nil
	}

	r.state.Store(int32(StatusLoading))

	snap, err := r.buildSnapshot(ctx)
	if err != nil {
		r.state.Store(int32(StatusFailed))

		if snap != nil {
			r.initErrs = snap.failed
		}

		return StatusFailed, translateError(err)
	}

	r.snapshot.Store(snap)
	r.initErrs = nil
	r.state.Store(int32(StatusReady))

	return StatusReady, nil
}

// Reload re-resolves the manifest and builds a fresh snapshot, publishing
// it only when at least one corpus loads. The previous snapshot keeps
// serving searches throughout.
func (r *Retriever) Reload(ctx context.Context) error {
	r.mu.Lock()

	switch Status(r.state.Load()) {
	case StatusClosed:
		r.mu.Unlock()
		return ErrClosed
	case StatusReady:
	default:
		r.mu.Unlock()
		return ErrNotReady
	}

	r.state.Store(int32(StatusReloading))
	r.mu.Unlock()

	prev := r.snapshot.Load()

	start := time.Now()
	snap, err := r.buildSnapshot(ctx)
	r.opts.metricsCollector.RecordReload(time.Since(start), err)

	r.mu.Lock()
	defer r.mu.Unlock()

	if Status(r.state.Load()) == StatusClosed {
		return ErrClosed
	}

	// Success or failure, the retriever goes back to ready: a failed
	// reload keeps the previous snapshot current.
	r.state.Store(int32(StatusReady))

	var fromVersion string
	if prev != nil {
		fromVersion = prev.manifestVersion
	}

	if err != nil {
		r.opts.logger.LogReload(ctx, fromVersion, "", err)

		return translateError(err)
	}

	r.snapshot.Store(snap)
	r.opts.logger.LogReload(ctx, fromVersion, snap.manifestVersion, nil)

	return nil
}

// Search embeds the query, searches every loaded corpus in parallel, fuses
// the ranked lists and returns the top topK fused results.
//
// Corpora listed in the manifest but not currently loaded are reported in
// SkippedCorpora rather than failing the query. The search runs entirely
// against the snapshot captured at entry; a concurrent reload never mixes
// versions within one query.
func (r *Retriever) Search(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	start := time.Now()

	out, err := r.search(ctx, query, topK)

	elapsed := time.Since(start)
	r.opts.metricsCollector.RecordSearch(topK, elapsed, err)

	results, skipped := 0, 0
	if out != nil {
		results, skipped = len(out.Results), len(out.SkippedCorpora)
	}
	r.opts.logger.LogSearch(ctx, topK, results, skipped, elapsed, err)

	return out, err
}

func (r *Retriever) search(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	if topK <= 0 {
		return nil, ErrInvalidK
	}

	switch Status(r.state.Load()) {
	case StatusReady, StatusReloading:
	case StatusClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotReady
	}

	snap := r.snapshot.Load()
	if snap == nil {
		return nil, ErrNotReady
	}

	if r.opts.freshnessProbe {
		r.maybeReload(ctx, snap)
	}

	if len(snap.corpora) == 0 {
		return nil, ErrServiceUnavailable
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Model: r.embedder.Model(), cause: err}
	}

	if !distance.NormalizeL2InPlace(vec) {
		return nil, &EmbeddingError{Model: r.embedder.Model(), cause: fmt.Errorf("embedder returned a zero vector")}
	}

	perCorpusK := r.opts.perCorpusK
	if perCorpusK <= 0 {
		perCorpusK = topK
	}

	var (
		listsMu sync.Mutex
		lists   = make(map[string][]fusion.Candidate, len(snap.corpora))
		docs    = make(map[string]corpus.Document)
		errored []string
	)

	g, gctx := errgroup.WithContext(ctx)

	for name, cc := range snap.corpora {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			hits, err := cc.Index.Search(vec, perCorpusK)
			if err != nil {
				// A corpus that cannot serve this query (e.g. its
				// dimensionality differs from the embedder's) is skipped,
				// not fatal.
				r.opts.logger.WarnContext(gctx, "corpus search failed",
					"corpus", name, "error", err)

				listsMu.Lock()
				errored = append(errored, name)
				listsMu.Unlock()

				return nil
			}

			cands := make([]fusion.Candidate, 0, len(hits))

			listsMu.Lock()
			defer listsMu.Unlock()

			for _, hit := range hits {
				chunkID, doc, ok := cc.Resolve(hit.ID)
				if !ok {
					r.opts.logger.LogMappingCorruption(gctx, name, hit.ID)
					continue
				}

				cands = append(cands, fusion.Candidate{
					ChunkID: chunkID,
					Score:   float64(hit.Score),
				})

				if _, exists := docs[chunkID]; !exists {
					docs[chunkID] = doc
				}
			}

			lists[name] = cands

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, translateError(err)
	}

	fused := r.fuser.Fuse(lists)
	r.opts.logger.LogFusion(ctx, len(lists), len(docs), len(fused))

	if len(fused) > topK {
		fused = fused[:topK]
	}

	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		doc := docs[f.ChunkID]

		results = append(results, SearchResult{
			ChunkID:  f.ChunkID,
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Score:    f.Score,
			Sources:  f.Sources,
		})
	}

	skipped := append([]string(nil), snap.skipped...)
	skipped = append(skipped, errored...)
	sort.Strings(skipped)

	return &SearchOutput{
		Results:        results,
		SkippedCorpora: skipped,
	}, nil
}

// Close releases the snapshot. In-flight searches finish against the
// references they hold.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if Status(r.state.Load()) == StatusClosed {
		return nil
	}

	r.state.Store(int32(StatusClosed))
	r.snapshot.Store(nil)

	return nil
}

// maybeReload compares the manifest version token against the snapshot's
// and triggers at most one async reload on change. Probe failures are
// ignored; the next search probes again.
func (r *Retriever) maybeReload(ctx context.Context, snap *retrieverSnapshot) {
	token, err := r.resolver.CheckVersion(ctx)
	if err != nil || token == snap.versionToken {
		return
	}

	if !r.reloading.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer r.reloading.Store(false)

		// Detached from the triggering search's lifetime on purpose.
		if err := r.Reload(context.Background()); err != nil {
			r.opts.logger.Warn("async reload failed", "error", err)
		}
	}()
}

// buildSnapshot fetches the manifest and loads all its corpora in
// parallel. It returns an error only when nothing loaded; partial success
// yields a snapshot with the failures recorded.
func (r *Retriever) buildSnapshot(ctx context.Context) (*retrieverSnapshot, error) {
	token, err := r.resolver.CheckVersion(ctx)
	if err != nil {
		return nil, err
	}

	mf, err := r.resolver.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		corpora = make(map[string]*corpus.CachedCorpus, len(mf.Corpora))
		failed  = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.loadConcurrency > 0 {
		g.SetLimit(r.opts.loadConcurrency)
	}

	for _, name := range mf.CorpusNames() {
		ptr := mf.Corpora[name]

		g.Go(func() error {
			start := time.Now()

			cc, err := r.manager.EnsureLoaded(gctx, name, ptr)

			r.opts.metricsCollector.RecordCorpusLoad(name, time.Since(start), err)
			r.opts.logger.LogCorpusLoad(gctx, name, ptr.Version, err)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed[name] = err
				return nil // a single corpus failure never aborts the rest
			}

			corpora[name] = cc

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	skipped := make([]string, 0)
	for _, name := range mf.CorpusNames() {
		if _, ok := corpora[name]; !ok {
			skipped = append(skipped, name)
		}
	}

	snap := &retrieverSnapshot{
		manifestVersion: mf.Version,
		versionToken:    token,
		manifest:        mf,
		corpora:         corpora,
		failed:          failed,
		skipped:         skipped,
	}

	if len(corpora) == 0 {
		return snap, &InitializationError{ManifestVersion: mf.Version, Errors: failed}
	}

	return snap, nil
}
