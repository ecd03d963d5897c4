package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hupe1980/ragfuse/blobstore"
	"github.com/hupe1980/ragfuse/codec"
	"github.com/hupe1980/ragfuse/index/flat"
	"github.com/hupe1980/ragfuse/manifest"
)

// Artifact file names under a corpus version's location prefix.
const (
	indexArtifactBase = "index.flat"
	idsArtifact       = "ids.jsonl"
	docsArtifact      = "docs.jsonl"
)

// indexArtifact returns the index file name, suffixed with the codec name
// when the blob is compressed.
func indexArtifact(codecName string) string {
	if codecName == "" || codecName == "none" {
		return indexArtifactBase
	}
	return indexArtifactBase + "." + codecName
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Dir is a local staging directory for downloaded artifacts. Staged
	// files are reused across process restarts because version directories
	// are immutable. Empty disables disk staging.
	Dir string

	// Limiter throttles artifact downloads (one token per blob fetch).
	// Nil means unthrottled.
	Limiter *rate.Limiter

	// Logger receives load progress and mapping warnings.
	Logger *slog.Logger
}

// Manager loads corpus artifact sets from a blob store and caches one
// CachedCorpus per corpus name, keyed by version.
//
// Loads for the same (corpus, version) are single-flighted: concurrent
// EnsureLoaded calls share one download. A new version is built completely
// off to the side and only then published, so readers either see the prior
// version or the new one, never a partial state.
type Manager struct {
	store   blobstore.BlobStore
	dir     string
	limiter *rate.Limiter
	logger  *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	cached map[string]*CachedCorpus
}

// NewManager creates a Manager reading from the given store.
func NewManager(store blobstore.BlobStore, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Logger: slog.Default(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		store:   store,
		dir:     opts.Dir,
		limiter: opts.Limiter,
		logger:  opts.Logger,
		cached:  make(map[string]*CachedCorpus),
	}
}

// EnsureLoaded returns the cached corpus for the pointer's version, loading
// it first if needed. The fast path (version already cached) does no I/O.
func (m *Manager) EnsureLoaded(ctx context.Context, name string, ptr manifest.CorpusPointer) (*CachedCorpus, error) {
	if cc, ok := m.lookup(name, ptr.Version); ok {
		return cc, nil
	}

	v, err, _ := m.group.Do(name+"@"+ptr.Version, func() (any, error) {
		// A concurrent caller may have published while we waited.
		if cc, ok := m.lookup(name, ptr.Version); ok {
			return cc, nil
		}

		cc, err := m.load(ctx, name, ptr)
		if err != nil {
			return nil, err
		}

		m.publish(cc)

		return cc, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*CachedCorpus), nil
}

// Get returns the currently published corpus, if any.
func (m *Manager) Get(name string) (*CachedCorpus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cc, ok := m.cached[name]

	return cc, ok
}

// Loaded returns a snapshot of all currently published corpora.
func (m *Manager) Loaded() map[string]*CachedCorpus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*CachedCorpus, len(m.cached))
	for name, cc := range m.cached {
		out[name] = cc
	}

	return out
}

// Invalidate drops the published entry for a corpus. Existing references
// held by in-flight searches stay usable.
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cached, name)
}

func (m *Manager) lookup(name, version string) (*CachedCorpus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cc, ok := m.cached[name]
	if !ok || cc.Version != version {
		return nil, false
	}

	return cc, true
}

// publish swaps the corpus entry and removes the superseded version's
// staging directory. Old in-memory references stay valid until their
// holders drop them.
func (m *Manager) publish(cc *CachedCorpus) {
	m.mu.Lock()
	old := m.cached[cc.Name]
	m.cached[cc.Name] = cc
	m.mu.Unlock()

	if old != nil && old.Version != cc.Version && m.dir != "" {
		_ = os.RemoveAll(filepath.Join(m.dir, cc.Name, old.Version))
	}

	m.logger.Info("corpus published",
		slog.String("corpus", cc.Name),
		slog.String("version", cc.Version),
		slog.Int("vectors", cc.Index.Count()),
		slog.Int("documents", len(cc.docs)))
}

// load builds a CachedCorpus from the three artifacts. Nothing becomes
// visible to readers until the whole set decodes.
func (m *Manager) load(ctx context.Context, name string, ptr manifest.CorpusPointer) (*CachedCorpus, error) {
	comp, ok := codec.ByName(ptr.Codec)
	if !ok {
		return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Err: fmt.Errorf("unknown codec %q", ptr.Codec)}
	}

	indexName := indexArtifact(comp.Name())

	raw, err := m.fetch(ctx, name, ptr, indexName)
	if err != nil {
		return nil, err
	}

	blob, err := comp.Decompress(raw)
	if err != nil {
		return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Artifact: indexName, Err: err}
	}

	idx, err := flat.Load(blob, ptr.Dimension)
	if err != nil {
		return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Artifact: indexName, Err: err}
	}

	if idx.Count() != ptr.Count {
		m.logger.Warn("manifest count disagrees with index",
			slog.String("corpus", name),
			slog.Int("manifest", ptr.Count),
			slog.Int("index", idx.Count()))
	}

	idsRaw, err := m.fetch(ctx, name, ptr, idsArtifact)
	if err != nil {
		return nil, err
	}

	ids, err := parseIDMap(idsRaw, idx.Count(), m.logger.With(slog.String("corpus", name)))
	if err != nil {
		return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Artifact: idsArtifact, Err: err}
	}

	docsRaw, err := m.fetch(ctx, name, ptr, docsArtifact)
	if err != nil {
		return nil, err
	}

	docs, err := parseDocMap(docsRaw, m.logger.With(slog.String("corpus", name)))
	if err != nil {
		return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Artifact: docsArtifact, Err: err}
	}

	return &CachedCorpus{
		Name:    name,
		Version: ptr.Version,
		Index:   idx,
		ids:     ids,
		docs:    docs,
	}, nil
}

// fetch reads one artifact, preferring the local staging copy. Staging
// failures are non-fatal; the in-memory bytes are what matters.
func (m *Manager) fetch(ctx context.Context, name string, ptr manifest.CorpusPointer, artifact string) ([]byte, error) {
	if m.dir != "" {
		local := filepath.Join(m.dir, name, ptr.Version, artifact)
		if data, err := os.ReadFile(local); err == nil {
			return data, nil
		}
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Artifact: artifact, Err: err}
		}
	}

	key := path.Join(ptr.Location, artifact)

	data, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, &ArtifactFetchError{Corpus: name, Version: ptr.Version, Artifact: artifact, Err: err}
	}

	if m.dir != "" {
		if err := m.stage(name, ptr.Version, artifact, data); err != nil {
			m.logger.Warn("staging artifact failed",
				slog.String("corpus", name),
				slog.String("artifact", artifact),
				slog.String("error", err.Error()))
		}
	}

	return data, nil
}

// stage writes the artifact into the version directory via temp file +
// rename, so a crash never leaves a truncated staged file behind.
func (m *Manager) stage(name, version, artifact string, data []byte) error {
	dir := filepath.Join(m.dir, name, version)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+artifact+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, artifact))
}
