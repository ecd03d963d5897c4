// Package manifest models the pointer document naming the current version of
// every corpus, and resolves it from the blob store.
package manifest

import (
	"fmt"
	"sort"

	"github.com/hupe1980/ragfuse/codec"
)

// CorpusPointer names where one corpus version's artifacts live and what the
// loader must find there.
type CorpusPointer struct {
	Version   string `json:"version"`
	Location  string `json:"location"` // key prefix inside the blob store
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
	Codec     string `json:"codec,omitempty"` // artifact compression, "" = none
}

// Manifest is the pointer document for all corpora.
type Manifest struct {
	Version string                   `json:"version"`
	Corpora map[string]CorpusPointer `json:"corpora"`
}

// Validate checks structural invariants. A manifest that fails validation is
// treated as missing: the retriever cannot serve from it.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest version is empty")
	}
	if len(m.Corpora) == 0 {
		return fmt.Errorf("manifest names no corpora")
	}
	for name, ptr := range m.Corpora {
		if name == "" {
			return fmt.Errorf("manifest contains an unnamed corpus")
		}
		if ptr.Version == "" {
			return fmt.Errorf("corpus %q: version is empty", name)
		}
		if ptr.Location == "" {
			return fmt.Errorf("corpus %q: location is empty", name)
		}
		if ptr.Dimension <= 0 {
			return fmt.Errorf("corpus %q: invalid dimension %d", name, ptr.Dimension)
		}
		if ptr.Count < 0 {
			return fmt.Errorf("corpus %q: invalid count %d", name, ptr.Count)
		}
		if _, ok := codec.ByName(ptr.Codec); !ok {
			return fmt.Errorf("corpus %q: unknown codec %q", name, ptr.Codec)
		}
	}
	return nil
}

// CorpusNames returns the corpus names in sorted order. All iteration over
// corpora goes through this so downstream ordering is reproducible.
func (m *Manifest) CorpusNames() []string {
	names := make([]string, 0, len(m.Corpora))
	for name := range m.Corpora {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
