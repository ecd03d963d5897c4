// Package corpus loads and caches per-corpus artifact sets (vector index,
// id mapping, doc mapping) keyed by manifest version.
//
// A CachedCorpus is built in one pass and never mutated after it becomes
// visible; a version change produces a new CachedCorpus that replaces the
// old reference atomically. In-flight searches keep whichever reference
// they captured.
package corpus

import (
	"github.com/hupe1980/ragfuse/index/flat"
)

// Document is the text and metadata payload for one chunk.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// CachedCorpus is one fully loaded corpus version.
type CachedCorpus struct {
	Name    string
	Version string
	Index   *flat.Index

	ids  []string            // internal id -> chunk id (positional)
	docs map[string]Document // chunk id -> document
}

// Resolve maps an internal search-result id to its chunk id and document.
// ok is false when either mapping entry is missing (artifact corruption);
// callers drop the individual hit and keep going.
func (c *CachedCorpus) Resolve(internalID uint32) (chunkID string, doc Document, ok bool) {
	if int(internalID) >= len(c.ids) {
		return "", Document{}, false
	}
	chunkID = c.ids[internalID]
	if chunkID == "" {
		return "", Document{}, false
	}
	doc, ok = c.docs[chunkID]
	if !ok {
		return "", Document{}, false
	}
	return chunkID, doc, true
}

// ChunkCount returns the number of chunks with a document mapping.
func (c *CachedCorpus) ChunkCount() int { return len(c.docs) }
