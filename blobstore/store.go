// Package blobstore abstracts access to the object store holding corpus
// artifacts and the manifest.
//
// Artifacts are immutable per corpus version, so stores only need whole-blob
// reads plus a cheap version probe. Head returns an opaque version token
// (ETag-shaped); callers compare tokens for equality and never parse them.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing immutable data blobs.
type BlobStore interface {
	// Get reads the entire blob.
	Get(ctx context.Context, key string) ([]byte, error)

	// Head returns the blob's version token without downloading the payload.
	Head(ctx context.Context, key string) (string, error)

	// Put writes a blob atomically. Used by index producers and tests;
	// the retrieval path never writes.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys matching the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
