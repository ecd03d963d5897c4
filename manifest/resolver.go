package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/ragfuse/blobstore"
)

// ManifestError indicates the manifest could not be fetched, decoded, or
// validated. It is fatal to initialization.
type ManifestError struct {
	Key   string // blob key of the manifest
	Stage string // "fetch", "decode" or "validate"
	Err   error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s (%s): %v", e.Stage, e.Key, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// Resolver fetches and probes the manifest blob.
type Resolver struct {
	store blobstore.BlobStore
	key   string
}

// NewResolver creates a resolver for the manifest at the given blob key.
func NewResolver(store blobstore.BlobStore, key string) *Resolver {
	return &Resolver{store: store, key: key}
}

// Key returns the manifest's blob key.
func (r *Resolver) Key() string { return r.key }

// Fetch retrieves, parses and validates the manifest.
func (r *Resolver) Fetch(ctx context.Context) (*Manifest, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, &ManifestError{Key: r.key, Stage: "fetch", Err: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Key: r.key, Stage: "decode", Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &ManifestError{Key: r.key, Stage: "validate", Err: err}
	}
	return &m, nil
}

// CheckVersion returns the manifest blob's version token without downloading
// the payload. Warm invocations compare tokens to detect version bumps.
func (r *Resolver) CheckVersion(ctx context.Context) (string, error) {
	token, err := r.store.Head(ctx, r.key)
	if err != nil {
		return "", &ManifestError{Key: r.key, Stage: "fetch", Err: err}
	}
	return token, nil
}
