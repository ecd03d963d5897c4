package ragfuse

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ragfuse/blobstore"
	"github.com/hupe1980/ragfuse/manifest"
)

var (
	// ErrNotReady is returned when Search is called before a successful
	// Initialize.
	ErrNotReady = errors.New("retriever not ready")

	// ErrServiceUnavailable is returned when no corpus is currently
	// available to serve a search.
	ErrServiceUnavailable = errors.New("no corpus available")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("retriever closed")

	// ErrInvalidK is returned when the requested result count is not
	// positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrManifestNotFound is returned when the manifest key does not exist
	// in the blob store.
	ErrManifestNotFound = errors.New("manifest not found")
)

// EmbeddingError wraps a query embedding failure so callers can tell it
// apart from corpus and index errors.
//
// The original underlying error can be accessed via errors.Unwrap.
type EmbeddingError struct {
	Model string
	cause error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding query with model %q: %v", e.Model, e.cause)
}

func (e *EmbeddingError) Unwrap() error { return e.cause }

// InitializationError aggregates the per-corpus failures of an Initialize
// that loaded nothing.
//
// The individual errors can be accessed via Errors or errors.Is/As through
// Unwrap.
type InitializationError struct {
	ManifestVersion string
	Errors          map[string]error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("manifest %s: all %d corpora failed to load", e.ManifestVersion, len(e.Errors))
}

func (e *InitializationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		errs = append(errs, err)
	}

	return errs
}

// translateError normalizes errors crossing the facade boundary. Typed
// per-layer errors (manifest, corpus, index) pass through unchanged; a
// missing manifest blob is unified under ErrManifestNotFound.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var me *manifest.ManifestError
	if errors.As(err, &me) && errors.Is(me, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrManifestNotFound, err)
	}

	return err
}
