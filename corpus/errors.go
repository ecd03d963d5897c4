package corpus

import (
	"errors"
	"fmt"
)

// ErrMappingCorruption tags per-hit id/doc mapping misses. It is logged and
// the hit dropped; it never fails the overall query.
var ErrMappingCorruption = errors.New("mapping corruption")

// ArtifactFetchError indicates one corpus version's artifacts could not be
// retrieved or decoded. Fatal for that corpus only; the corpus stays
// unavailable until a later load succeeds.
type ArtifactFetchError struct {
	Corpus   string
	Version  string
	Artifact string // artifact file name, or "" when the whole set failed
	Err      error
}

func (e *ArtifactFetchError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("corpus %s@%s: %v", e.Corpus, e.Version, e.Err)
	}
	return fmt.Sprintf("corpus %s@%s: artifact %s: %v", e.Corpus, e.Version, e.Artifact, e.Err)
}

func (e *ArtifactFetchError) Unwrap() error { return e.Err }
