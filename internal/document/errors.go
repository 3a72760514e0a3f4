package document

import "errors"

// Sentinel errors for document operations. Check with errors.Is().
var (
	// ErrNotFound indicates the document does not exist or belongs to a
	// different owner. The two cases are deliberately indistinguishable so
	// callers cannot probe for other owners' documents.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidChunkSet indicates a chunk set whose indices are not
	// 0-based and contiguous, or whose embeddings have the wrong dimension.
	ErrInvalidChunkSet = errors.New("invalid chunk set")
)
