package corpus

import "errors"

var (
	// ErrInvalidPassage is returned when a passage violates a corpus invariant.
	ErrInvalidPassage = errors.New("invalid passage")
	// ErrDimensionMismatch is returned when embeddings differ in length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyCorpus is returned when a store is built without passages.
	ErrEmptyCorpus = errors.New("corpus is empty")
)
