package filestore

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSize is matched by *SizeError.
	ErrInvalidSize = errors.New("invalid size")

	// ErrHashMismatch is matched by *HashMismatchError.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrChunkNotFound means a chunk other than the first is missing,
	// so the stored content is incomplete.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrCorrupt means a stored record disagrees with the data it describes.
	ErrCorrupt = errors.New("corrupt content")

	// ErrContentNotFound is returned by Rechunk for unknown content.
	ErrContentNotFound = errors.New("content not found")
)

// SizeError reports content whose length differs from what the caller declared.
type SizeError struct {
	Expected, Actual uint64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("invalid size: expected %d, got %d", e.Expected, e.Actual)
}

func (e *SizeError) Is(target error) bool { return target == ErrInvalidSize }

// HashMismatchError reports content whose computed id
// differs from the one the caller supplied.
type HashMismatchError struct {
	Kind             string
	Expected, Actual string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: expected %s, got %s", e.Kind, e.Expected, e.Actual)
}

func (e *HashMismatchError) Is(target error) bool { return target == ErrHashMismatch }
