package scm

import (
	"context"

	"github.com/pkg/errors"
)

// Blobstore is a key-value store of byte blobs.
//
// Once Put returns successfully,
// a Get of the same key on the same Blobstore returns the stored bytes.
// Put replaces any blob already at the key.
// Most keys are derived from their content, so a replacement normally
// writes the same bytes; Filestore.Rechunk relies on real replacement.
type Blobstore interface {
	// Get gets the blob stored at key.
	// An absent key is reported with ok == false and a nil error.
	Get(ctx context.Context, key string) (b []byte, ok bool, err error)

	// Put stores a blob at key, replacing any blob already there.
	Put(ctx context.Context, key string, value []byte) error

	// IsPresent tells whether key has a blob.
	IsPresent(ctx context.Context, key string) (bool, error)

	// AssertPresent returns an error wrapping ErrNotFound if key has no blob.
	AssertPresent(ctx context.Context, key string) error
}

// Lister is implemented by Blobstores that can enumerate their keys.
type Lister interface {
	// ListKeys calls a function for each key in the store in lexicographic order,
	// beginning with the first key _after_ start.
	//
	// The calls reflect at least the set of keys
	// known at the moment ListKeys was called.
	// It is unspecified whether later changes,
	// that happen concurrently with ListKeys,
	// are reflected.
	//
	// If the callback function returns an error,
	// ListKeys exits with that error.
	ListKeys(ctx context.Context, start string, f func(key string) error) error
}

// ErrNotFound is the error returned
// when a required key is absent.
var ErrNotFound = errors.New("not found")

// AssertPresent implements Blobstore.AssertPresent in terms of IsPresent.
func AssertPresent(ctx context.Context, s interface {
	IsPresent(context.Context, string) (bool, error)
}, key string) error {
	ok, err := s.IsPresent(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "checking presence of %s", key)
	}
	if !ok {
		return errors.Wrap(ErrNotFound, key)
	}
	return nil
}
