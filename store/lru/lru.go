// Package lru implements a Blobstore that acts as a least-recently-used cache for a nested Blobstore.
package lru

import (
	"bytes"
	"context"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = &Store{}

// Store implements a memory-based least-recently-used cache for a Blobstore.
// Writes pass through to the underlying store and refresh the cache.
// Changes made to the underlying store by other means are not seen
// until the cached entry is evicted.
type Store struct {
	c *lru.Cache // key->[]byte
	s scm.Blobstore
}

// New produces a new Store backed by s and caching up to size blobs.
func New(s scm.Blobstore, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if got, ok := s.c.Get(key); ok {
		return bytes.Clone(got.([]byte)), true, nil
	}
	b, ok, err := s.s.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.c.Add(key, bytes.Clone(b))
	return b, true, nil
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	if err := s.s.Put(ctx, key, b); err != nil {
		return err
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	s.c.Add(key, cp)
	return nil
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	if s.c.Contains(key) {
		return true, nil
	}
	return s.s.IsPresent(ctx, key)
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	if s.c.Contains(key) {
		return nil
	}
	return s.s.AssertPresent(ctx, key)
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		size, ok, err := store.Int(conf, "size")
		if err != nil {
			return nil, err
		}
		if !ok {
			size = 1024
		}
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		return New(nested, size)
	})
}
