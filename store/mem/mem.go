// Package mem implements in-memory Blobstores.
//
// Store does its work on the calling goroutine.
// Lazy does the same work on a separate goroutine,
// so its effects interleave with other goroutines
// the way a network-backed store's would.
// The observable results of the two are identical.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
	_ scm.Blobstore = &Lazy{}
	_ scm.Lister    = &Lazy{}
)

type table struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (t *table) get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.blobs[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true
}

func (t *table) put(key string, b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.blobs[key] = cp
}

func (t *table) has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.blobs[key]
	return ok
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.blobs)
}

func (t *table) keysAfter(start string) []string {
	t.mu.Lock()
	keys := make([]string, 0, len(t.blobs))
	for k := range t.blobs {
		if k > start {
			keys = append(keys, k)
		}
	}
	t.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Store is a memory-based Blobstore.
type Store struct {
	t table
}

// New produces a new, empty Store.
func New() *Store {
	return &Store{t: table{blobs: make(map[string][]byte)}}
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := s.t.get(key)
	return b, ok, nil
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(_ context.Context, key string, b []byte) error {
	s.t.put(key, b)
	return nil
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(_ context.Context, key string) (bool, error) {
	return s.t.has(key), nil
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	for _, k := range s.t.keysAfter(start) {
		if err := f(k); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of blobs in the store.
func (s *Store) Len() int {
	return s.t.len()
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (scm.Blobstore, error) {
		return New(), nil
	})
	store.Register("lazymem", func(context.Context, map[string]interface{}) (scm.Blobstore, error) {
		return NewLazy(), nil
	})
}
