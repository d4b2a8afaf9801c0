package mem

import (
	"context"

	"github.com/bobg/scm"
)

// Lazy is a memory-based Blobstore whose operations run as separate tasks.
type Lazy struct {
	s *Store
}

// NewLazy produces a new, empty Lazy store.
func NewLazy() *Lazy {
	return &Lazy{s: New()}
}

// run executes f on its own goroutine and waits for it.
// If ctx is canceled first, the caller gets ctx.Err()
// and the effects of f are unspecified.
func run[T any](ctx context.Context, f func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := f()
		ch <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}

// Get implements scm.Blobstore.Get.
func (l *Lazy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type pair struct {
		b  []byte
		ok bool
	}
	p, err := run(ctx, func() (pair, error) {
		b, ok := l.s.t.get(key)
		return pair{b: b, ok: ok}, nil
	})
	return p.b, p.ok, err
}

// Put implements scm.Blobstore.Put.
func (l *Lazy) Put(ctx context.Context, key string, b []byte) error {
	_, err := run(ctx, func() (struct{}, error) {
		l.s.t.put(key, b)
		return struct{}{}, nil
	})
	return err
}

// IsPresent implements scm.Blobstore.IsPresent.
func (l *Lazy) IsPresent(ctx context.Context, key string) (bool, error) {
	return run(ctx, func() (bool, error) {
		return l.s.t.has(key), nil
	})
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (l *Lazy) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, l, key)
}

// ListKeys implements scm.Lister.
func (l *Lazy) ListKeys(ctx context.Context, start string, f func(string) error) error {
	keys, err := run(ctx, func() ([]string, error) {
		return l.s.t.keysAfter(start), nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := f(k); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of blobs in the store.
func (l *Lazy) Len() int {
	return l.s.Len()
}
