// Package failing implements a Blobstore wrapper that fails at random.
// It is for testing how callers cope with an unreliable store.
package failing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = &Store{}

// ErrInjected is matched (with errors.Is) by every error this package produces.
var ErrInjected = errors.New("injected failure")

// Distinct errors for each failing operation.
var (
	ErrGet           = &injectedError{op: "get"}
	ErrPut           = &injectedError{op: "put"}
	ErrIsPresent     = &injectedError{op: "is_present"}
	ErrAssertPresent = &injectedError{op: "assert_present"}
)

type injectedError struct {
	op string
}

func (e *injectedError) Error() string        { return "injected " + e.op + " failure" }
func (e *injectedError) Is(target error) bool { return target == ErrInjected }

// Store wraps a Blobstore.
// Reads (Get, IsPresent, AssertPresent) succeed with probability readSuccess,
// and Put with probability writeSuccess.
// A failed operation does not reach the wrapped store.
type Store struct {
	s                         scm.Blobstore
	readSuccess, writeSuccess float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Store.
type Option func(*Store)

// WithSeed makes the sequence of failures reproducible.
func WithSeed(seed int64) Option {
	return func(s *Store) {
		s.rnd = rand.New(rand.NewSource(seed))
	}
}

// New produces a new Store wrapping s.
// Probabilities are clamped to [0, 1].
func New(s scm.Blobstore, readSuccess, writeSuccess float64, opts ...Option) *Store {
	result := &Store{
		s:            s,
		readSuccess:  clamp(readSuccess),
		writeSuccess: clamp(writeSuccess),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(result)
	}
	return result
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func (s *Store) succeeds(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() < p
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.succeeds(s.readSuccess) {
		return nil, false, ErrGet
	}
	return s.s.Get(ctx, key)
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	if !s.succeeds(s.writeSuccess) {
		return ErrPut
	}
	return s.s.Put(ctx, key, b)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	if !s.succeeds(s.readSuccess) {
		return false, ErrIsPresent
	}
	return s.s.IsPresent(ctx, key)
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	if !s.succeeds(s.readSuccess) {
		return ErrAssertPresent
	}
	return s.s.AssertPresent(ctx, key)
}

func init() {
	store.Register("failing", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		read, ok, err := store.Float(conf, "read_success")
		if err != nil {
			return nil, err
		}
		if !ok {
			read = 1
		}
		write, ok, err := store.Float(conf, "write_success")
		if err != nil {
			return nil, err
		}
		if !ok {
			write = 1
		}
		var opts []Option
		if seed, ok, err := store.Int(conf, "seed"); err != nil {
			return nil, err
		} else if ok {
			opts = append(opts, WithSeed(int64(seed)))
		}
		return New(nested, read, write, opts...), nil
	})
}
