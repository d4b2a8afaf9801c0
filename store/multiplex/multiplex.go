// Package multiplex implements a Blobstore that replicates writes to several nested stores.
package multiplex

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = (*Store)(nil)

// Store is a Blobstore that delegates reads and writes to two sets of nested stores.
// One set is synchronous:
// writes to all of these must succeed before a call to Put returns,
// and an error from any will cause Put to fail.
// The other set is asynchronous:
// a call to Put queues writes on these stores but does not wait for them to finish.
// However, if any asynchronous write encounters an error,
// the whole Store is put into an error state and further operations will fail.
//
// Reads go only to the synchronous stores.
type Store struct {
	sync   []scm.Blobstore
	queues []chan<- blob
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu  sync.Mutex // protects err
	err error      // the error from an async goroutine, if any
}

type blob struct {
	key string
	b   []byte
}

// New produces a new Store.
// The set of synchronous stores must be non-empty.
// The set of asynchronous stores may be empty.
// If there are any asynchronous stores,
// goroutines are launched for them,
// and canceling the given context object causes those to exit,
// placing the Store in an error state.
//
// The queue for each asynchronous store has length n, which must be 1 or greater.
// If any async store falls too far behind,
// Put blocks until all requests can be queued.
func New(ctx context.Context, sync, async []scm.Blobstore, n int) *Store {
	result := &Store{sync: sync}
	ctx, result.cancel = context.WithCancel(ctx)

	for _, a := range async {
		q := make(chan blob, n)
		result.queues = append(result.queues, q)
		result.wg.Add(1)
		go func() {
			defer result.wg.Done()
			if err := runAsync(ctx, a, q); err != nil {
				result.setErr(err)
			}
		}()
	}

	return result
}

// Runs as a goroutine until ctx is canceled or an error occurs.
func runAsync(ctx context.Context, s scm.Blobstore, q <-chan blob) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case b := <-q:
			if err := s.Put(ctx, b.key, b.b); err != nil {
				return errors.Wrapf(err, "storing %s", b.key)
			}
		}
	}
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Store) checkErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.err, "in async-store goroutine")
}

// Close stops the asynchronous goroutines.
// Writes still in their queues are abandoned.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

// Put implements scm.Blobstore.Put.
// The blob is stored in all synchronous nested stores concurrently
// and queued for the asynchronous ones.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	if err := s.checkErr(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range s.sync {
		g.Go(func() error {
			return st.Put(gctx, key, b)
		})
	}

	for _, q := range s.queues {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q <- blob{key: key, b: b}:
		}
	}

	return g.Wait()
}

// Get implements scm.Blobstore.Get.
// It queries all of the synchronous stores
// and returns the first blob found,
// canceling the other requests.
// An error is returned only if no store has the blob and some store failed.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.checkErr(); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		b   []byte
		ok  bool
		err error
	}
	ch := make(chan result, len(s.sync))
	for _, st := range s.sync {
		go func() {
			b, ok, err := st.Get(ctx, key)
			ch <- result{b: b, ok: ok, err: err}
		}()
	}

	var firstErr error
	for range s.sync {
		r := <-ch
		if r.ok {
			return r.b, true, nil
		}
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
	}
	return nil, false, firstErr
}

// IsPresent implements scm.Blobstore.IsPresent.
// A key is present if any synchronous store has it.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	if err := s.checkErr(); err != nil {
		return false, err
	}
	var firstErr error
	for _, st := range s.sync {
		ok, err := st.IsPresent(ctx, key)
		if ok {
			return true, nil
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return false, firstErr
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

func init() {
	store.Register("multiplex", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		syncStores, err := nestedList(ctx, conf, "sync")
		if err != nil {
			return nil, err
		}
		if len(syncStores) == 0 {
			return nil, errors.New(`"sync" must name at least one store`)
		}
		asyncStores, err := nestedList(ctx, conf, "async")
		if err != nil {
			return nil, err
		}
		n, ok, err := store.Int(conf, "queue")
		if err != nil {
			return nil, err
		}
		if !ok || n < 1 {
			n = 16
		}
		// The async goroutines live as long as the store.
		return New(context.Background(), syncStores, asyncStores, n), nil
	})
}

func nestedList(ctx context.Context, conf map[string]interface{}, key string) ([]scm.Blobstore, error) {
	items, _ := conf[key].([]interface{})
	var result []scm.Blobstore
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("%s[%d] is not a map", key, i)
		}
		s, err := store.FromConfig(ctx, m)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s[%d]", key, i)
		}
		result = append(result, s)
	}
	return result, nil
}
