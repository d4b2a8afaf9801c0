package store

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/scm"
)

// Copy adds every blob in src that is missing from dst,
// running up to concurrency copies at once.
// It returns the number of blobs copied.
func Copy(ctx context.Context, dst scm.Blobstore, src interface {
	scm.Blobstore
	scm.Lister
}, concurrency int) (int, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	copied := make(chan struct{}, concurrency)
	var n int
	done := make(chan struct{})
	go func() {
		for range copied {
			n++
		}
		close(done)
	}()

	err := src.ListKeys(ctx, "", func(key string) error {
		eg.Go(func() error {
			ok, err := dst.IsPresent(ctx, key)
			if err != nil {
				return errors.Wrapf(err, "checking %s in destination", key)
			}
			if ok {
				return nil
			}
			b, ok, err := src.Get(ctx, key)
			if err != nil {
				return errors.Wrapf(err, "getting %s", key)
			}
			if !ok {
				return nil
			}
			if err := dst.Put(ctx, key, b); err != nil {
				return errors.Wrapf(err, "storing %s", key)
			}
			copied <- struct{}{}
			return nil
		})
		return ctx.Err()
	})
	err2 := eg.Wait()
	close(copied)
	<-done

	if err2 != nil {
		return n, err2
	}
	return n, errors.Wrap(err, "listing keys")
}
