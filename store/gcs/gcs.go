// Package gcs implements a Blobstore on Google Cloud Storage.
package gcs

import (
	"context"
	stderrs "errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
)

// Store is a Google Cloud Storage-based implementation of a Blobstore.
// Each blob is an object named by its key, under an optional prefix.
type Store struct {
	bucket *storage.BucketHandle
	prefix string
}

// New produces a new Store.
func New(bucket *storage.BucketHandle, prefix string) *Store {
	return &Store{bucket: bucket, prefix: prefix}
}

func (s *Store) objName(key string) string {
	return s.prefix + key
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	name := s.objName(key)
	r, err := s.bucket.Object(name).NewReader(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "opening object %s", name)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading contents of object %s", name)
	}
	return b, true, nil
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	var (
		name = s.objName(key)
		w    = s.bucket.Object(name).NewWriter(ctx)
	)
	if _, err := w.Write(b); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing object %s", name)
	}

	// The upload completes, or fails, on Close.
	return errors.Wrapf(w.Close(), "closing object %s", name)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	name := s.objName(key)
	_, err := s.bucket.Object(name).Attrs(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "getting attrs of object %s", name)
	}
	return true, nil
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	q := &storage.Query{
		Prefix:      s.prefix,
		StartOffset: s.objName(start),
	}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return errors.Wrap(err, "setting attr selection")
	}

	iter := s.bucket.Objects(ctx, q)
	for {
		obj, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "iterating over objects")
		}
		key := obj.Name[len(s.prefix):]
		if key <= start {
			continue
		}
		if err := f(key); err != nil {
			return err
		}
	}
}

func init() {
	store.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		var options []option.ClientOption
		if creds, ok := store.String(conf, "creds"); ok {
			options = append(options, option.WithCredentialsFile(creds))
		}
		bucketName, ok := store.String(conf, "bucket")
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		prefix, _ := store.String(conf, "prefix")
		c, err := storage.NewClient(ctx, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName), prefix), nil
	})
}
