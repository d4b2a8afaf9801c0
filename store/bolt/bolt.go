// Package bolt implements a Blobstore in a bbolt database file.
package bolt

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	bbolt "go.etcd.io/bbolt"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
)

var bucketName = []byte("blobs")

// Store is a bbolt-based Blobstore.
type Store struct {
	db *bbolt.DB
}

// New produces a new Store using db for storage.
// It creates the "blobs" bucket if necessary.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	return &Store{db: db}, errors.Wrap(err, "creating bucket")
}

// Open opens (creating if necessary) the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return New(db)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		result []byte
		ok     bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			// v is only valid for the life of the transaction.
			result = append([]byte{}, v...)
			ok = true
		}
		return nil
	})
	return result, ok, errors.Wrapf(err, "getting %s", key)
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(_ context.Context, key string, b []byte) error {
	if b == nil {
		b = []byte{}
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), b)
	})
	return errors.Wrapf(err, "putting %s", key)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(_ context.Context, key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketName).Get([]byte(key)) != nil
		return nil
	})
	return ok, errors.Wrapf(err, "checking %s", key)
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
// Keys are gathered in one read transaction
// so that the callback may write to the store.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		k, _ := c.Seek([]byte(start))
		if k != nil && bytes.Equal(k, []byte(start)) {
			k, _ = c.Next()
		}
		for ; k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "listing keys")
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(k); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("bolt", func(_ context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		path, ok := store.String(conf, "path")
		if !ok {
			return nil, errors.New(`missing "path" parameter`)
		}
		return Open(path)
	})
}
