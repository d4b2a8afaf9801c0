// Package file implements a Blobstore as a file hierarchy.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
)

// Store is a file-based implementation of a Blobstore.
// Each blob is a file named by its escaped key,
// in a directory chosen by a hash of the key to keep directories small.
type Store struct {
	root    string
	flocker flock.Locker
}

// New produces a new Store storing data beneath root.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) blobroot() string {
	return filepath.Join(s.root, "blobs")
}

func (s *Store) blobpath(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(s.blobroot(), h[:2], h[:4], escape(key))
}

// escape turns a key into a safe filename.
func escape(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}

func (s *Store) lockpath() string {
	return filepath.Join(s.root, "lock")
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := s.blobpath(key)
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %s", path)
	}
	return blob, true, nil
}

// Put implements scm.Blobstore.Put.
// The blob is written to a temporary file and renamed into place,
// so readers never see a partial blob.
func (s *Store) Put(_ context.Context, key string, b []byte) error {
	var (
		path = s.blobpath(key)
		dir  = filepath.Dir(path)
	)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	if err := s.flocker.Lock(s.lockpath()); err != nil {
		return errors.Wrap(err, "locking store")
	}
	defer s.flocker.Unlock(s.lockpath())

	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpname := f.Name()
	defer os.Remove(tmpname)

	if _, err = f.Write(b); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing data to %s", tmpname)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmpname)
	}
	return errors.Wrapf(os.Rename(tmpname, path), "renaming %s to %s", tmpname, path)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(_ context.Context, key string) (bool, error) {
	path := s.blobpath(key)
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, errors.Wrapf(err, "statting %s", path)
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
// The hierarchy is not ordered by key,
// so this reads every filename before making any callbacks.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	var keys []string
	err := filepath.WalkDir(s.blobroot(), func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) && path == s.blobroot() {
			return filepath.SkipDir
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key, err := url.PathUnescape(d.Name())
		if err != nil {
			// Not one of ours (a leftover temp file, e.g.).
			return nil
		}
		if key > start && s.blobpath(key) == path {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %s", s.blobroot())
	}

	sort.Strings(keys)
	for _, key := range keys {
		if err := f(key); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		root, ok := store.String(conf, "root")
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
