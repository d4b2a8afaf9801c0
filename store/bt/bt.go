// Package bt implements a Blobstore on Google Cloud Bigtable.
package bt

import (
	"context"

	"cloud.google.com/go/bigtable"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
)

// Store is a Google Cloud Bigtable-backed implementation of a Blobstore.
// Each blob is a row keyed "b:" plus the blob's key,
// holding the blob in a single cell.
// The table must have a column family named Family.
type Store struct {
	t *bigtable.Table
}

const (
	// Family is the column family holding blobs.
	Family = "blob"

	column    = "blob"
	rowPrefix = "b:"
	rowLimit  = "b;" // the first row key after every rowPrefix key
)

// New produces a new Store.
func New(t *bigtable.Table) *Store {
	return &Store{t: t}
}

func rowKey(key string) string {
	return rowPrefix + key
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row, err := s.t.ReadRow(ctx, rowKey(key), bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading row for %s", key)
	}
	items := row[Family]
	if len(items) == 0 {
		return nil, false, nil
	}
	return items[0].Value, true, nil
}

// Put implements scm.Blobstore.Put.
// Older cells are deleted so that a row holds a single version.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	mut := bigtable.NewMutation()
	mut.DeleteCellsInColumn(Family, column)
	mut.Set(Family, column, bigtable.Now(), value)

	err := s.t.Apply(ctx, rowKey(key), mut)
	return errors.Wrapf(err, "writing row for %s", key)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	row, err := s.t.ReadRow(ctx, rowKey(key), bigtable.RowFilter(bigtable.StripValueFilter()))
	if err != nil {
		return false, errors.Wrapf(err, "reading row for %s", key)
	}
	return len(row[Family]) > 0, nil
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	var innerErr error
	rowFn := func(row bigtable.Row) bool {
		if err := f(row.Key()[len(rowPrefix):]); err != nil {
			innerErr = err
			return false
		}
		return true
	}

	// The smallest key after start is start plus a NUL.
	rng := bigtable.NewRange(rowKey(start)+"\x00", rowLimit)
	err := s.t.ReadRows(ctx, rng, rowFn, bigtable.RowFilter(bigtable.StripValueFilter()))
	if err != nil {
		return errors.Wrap(err, "reading rows")
	}
	return innerErr
}

func init() {
	store.Register("bt", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		project, ok := store.String(conf, "project")
		if !ok {
			return nil, errors.New(`missing "project" parameter`)
		}
		instance, ok := store.String(conf, "instance")
		if !ok {
			return nil, errors.New(`missing "instance" parameter`)
		}
		table, ok := store.String(conf, "table")
		if !ok {
			return nil, errors.New(`missing "table" parameter`)
		}

		var options []option.ClientOption
		if creds, ok := store.String(conf, "creds"); ok {
			options = append(options, option.WithCredentialsFile(creds))
		}
		c, err := bigtable.NewClient(ctx, project, instance, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating bigtable client")
		}
		return New(c.Open(table)), nil
	})
}
