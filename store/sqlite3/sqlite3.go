// Package sqlite3 implements a Blobstore in a Sqlite database.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Store{}
	_ scm.Lister    = &Store{}
)

// Store is a Sqlite-based Blobstore.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `blobs` table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
  key TEXT PRIMARY KEY NOT NULL,
  data BLOB NOT NULL
);
`

// New produces a new Store using db for storage.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `SELECT data FROM blobs WHERE key = $1`

	var b []byte
	err := s.db.QueryRowContext(ctx, q, key).Scan(&b)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "querying %s", key)
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	const q = `INSERT INTO blobs (key, data) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET data = excluded.data`

	if b == nil {
		b = []byte{}
	}
	_, err := s.db.ExecContext(ctx, q, key, b)
	return errors.Wrapf(err, "inserting %s", key)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	const q = `SELECT COUNT(*) FROM blobs WHERE key = $1`

	var n int
	err := s.db.QueryRowContext(ctx, q, key).Scan(&n)
	return n > 0, errors.Wrapf(err, "counting %s", key)
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

// ListKeys implements scm.Lister.
func (s *Store) ListKeys(ctx context.Context, start string, f func(string) error) error {
	const q = `SELECT key FROM blobs WHERE key > $1 ORDER BY key`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, f)
}

func init() {
	store.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		conn, ok := store.String(conf, "conn")
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
