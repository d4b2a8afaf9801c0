// Package logging implements a Blobstore that delegates everything to a nested store,
// logging operations as they happen.
package logging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bobg/scm"
	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = &Store{}

// Store is a logging wrapper around a Blobstore.
// If it has no logger of its own,
// it logs to the one in each call's context (see ctxlog).
type Store struct {
	s   scm.Blobstore
	log *zap.Logger
}

// New produces a new Store.
// The logger may be nil.
func New(s scm.Blobstore, log *zap.Logger) *Store {
	return &Store{s: s, log: log}
}

func (s *Store) logger(ctx context.Context) *zap.Logger {
	if s.log != nil {
		return s.log
	}
	return ctxlog.Logger(ctx)
}

func (s *Store) done(ctx context.Context, op, key string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("key", key), zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		s.logger(ctx).Error(op, append(fields, zap.Error(err))...)
		return
	}
	s.logger(ctx).Debug(op, fields...)
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	b, ok, err := s.s.Get(ctx, key)
	s.done(ctx, "get", key, start, err, zap.Bool("found", ok), zap.Int("size", len(b)))
	return b, ok, err
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	start := time.Now()
	err := s.s.Put(ctx, key, b)
	s.done(ctx, "put", key, start, err, zap.Int("size", len(b)))
	return err
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.s.IsPresent(ctx, key)
	s.done(ctx, "is_present", key, start, err, zap.Bool("present", ok))
	return ok, err
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	start := time.Now()
	err := s.s.AssertPresent(ctx, key)
	s.done(ctx, "assert_present", key, start, err)
	return err
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		return New(nested, nil), nil
	})
}
