// Package shard implements a Blobstore that spreads keys across several nested stores
// using rendezvous (highest random weight) hashing.
package shard

import (
	"context"

	"github.com/nspcc-dev/hrw"
	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = &Store{}

// Store places each key on the `replicas` shards that rank highest for it.
// Adding a shard moves only the keys that now rank it highest.
// Reads consult every shard in rank order,
// so keys written before a shard was added are still found.
type Store struct {
	shards   []scm.Blobstore
	replicas int
}

// New produces a new Store over the given shards.
// Replicas is clamped to [1, len(shards)].
func New(shards []scm.Blobstore, replicas int) *Store {
	if replicas < 1 {
		replicas = 1
	}
	if replicas > len(shards) {
		replicas = len(shards)
	}
	return &Store{shards: shards, replicas: replicas}
}

// order lists shard indexes for key, highest rank first.
func (s *Store) order(key string) []uint64 {
	indices := make([]uint64, len(s.shards))
	for i := range indices {
		indices[i] = uint64(i)
	}
	hrw.SortSliceByValue(indices, hrw.Hash([]byte(key)))
	return indices
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for _, i := range s.order(key) {
		b, ok, err := s.shards[i].Get(ctx, key)
		if err != nil {
			return nil, false, errors.Wrapf(err, "getting %s from shard %d", key, i)
		}
		if ok {
			return b, true, nil
		}
	}
	return nil, false, nil
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	for _, i := range s.order(key)[:s.replicas] {
		if err := s.shards[i].Put(ctx, key, b); err != nil {
			return errors.Wrapf(err, "storing %s in shard %d", key, i)
		}
	}
	return nil
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	for _, i := range s.order(key) {
		ok, err := s.shards[i].IsPresent(ctx, key)
		if err != nil {
			return false, errors.Wrapf(err, "checking %s in shard %d", key, i)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, s, key)
}

func init() {
	store.Register("shard", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		items, _ := conf["shards"].([]interface{})
		if len(items) == 0 {
			return nil, errors.New(`missing "shards" parameter`)
		}
		var shards []scm.Blobstore
		for i, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("shards[%d] is not a map", i)
			}
			sh, err := store.FromConfig(ctx, m)
			if err != nil {
				return nil, errors.Wrapf(err, "creating shards[%d]", i)
			}
			shards = append(shards, sh)
		}
		replicas, ok, err := store.Int(conf, "replicas")
		if err != nil {
			return nil, err
		}
		if !ok {
			replicas = 1
		}
		return New(shards, replicas), nil
	})
}
