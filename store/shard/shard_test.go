package shard

import (
	"context"
	"fmt"
	"testing"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

func newShards(n int) ([]*mem.Store, []scm.Blobstore) {
	var (
		mems   []*mem.Store
		shards []scm.Blobstore
	)
	for i := 0; i < n; i++ {
		m := mem.New()
		mems = append(mems, m)
		shards = append(shards, m)
	}
	return mems, shards
}

func TestStore(t *testing.T) {
	_, shards := newShards(4)
	testutil.Blobstore(context.Background(), t, New(shards, 2))
}

func TestSpread(t *testing.T) {
	var (
		ctx          = context.Background()
		mems, shards = newShards(4)
		s            = New(shards, 1)
	)
	const n = 400
	for i := 0; i < n; i++ {
		if err := s.Put(ctx, fmt.Sprintf("key%d", i), []byte{1}); err != nil {
			t.Fatal(err)
		}
	}
	var total int
	for i, m := range mems {
		if m.Len() < n/10 {
			t.Errorf("shard %d has only %d of %d keys", i, m.Len(), n)
		}
		total += m.Len()
	}
	if total != n {
		t.Errorf("got %d total keys, want %d", total, n)
	}
}

func TestReplicas(t *testing.T) {
	var (
		ctx          = context.Background()
		mems, shards = newShards(3)
		s            = New(shards, 2)
	)
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	var copies int
	for _, m := range mems {
		if ok, _ := m.IsPresent(ctx, "k"); ok {
			copies++
		}
	}
	if copies != 2 {
		t.Errorf("got %d copies, want 2", copies)
	}
}

func TestStable(t *testing.T) {
	var (
		ctx       = context.Background()
		_, shards = newShards(5)
		s         = New(shards, 1)
	)
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	// A store with one more shard still finds the key.
	grown := New(append(shards, mem.New()), 1)
	if _, ok, err := grown.Get(ctx, "k"); err != nil || !ok {
		t.Errorf("ok=%v err=%v after adding a shard", ok, err)
	}
}
