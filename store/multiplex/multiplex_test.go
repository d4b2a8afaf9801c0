package multiplex

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store/failing"
	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, []scm.Blobstore{mem.New(), mem.New()}, []scm.Blobstore{mem.New()}, 4)
	defer s.Close()
	testutil.Blobstore(ctx, t, s)
}

func TestReplicaSets(t *testing.T) {
	ctx := context.Background()

	var (
		m1 = mem.New()
		m2 = mem.New()
		m3 = mem.New()
		s  = New(ctx, []scm.Blobstore{m1, m2}, []scm.Blobstore{m3}, 1)
	)
	defer s.Close()

	if err := m1.Put(ctx, "foo", []byte("foo")); err != nil {
		t.Fatal(err)
	}
	if err := m2.Put(ctx, "bar", []byte("bar")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "baz", []byte("baz")); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"foo", "bar", "baz"} {
		if _, ok, err := s.Get(ctx, key); err != nil || !ok {
			t.Errorf("key %s: ok=%v err=%v", key, ok, err)
		}
	}
	for _, st := range []*mem.Store{m1, m2} {
		if ok, _ := st.IsPresent(ctx, "baz"); !ok {
			t.Error("baz missing from a sync store")
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if ok, _ := m3.IsPresent(ctx, "baz"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("baz never reached the async store")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSyncFailure(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, []scm.Blobstore{mem.New(), failing.New(mem.New(), 1, 0)}, nil, 1)
	defer s.Close()

	if err := s.Put(ctx, "k", []byte("v")); !errors.Is(err, failing.ErrPut) {
		t.Errorf("got %v, want ErrPut", err)
	}
}

func TestReadFallsThrough(t *testing.T) {
	ctx := context.Background()
	good := mem.New()
	if err := good.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s := New(ctx, []scm.Blobstore{failing.New(mem.New(), 0, 1), good}, nil, 1)
	defer s.Close()

	got, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(got) != "v" {
		t.Errorf("got %q, %v", got, ok)
	}
}
