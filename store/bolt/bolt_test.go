package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bobg/scm"
	"github.com/bobg/scm/testutil"
)

func open(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "bolt.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	testutil.Blobstore(context.Background(), t, open(t))
}

func TestListKeys(t *testing.T) {
	testutil.ListKeys(context.Background(), t, func() interface {
		scm.Blobstore
		scm.Lister
	} {
		return open(t)
	})
}

func TestReopen(t *testing.T) {
	var (
		ctx  = context.Background()
		path = filepath.Join(t.TempDir(), "bolt.db")
	)
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(got) != "v" {
		t.Errorf("got %q, %v after reopen", got, ok)
	}
}
