package file

import (
	"context"
	"testing"

	"github.com/bobg/scm"
	"github.com/bobg/scm/testutil"
)

func TestStore(t *testing.T) {
	testutil.Blobstore(context.Background(), t, New(t.TempDir()))
}

func TestListKeys(t *testing.T) {
	testutil.ListKeys(context.Background(), t, func() interface {
		scm.Blobstore
		scm.Lister
	} {
		return New(t.TempDir())
	})
}

func TestOddKeys(t *testing.T) {
	var (
		ctx = context.Background()
		s   = New(t.TempDir())
	)
	for _, key := range []string{"a/b", "../x", "with space", "alias.sha1.00"} {
		if err := s.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("putting %q: %s", key, err)
		}
		got, ok, err := s.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(got) != key {
			t.Errorf("key %q: got %q, %v", key, got, ok)
		}
	}
}
