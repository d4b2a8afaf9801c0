// Package testutil contains conformance tests
// shared by the Blobstore implementations.
package testutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/scm"
)

// Blobstore exercises the basic contract of a Blobstore:
// absent keys, read-your-writes, replacement, and presence checks.
func Blobstore(ctx context.Context, t *testing.T, s scm.Blobstore) {
	const absent = "testutil.absent"

	_, ok, err := s.Get(ctx, absent)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("found absent key %s", absent)
	}
	ok, err = s.IsPresent(ctx, absent)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("absent key %s is present", absent)
	}
	if err = s.AssertPresent(ctx, absent); !errors.Is(err, scm.ErrNotFound) {
		t.Fatalf("got error %v from AssertPresent of absent key, want ErrNotFound", err)
	}

	if err = s.Put(ctx, "testutil.empty", nil); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, "testutil.empty")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("empty blob not found")
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes for empty blob", len(got))
	}

	replace(ctx, t, s)

	if err := quick.Check(readWriteHelper(ctx, t, s), nil); err != nil {
		t.Error(err)
	}
}

// replace checks that Put overwrites an existing blob,
// and that changing the bytes returned by Get does not change the store.
func replace(ctx context.Context, t *testing.T, s scm.Blobstore) {
	const key = "testutil.replaced"

	for _, want := range []string{"first value", "second", "third value, longest of all"} {
		if err := s.Put(ctx, key, []byte(want)); err != nil {
			t.Fatal(err)
		}
		got, ok, err := s.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("%s not found after Put", key)
		}
		if string(got) != want {
			t.Fatalf("got %q after replacing %s, want %q", got, key, want)
		}
		for i := range got {
			got[i] = 'x'
		}
		again, _, err := s.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if string(again) != want {
			t.Fatalf("got %q after changing a returned blob, want %q", again, want)
		}
	}
}

func readWriteHelper(ctx context.Context, t *testing.T, s scm.Blobstore) func([][]byte) bool {
	return func(vals [][]byte) bool {
		for _, v := range vals {
			key := Key(string(v))
			if err := s.Put(ctx, key, v); err != nil {
				t.Fatal(err)
			}
			if err := s.AssertPresent(ctx, key); err != nil {
				t.Fatal(err)
			}
			got, ok, err := s.Get(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Errorf("key %s not found after put", key)
				return false
			}
			if !bytes.Equal(got, v) {
				t.Errorf("key %s: got %x, want %x", key, got, v)
				return false
			}
		}
		return true
	}
}

// Key derives from an arbitrary string a key
// that every Blobstore implementation can hold.
// Tests store s itself under Key(s),
// so a key never gets two different values.
func Key(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "testutil.key." + hex.EncodeToString(sum[:16])
}

// ListKeys writes some blobs to an empty store
// and makes sure that the right set of keys comes back from ListKeys.
func ListKeys(ctx context.Context, t *testing.T, storeFactory func() interface {
	scm.Blobstore
	scm.Lister
}) {
	if err := quick.Check(listKeysHelper(ctx, t, storeFactory), nil); err != nil {
		t.Error(err)
	}
}

func listKeysHelper(ctx context.Context, t *testing.T, storeFactory func() interface {
	scm.Blobstore
	scm.Lister
}) func([]string) bool {
	return func(keys []string) bool {
		s := storeFactory()

		seen := make(map[string]bool)
		var want []string
		for _, k := range keys {
			key := Key(k)
			if err := s.Put(ctx, key, []byte(k)); err != nil {
				t.Fatal(err)
			}
			if !seen[key] {
				seen[key] = true
				want = append(want, key)
			}
		}
		sort.Strings(want)

		var got []string
		err := s.ListKeys(ctx, "", func(key string) error {
			got = append(got, key)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
			return false
		}

		if len(want) > 1 {
			got = nil
			err = s.ListKeys(ctx, want[0], func(key string) error {
				got = append(got, key)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want[1:], got); diff != "" {
				t.Errorf("mismatch after %s (-want +got):\n%s", want[0], diff)
				return false
			}
		}
		return true
	}
}
