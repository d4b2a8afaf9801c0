package scm_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store/mem"
)

func TestContentID(t *testing.T) {
	id := scm.ContentIDFor([]byte("hello"))
	if id == scm.ContentIDFor([]byte("hello!")) {
		t.Error("different content has the same id")
	}
	key := id.BlobstoreKey()
	if !strings.HasPrefix(key, "content.blake2.") || len(key) != len("content.blake2.")+64 {
		t.Errorf("bad key %s", key)
	}
	parsed, err := scm.ParseContentID(id.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Errorf("got %s, want %s", parsed, id)
	}
}

func TestChunkID(t *testing.T) {
	id := scm.ChunkIDFor([]byte("hello"))
	if !strings.HasPrefix(id.BlobstoreKey(), "chunk.blake3.") {
		t.Errorf("bad key %s", id.BlobstoreKey())
	}
	if id.String() == scm.ContentIDFor([]byte("hello")).String() {
		t.Error("chunk id equals content id")
	}
}

type record struct {
	Name  string            `cbor:"1,keyasint"`
	Size  uint64            `cbor:"2,keyasint"`
	ID    scm.ContentID     `cbor:"3,keyasint"`
	Attrs map[string]string `cbor:"4,keyasint,omitempty"`
}

func TestCBOR(t *testing.T) {
	var (
		ctx = context.Background()
		s   = mem.New()
		r   = record{
			Name:  "x",
			Size:  17,
			ID:    scm.ContentIDFor([]byte("x")),
			Attrs: map[string]string{"b": "2", "a": "1", "c": "3"},
		}
	)

	if err := scm.PutCBOR(ctx, s, "rec", r); err != nil {
		t.Fatal(err)
	}
	var got record
	ok, err := scm.GetCBOR(ctx, s, "rec", &got)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("record not found")
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	ok, err = scm.GetCBOR(ctx, s, "absent", &got)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("found absent record")
	}
}

func TestDeterministic(t *testing.T) {
	m1 := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
	b1, err := scm.Marshal(m1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b2, err := scm.Marshal(map[string]int{"d": 4, "c": 3, "b": 2, "a": 1})
		if err != nil {
			t.Fatal(err)
		}
		if string(b1) != string(b2) {
			t.Fatal("encoding is not deterministic")
		}
	}
}

func TestAssertPresent(t *testing.T) {
	var (
		ctx = context.Background()
		s   = mem.New()
	)
	if err := scm.AssertPresent(ctx, s, "k"); !errors.Is(err, scm.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, "k", nil); err != nil {
		t.Fatal(err)
	}
	if err := scm.AssertPresent(ctx, s, "k"); err != nil {
		t.Error(err)
	}
}
