package compress

import (
	"bytes"
	"context"
	"testing"

	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

var allCodecs = []Compressor{Zstd{}, LZ4{}, Flate{Level: -1}}

func TestStore(t *testing.T) {
	for _, c := range allCodecs {
		t.Run(string(c.Tag()), func(t *testing.T) {
			testutil.Blobstore(context.Background(), t, New(mem.New(), c))
		})
	}
}

func TestCompresses(t *testing.T) {
	var (
		ctx  = context.Background()
		data = bytes.Repeat([]byte("abcdefgh"), 4096)
	)
	for _, c := range allCodecs {
		t.Run(string(c.Tag()), func(t *testing.T) {
			inner := mem.New()
			s := New(inner, c)
			if err := s.Put(ctx, "k", data); err != nil {
				t.Fatal(err)
			}
			raw, _, err := inner.Get(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			if len(raw) >= len(data) {
				t.Errorf("stored %d bytes for %d bytes of input", len(raw), len(data))
			}
			if raw[0] != c.Tag() {
				t.Errorf("got tag %d, want %d", raw[0], c.Tag())
			}
			got, ok, err := s.Get(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			if !ok || !bytes.Equal(got, data) {
				t.Error("mismatch")
			}
		})
	}
}

func TestMixedCodecs(t *testing.T) {
	var (
		ctx   = context.Background()
		inner = mem.New()
		data  = bytes.Repeat([]byte("xyz"), 1000)
	)
	if err := New(inner, LZ4{}).Put(ctx, "k", data); err != nil {
		t.Fatal(err)
	}
	got, ok, err := New(inner, Zstd{}).Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !bytes.Equal(got, data) {
		t.Error("mismatch reading lz4 blob through zstd store")
	}
}
