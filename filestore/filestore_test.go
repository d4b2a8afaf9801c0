package filestore

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
	"github.com/bobg/scm/store/bolt"
	"github.com/bobg/scm/store/failing"
	"github.com/bobg/scm/store/file"
	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/store/sqlite3"
)

// hiding wraps a Blobstore and pretends the listed keys are absent.
type hiding struct {
	scm.Blobstore
	hidden map[string]bool
}

func (h *hiding) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if h.hidden[key] {
		return nil, false, nil
	}
	return h.Blobstore.Get(ctx, key)
}

func (h *hiding) IsPresent(ctx context.Context, key string) (bool, error) {
	if h.hidden[key] {
		return false, nil
	}
	return h.Blobstore.IsPresent(ctx, key)
}

func randBytes(seed int64, n int) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

func fetchPieces(ctx context.Context, t *testing.T, f *Filestore, key FetchKey) [][]byte {
	t.Helper()

	s, ok, err := f.Fetch(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("%s not found", key)
	}
	var pieces [][]byte
	for {
		piece, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return pieces
		}
		if err != nil {
			t.Fatal(err)
		}
		pieces = append(pieces, piece)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		data []byte
		opts []Option
	}{
		{name: "empty"},
		{name: "small", data: []byte("hello, world\n")},
		{name: "exactly one chunk", data: randBytes(1, 64), opts: []Option{WithChunkSize(64)}},
		{name: "fixed chunks", data: randBytes(2, 1000), opts: []Option{WithChunkSize(64)}},
		{name: "content-defined", data: randBytes(3, 100000), opts: []Option{WithChunkSize(4096), WithContentDefinedChunking(10)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := New(mem.New(), tc.opts...)
			md, err := f.StoreBytes(ctx, tc.data)
			if err != nil {
				t.Fatal(err)
			}
			if md.ContentID != scm.ContentIDFor(tc.data) {
				t.Errorf("got content id %s, want %s", md.ContentID, scm.ContentIDFor(tc.data))
			}
			if md.Size != uint64(len(tc.data)) {
				t.Errorf("got size %d, want %d", md.Size, len(tc.data))
			}

			keys := []FetchKey{
				Canonical(md.ContentID),
				Sha1Key(digest.Sha1Sum(tc.data)),
				Sha256Key(digest.Sha256Sum(tc.data)),
				GitSha1Key(digest.GitSha1Sum(tc.data)),
			}
			for _, key := range keys {
				pieces := fetchPieces(ctx, t, f, key)
				for i, piece := range pieces {
					if len(piece) == 0 {
						t.Errorf("%s: piece %d is empty", key, i)
					}
					if uint64(len(piece)) > f.ChunkSize() {
						t.Errorf("%s: piece %d has size %d, exceeding chunk size %d", key, i, len(piece), f.ChunkSize())
					}
				}
				if got := bytes.Join(pieces, nil); !bytes.Equal(got, tc.data) {
					t.Errorf("%s: fetched content differs from stored content", key)
				}

				got, ok, err := f.GetAliases(ctx, key)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatalf("%s: no metadata", key)
				}
				if diff := cmp.Diff(md, got); diff != "" {
					t.Errorf("%s: metadata mismatch (-want +got):\n%s", key, diff)
				}
			}
		})
	}
}

func TestRoundTripQuick(t *testing.T) {
	ctx := context.Background()
	f := New(mem.NewLazy(), WithChunkSize(16))

	check := func(data []byte) bool {
		md, err := f.StoreBytes(ctx, data)
		if err != nil {
			t.Log(err)
			return false
		}
		got, ok, err := f.FetchAll(ctx, Sha256Key(md.Sha256))
		if err != nil {
			t.Log(err)
			return false
		}
		return ok && bytes.Equal(got, data)
	}
	if err := quick.Check(check, nil); err != nil {
		t.Error(err)
	}
}

func TestInline(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	f := New(bs, WithChunkSize(8))

	md, err := f.StoreBytes(ctx, []byte("12345678"))
	if err != nil {
		t.Fatal(err)
	}
	var contents FileContents
	if _, err := scm.GetCBOR(ctx, bs, md.ContentID.BlobstoreKey(), &contents); err != nil {
		t.Fatal(err)
	}
	if contents.IsChunked() {
		t.Error("content at the chunk size was chunked")
	}

	md, err = f.StoreBytes(ctx, []byte("123456789"))
	if err != nil {
		t.Fatal(err)
	}
	contents = FileContents{}
	if _, err := scm.GetCBOR(ctx, bs, md.ContentID.BlobstoreKey(), &contents); err != nil {
		t.Fatal(err)
	}
	want := []uint64{8, 1}
	var sizes []uint64
	for _, ref := range contents.Chunks {
		sizes = append(sizes, ref.Size)
	}
	if diff := cmp.Diff(want, sizes); diff != "" {
		t.Errorf("chunk sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestSameContentTwice(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	data := randBytes(4, 5000)

	md1, err := New(bs, WithChunkSize(100)).StoreBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	f := New(bs, WithChunkSize(1000))
	md2, err := f.StoreBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(md1, md2); diff != "" {
		t.Errorf("metadata mismatch (-first +second):\n%s", diff)
	}
	id, ok, err := f.GetCanonicalID(ctx, GitSha1Key(md1.GitSha1))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != md1.ContentID {
		t.Errorf("got %s, %v; want %s", id, ok, md1.ContentID)
	}
}

func TestSizeMismatch(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	f := New(bs, WithChunkSize(4))

	for _, declared := range []uint64{3, 20} {
		data := []byte("0123456789")
		_, err := f.Store(ctx, NewStoreRequest(declared), bytes.NewReader(data))
		if !errors.Is(err, ErrInvalidSize) {
			t.Errorf("declared size %d: got error %v, want ErrInvalidSize", declared, err)
		}
		ok, err := f.Exists(ctx, Canonical(scm.ContentIDFor(data)))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Errorf("declared size %d: content exists after failed store", declared)
		}
	}
}

func TestHashMismatch(t *testing.T) {
	ctx := context.Background()
	f := New(mem.New())
	data := []byte("some content")
	other := []byte("other content")

	reqs := map[string]StoreRequest{
		"canonical": NewStoreRequest(uint64(len(data))).WithCanonical(scm.ContentIDFor(other)),
		"sha1":      NewStoreRequest(uint64(len(data))).WithSha1(digest.Sha1Sum(other)),
		"sha256":    NewStoreRequest(uint64(len(data))).WithSha256(digest.Sha256Sum(other)),
		"gitsha1":   NewStoreRequest(uint64(len(data))).WithGitSha1(digest.GitSha1Sum(other)),
	}
	for name, req := range reqs {
		t.Run(name, func(t *testing.T) {
			_, err := f.Store(ctx, req, bytes.NewReader(data))
			if !errors.Is(err, ErrHashMismatch) {
				t.Errorf("got error %v, want ErrHashMismatch", err)
			}
		})
	}

	req := NewStoreRequest(uint64(len(data))).
		WithCanonical(scm.ContentIDFor(data)).
		WithSha1(digest.Sha1Sum(data)).
		WithSha256(digest.Sha256Sum(data)).
		WithGitSha1(digest.GitSha1Sum(data))
	if _, err := f.Store(ctx, req, bytes.NewReader(data)); err != nil {
		t.Errorf("storing with correct ids: %s", err)
	}
}

func TestAbsent(t *testing.T) {
	ctx := context.Background()
	f := New(mem.New())
	data := []byte("never stored")

	keys := []FetchKey{
		Canonical(scm.ContentIDFor(data)),
		Sha1Key(digest.Sha1Sum(data)),
	}
	for _, key := range keys {
		if _, ok, err := f.Fetch(ctx, key); err != nil || ok {
			t.Errorf("Fetch(%s) = %v, %v; want false, nil", key, ok, err)
		}
		if ok, err := f.Exists(ctx, key); err != nil || ok {
			t.Errorf("Exists(%s) = %v, %v; want false, nil", key, ok, err)
		}
		if _, ok, err := f.GetAliases(ctx, key); err != nil || ok {
			t.Errorf("GetAliases(%s) = %v, %v; want false, nil", key, ok, err)
		}
	}

	id, ok, err := f.GetCanonicalID(ctx, Canonical(scm.ContentIDFor(data)))
	if err != nil || !ok || id != scm.ContentIDFor(data) {
		t.Errorf("canonical key did not resolve to itself")
	}
	if _, ok, err := f.GetCanonicalID(ctx, Sha256Key(digest.Sha256Sum(data))); err != nil || ok {
		t.Errorf("unknown alias resolved")
	}
}

func TestMissingChunks(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	data := randBytes(5, 300)

	md, err := New(bs, WithChunkSize(100)).StoreBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	var contents FileContents
	if _, err := scm.GetCBOR(ctx, bs, md.ContentID.BlobstoreKey(), &contents); err != nil {
		t.Fatal(err)
	}
	if len(contents.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(contents.Chunks))
	}

	t.Run("first", func(t *testing.T) {
		h := &hiding{Blobstore: bs, hidden: map[string]bool{contents.Chunks[0].ID.BlobstoreKey(): true}}
		_, ok, err := New(h, WithChunkSize(100)).Fetch(ctx, Canonical(md.ContentID))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("content with missing first chunk was found")
		}
	})

	t.Run("later", func(t *testing.T) {
		h := &hiding{Blobstore: bs, hidden: map[string]bool{contents.Chunks[2].ID.BlobstoreKey(): true}}
		_, _, err := New(h, WithChunkSize(100)).FetchAll(ctx, Canonical(md.ContentID))
		if !errors.Is(err, ErrChunkNotFound) {
			t.Errorf("got error %v, want ErrChunkNotFound", err)
		}
	})
}

func TestCorruptChunk(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	data := randBytes(6, 200)

	md, err := New(bs, WithChunkSize(100)).StoreBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	var contents FileContents
	if _, err := scm.GetCBOR(ctx, bs, md.ContentID.BlobstoreKey(), &contents); err != nil {
		t.Fatal(err)
	}
	if err := bs.Put(ctx, contents.Chunks[1].ID.BlobstoreKey(), []byte("short")); err != nil {
		t.Fatal(err)
	}
	_, _, err = New(bs, WithChunkSize(100)).FetchAll(ctx, Canonical(md.ContentID))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("got error %v, want ErrCorrupt", err)
	}
}

func TestRechunk(t *testing.T) {
	stores := []struct {
		name string
		make func(*testing.T) scm.Blobstore
	}{
		{name: "mem", make: func(*testing.T) scm.Blobstore { return mem.New() }},
		{name: "file", make: func(t *testing.T) scm.Blobstore { return file.New(t.TempDir()) }},
		{name: "bolt", make: func(t *testing.T) scm.Blobstore {
			s, err := bolt.Open(filepath.Join(t.TempDir(), "db"))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{name: "sqlite3", make: func(t *testing.T) scm.Blobstore {
			db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "db"))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { db.Close() })
			s, err := sqlite3.New(context.Background(), db)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
	}

	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			testRechunk(t, st.make(t))
		})
	}
}

func testRechunk(t *testing.T, bs scm.Blobstore) {
	ctx := context.Background()
	data := randBytes(7, 10000)

	md, err := New(bs, WithChunkSize(1000)).StoreBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}

	numChunks := func() int {
		var contents FileContents
		if _, err := scm.GetCBOR(ctx, bs, md.ContentID.BlobstoreKey(), &contents); err != nil {
			t.Fatal(err)
		}
		return len(contents.Chunks)
	}
	if n := numChunks(); n != 10 {
		t.Fatalf("got %d chunks before rechunking, want 10", n)
	}

	f := New(bs, WithChunkSize(4000))
	md2, err := f.Rechunk(ctx, md.ContentID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(md, md2); diff != "" {
		t.Errorf("metadata mismatch (-before +after):\n%s", diff)
	}
	if n := numChunks(); n != 3 {
		t.Errorf("got %d chunks after rechunking, want 3", n)
	}

	got, _, err := f.FetchAll(ctx, Canonical(md.ContentID))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("rechunked content differs")
	}

	_, err = f.Rechunk(ctx, scm.ContentIDFor([]byte("unknown")))
	if !errors.Is(err, ErrContentNotFound) {
		t.Errorf("got error %v, want ErrContentNotFound", err)
	}
}

func TestExistsBadAlias(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	f := New(bs)

	data := []byte("aliased")
	key := Sha1Key(digest.Sha1Sum(data))
	if err := bs.Put(ctx, key.BlobstoreKey(), []byte{0xff, 0x00, 0x13}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.Exists(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("undecodable alias reported present")
	}

	// Other lookups still report the bad record.
	var derr *scm.DecodeError
	if _, _, err := f.GetAliases(ctx, key); !errors.As(err, &derr) {
		t.Errorf("got error %v from GetAliases, want a DecodeError", err)
	}

	failingStore := failing.New(bs, 0, 1)
	if _, err := New(failingStore).Exists(ctx, key); !errors.Is(err, failing.ErrInjected) {
		t.Errorf("got error %v with a failing store, want ErrInjected", err)
	}
}

func TestReaderStore(t *testing.T) {
	ctx := context.Background()
	f := New(mem.New(), WithChunkSize(1024), WithContentDefinedChunking(8), WithConcurrency(2))
	text := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 500)

	md, err := f.Store(ctx, NewStoreRequest(uint64(len(text))), strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	s, ok, err := f.Fetch(ctx, Canonical(md.ContentID))
	if err != nil || !ok {
		t.Fatalf("Fetch = %v, %v", ok, err)
	}
	got, err := io.ReadAll(s.Reader(ctx))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != text {
		t.Error("content mismatch")
	}
}

func TestFailingReads(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	data := randBytes(8, 500)

	md, err := New(bs, WithChunkSize(100)).StoreBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}

	f := New(failing.New(bs, 0, 1), WithChunkSize(100))
	if _, _, err := f.Fetch(ctx, Sha1Key(md.Sha1)); !errors.Is(err, failing.ErrInjected) {
		t.Errorf("Fetch: got error %v, want injected failure", err)
	}
	if _, err := f.Exists(ctx, Canonical(md.ContentID)); !errors.Is(err, failing.ErrInjected) {
		t.Errorf("Exists: got error %v, want injected failure", err)
	}
}

func TestFailingWrites(t *testing.T) {
	ctx := context.Background()
	f := New(failing.New(mem.New(), 1, 0), WithChunkSize(100))
	if _, err := f.StoreBytes(ctx, randBytes(9, 500)); !errors.Is(err, failing.ErrInjected) {
		t.Errorf("got error %v, want injected failure", err)
	}
}
