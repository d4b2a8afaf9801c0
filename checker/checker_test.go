package checker

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
	"github.com/bobg/scm/store/failing"
	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

func TestClean(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	root := testutil.StoreTree(ctx, t, bs, map[string]string{
		"a":     "same",
		"b":     "same",
		"d/c":   "other",
		"d/e/f": "more",
	})

	report, err := New(bs, WithLogger(zaptest.NewLogger(t))).Check(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	want := Report{Trees: 3, Files: 4, Contents: 3}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if !report.OK() {
		t.Error("clean tree has problems")
	}
}

func TestProblems(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	fs := filestore.New(bs, filestore.WithChunkSize(4))

	store := func(content string) manifest.Leaf {
		md, err := fs.StoreBytes(ctx, []byte(content))
		if err != nil {
			t.Fatal(err)
		}
		return manifest.Leaf{ID: md.ContentID, Type: manifest.Regular}
	}

	var (
		good          = store("good")
		hashMismatch  = store("abcd")
		aliasMismatch = store("wxyz")
		corrupt       = store("0123456789")
		noMetadata    = manifest.Leaf{ID: scm.ContentIDFor([]byte("meta")), Type: manifest.Regular}
		missing       = manifest.Leaf{ID: scm.ContentIDFor([]byte("ghost")), Type: manifest.Regular}
	)

	// Same length, different bytes.
	if err := scm.PutCBOR(ctx, bs, hashMismatch.ID.BlobstoreKey(), filestore.FileContents{Size: 4, Inline: []byte("dcba")}); err != nil {
		t.Fatal(err)
	}

	// The alias leads elsewhere.
	if err := scm.PutCBOR(ctx, bs, filestore.Sha256Key(digest.Sha256Sum([]byte("wxyz"))).BlobstoreKey(), filestore.ContentAlias{ContentID: good.ID}); err != nil {
		t.Fatal(err)
	}

	// A damaged chunk.
	var contents filestore.FileContents
	if _, err := scm.GetCBOR(ctx, bs, corrupt.ID.BlobstoreKey(), &contents); err != nil {
		t.Fatal(err)
	}
	if err := bs.Put(ctx, contents.Chunks[1].ID.BlobstoreKey(), []byte("4567x")); err != nil {
		t.Fatal(err)
	}

	// Content without metadata.
	if err := scm.PutCBOR(ctx, bs, noMetadata.ID.BlobstoreKey(), filestore.FileContents{Size: 4, Inline: []byte("meta")}); err != nil {
		t.Fatal(err)
	}

	var tree manifest.Tree
	for name, l := range map[string]manifest.Leaf{
		"good":     good,
		"hash":     hashMismatch,
		"alias":    aliasMismatch,
		"corrupt":  corrupt,
		"metadata": noMetadata,
		"missing":  missing,
	} {
		tree.Set(mpath.Element(name), manifest.NewLeafEntry[manifest.TreeID](l))
	}
	root, err := tree.Store(ctx, bs)
	if err != nil {
		t.Fatal(err)
	}

	report, err := New(bs, WithVerifiers(2), WithQueueSize(1), WithWalkers(1), WithLogger(zap.NewNop())).Check(ctx, root)
	if err != nil {
		t.Fatal(err)
	}

	type found struct {
		Path string
		Kind ProblemKind
	}
	var got []found
	for _, p := range report.Problems {
		got = append(got, found{Path: p.Path.String(), Kind: p.Kind})
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Path < got[j].Path })

	want := []found{
		{Path: "alias", Kind: AliasMismatch},
		{Path: "corrupt", Kind: Corrupt},
		{Path: "hash", Kind: HashMismatch},
		{Path: "metadata", Kind: MissingMetadata},
		{Path: "missing", Kind: Missing},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}
	if report.Files != 6 || report.Contents != 6 {
		t.Errorf("got %d files, %d contents; want 6, 6", report.Files, report.Contents)
	}
}

func TestMissingTree(t *testing.T) {
	ctx := context.Background()
	_, err := New(mem.New(), WithLogger(zap.NewNop())).Check(ctx, manifest.TreeID{1})
	if !errors.Is(err, scm.ErrNotFound) {
		t.Errorf("got error %v, want ErrNotFound", err)
	}
}

func TestFailingStore(t *testing.T) {
	ctx := context.Background()
	bs := mem.New()
	root := testutil.StoreTree(ctx, t, bs, map[string]string{"a": "a", "b/c": "c"})

	_, err := New(failing.New(bs, 0, 1), WithLogger(zap.NewNop())).Check(ctx, root)
	if !errors.Is(err, failing.ErrInjected) {
		t.Errorf("got error %v, want injected failure", err)
	}
}
