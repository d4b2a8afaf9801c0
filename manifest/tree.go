package manifest

import (
	"context"
	"iter"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
	"github.com/bobg/scm/mpath"
)

// TreeHashKey keys the BLAKE2b digest of an encoded Tree.
const TreeHashKey = "tree"

// TreeID is the id of a persisted Tree.
type TreeID digest.Blake2

var _ Loadable[*Tree] = TreeID{}

func (id TreeID) String() string { return digest.Blake2(id).String() }

// BlobstoreKey is the key under which the encoded tree is stored.
func (id TreeID) BlobstoreKey() string { return "tree.blake2." + id.String() }

// ParseTreeID parses the hex form of a TreeID.
func ParseTreeID(s string) (TreeID, error) {
	d, err := digest.ParseBlake2(s)
	return TreeID(d), err
}

// Load implements Loadable.
// A missing tree is an error wrapping scm.ErrNotFound.
func (id TreeID) Load(ctx context.Context, bs scm.Blobstore) (*Tree, error) {
	key := id.BlobstoreKey()
	b, ok, err := bs.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "getting tree %s", id)
	}
	if !ok {
		return nil, errors.Wrapf(scm.ErrNotFound, "tree %s", id)
	}
	t, err := DecodeTree(b)
	return t, errors.Wrapf(err, "decoding tree %s", id)
}

// FileType distinguishes kinds of leaf.
type FileType int

const (
	Regular FileType = iota + 1
	Executable
	Symlink
)

func (t FileType) String() string {
	switch t {
	case Regular:
		return "regular"
	case Executable:
		return "executable"
	case Symlink:
		return "symlink"
	}
	return "unknown"
}

// ParseFileType parses the String form of a FileType.
func ParseFileType(s string) (FileType, error) {
	switch s {
	case "regular", "":
		return Regular, nil
	case "executable":
		return Executable, nil
	case "symlink":
		return Symlink, nil
	}
	return 0, errors.Errorf("unknown file type %q", s)
}

// Leaf is a file in a persisted tree.
// Two leaves are the same file only if both fields agree.
type Leaf struct {
	ID   scm.ContentID
	Type FileType
}

// TreeEntry is an entry in a persisted tree.
type TreeEntry = Entry[TreeID, Leaf]

type namedEntry struct {
	name  mpath.Element
	entry TreeEntry
}

// Tree is a persisted directory listing.
// The zero Tree is empty and ready to use.
type Tree struct {
	entries []namedEntry // sorted by name, no duplicates
}

var (
	_ Manifest[TreeID, Leaf] = &Tree{}
	_ Storable[TreeID]       = &Tree{}
)

func (t *Tree) find(name mpath.Element) (int, bool) {
	i := sort.Search(len(t.entries), func(n int) bool { return t.entries[n].name >= name })
	return i, i < len(t.entries) && t.entries[i].name == name
}

// Lookup implements Manifest.
func (t *Tree) Lookup(name mpath.Element) (TreeEntry, bool) {
	i, ok := t.find(name)
	if !ok {
		return TreeEntry{}, false
	}
	return t.entries[i].entry, true
}

// List implements Manifest.
func (t *Tree) List() iter.Seq2[mpath.Element, TreeEntry] {
	return func(yield func(mpath.Element, TreeEntry) bool) {
		for _, ne := range t.entries {
			if !yield(ne.name, ne.entry) {
				return
			}
		}
	}
}

// Len is the number of entries in t.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Set adds or replaces an entry.
func (t *Tree) Set(name mpath.Element, e TreeEntry) {
	i, ok := t.find(name)
	if ok {
		t.entries[i].entry = e
		return
	}
	t.entries = append(t.entries, namedEntry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = namedEntry{name: name, entry: e}
}

// Delete removes an entry, if present.
func (t *Tree) Delete(name mpath.Element) {
	if i, ok := t.find(name); ok {
		t.entries = append(t.entries[:i], t.entries[i+1:]...)
	}
}

// ID computes the id t will have when stored.
func (t *Tree) ID() TreeID {
	return TreeID(digest.Blake2Sum(TreeHashKey, t.Encode()))
}

// Store implements Storable.
func (t *Tree) Store(ctx context.Context, bs scm.Blobstore) (TreeID, error) {
	enc := t.Encode()
	id := TreeID(digest.Blake2Sum(TreeHashKey, enc))
	err := bs.Put(ctx, id.BlobstoreKey(), enc)
	return id, errors.Wrapf(err, "storing tree %s", id)
}
