package memmanifest

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// Entry is a node of an in-memory manifest:
// a tree, a blob (file), or an unresolved merge conflict.
// It is a lightweight view; copies refer to the same node.
type Entry struct {
	a *arena
	h handle
}

// NamedEntry is a child of a tree.
type NamedEntry struct {
	Name  mpath.Element
	Entry Entry
}

// Change is an override recorded in a tree.
// Deleted changes have a zero Entry.
type Change struct {
	Name    mpath.Element
	Entry   Entry
	Deleted bool
}

func (e Entry) node() *node {
	return e.a.nodes[e.h]
}

// Kind tells whether e is a tree, a blob, or a conflict.
func (e Entry) Kind() Kind {
	return e.a.kind(e.h)
}

// Leaf is the file that a blob entry holds.
func (e Entry) Leaf() (manifest.Leaf, bool) {
	e.a.mu.Lock()
	defer e.a.mu.Unlock()
	n := e.node()
	return n.leaf, n.kind == KindBlob
}

// Base is the persisted tree that a tree entry was loaded from, if any.
func (e Entry) Base() (manifest.TreeID, bool) {
	e.a.mu.Lock()
	defer e.a.mu.Unlock()
	return deref(e.node().base)
}

// Parents are the ids recorded as a tree entry's first and second parents.
func (e Entry) Parents() (p1, p2 *manifest.TreeID) {
	e.a.mu.Lock()
	defer e.a.mu.Unlock()
	n := e.node()
	return n.p1, n.p2
}

func deref(id *manifest.TreeID) (manifest.TreeID, bool) {
	if id == nil {
		return manifest.TreeID{}, false
	}
	return *id, true
}

// Changes lists the overrides of a tree entry in name order.
// Entries that are only inherited from the base, even if already loaded, are not included.
func (e Entry) Changes() []Change {
	e.a.mu.Lock()
	defer e.a.mu.Unlock()

	var result []Change
	for name, h := range e.node().changes {
		if h == deleted {
			result = append(result, Change{Name: name, Deleted: true})
			continue
		}
		result = append(result, Change{Name: name, Entry: Entry{a: e.a, h: h}})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Sides are the alternatives of a conflict entry.
func (e Entry) Sides() []Entry {
	e.a.mu.Lock()
	defer e.a.mu.Unlock()

	var result []Entry
	for _, h := range e.node().sides {
		result = append(result, Entry{a: e.a, h: h})
	}
	return result
}

// Lookup finds a child of a tree entry,
// loading the tree from the blobstore on first use.
func (e Entry) Lookup(ctx context.Context, name mpath.Element) (Entry, bool, error) {
	h, ok, err := e.a.lookup(ctx, e.h, name)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return Entry{a: e.a, h: h}, true, nil
}

// List yields the live children of a tree entry in name order.
func (e Entry) List(ctx context.Context) ([]NamedEntry, error) {
	kids, err := e.a.children(ctx, e.h)
	if err != nil {
		return nil, err
	}
	result := make([]NamedEntry, 0, len(kids))
	for _, c := range kids {
		result = append(result, NamedEntry{Name: c.name, Entry: Entry{a: e.a, h: c.h}})
	}
	return result, nil
}

// IsEmpty tells whether a tree entry contains no files,
// directly or in any subtree.
// Blobs and conflicts are never empty.
func (e Entry) IsEmpty(ctx context.Context) (bool, error) {
	if e.Kind() != KindTree {
		return false, nil
	}
	kids, err := e.a.children(ctx, e.h)
	if err != nil {
		return false, err
	}
	for _, c := range kids {
		empty, err := Entry{a: e.a, h: c.h}.IsEmpty(ctx)
		if err != nil || !empty {
			return false, err
		}
	}
	return true, nil
}

// Change sets the named child of a tree entry to a blob holding leaf,
// or removes it when leaf is nil.
// Removing a child that is a conflict instead replaces it with an empty tree,
// which resolves the conflict.
func (e Entry) Change(name mpath.Element, leaf *manifest.Leaf) error {
	e.a.mu.Lock()
	defer e.a.mu.Unlock()

	if err := e.a.checkMutable(); err != nil {
		return err
	}
	n := e.node()
	if n.kind != KindTree {
		return errors.Wrapf(ErrNotTree, "changing %s in %s", name, n.kind)
	}

	if leaf != nil {
		n.changes[name] = e.a.allocBlob(*leaf)
		return nil
	}
	if c, ok := n.changes[name]; ok && c != deleted && e.a.nodes[c].kind == KindConflict {
		n.changes[name] = e.a.allocTree(nil, nil, nil)
		return nil
	}
	n.changes[name] = deleted
	return nil
}

// Set makes child the named child of a tree entry.
// Both must belong to the same Root.
func (e Entry) Set(name mpath.Element, child Entry) error {
	if child.a != e.a {
		return ErrForeignEntry
	}

	e.a.mu.Lock()
	defer e.a.mu.Unlock()

	if err := e.a.checkMutable(); err != nil {
		return err
	}
	n := e.node()
	if n.kind != KindTree {
		return errors.Wrapf(ErrNotTree, "setting %s in %s", name, n.kind)
	}
	n.changes[name] = child.h
	return nil
}

// MergeWithConflicts merges two tree entries of the same Root.
// Every name present in either tree appears in the result;
// names whose entries cannot be reconciled become conflicts,
// which must be resolved with Change or Set before saving.
// The path is used only for logging and errors.
func (e Entry) MergeWithConflicts(ctx context.Context, other Entry, path mpath.Path) (Entry, error) {
	if other.a != e.a {
		return Entry{}, ErrForeignEntry
	}
	if err := e.a.mutable(); err != nil {
		return Entry{}, err
	}
	h, err := e.a.merge(ctx, e.h, other.h, path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{a: e.a, h: h}, nil
}
