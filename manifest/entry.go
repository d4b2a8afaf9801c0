// Package manifest describes directory trees.
//
// A manifest maps names to entries,
// each of which is either a subtree or a leaf (a file).
// The types here are generic over the representation of trees and leaves,
// so the same shapes describe persisted ids, loaded values, and in-memory edits.
// The persisted form is Tree, whose entries refer to subtrees by TreeID
// and to files by Leaf.
package manifest

import (
	"context"
	"iter"

	"github.com/bobg/scm"
	"github.com/bobg/scm/mpath"
)

// Entry is either a tree of type T or a leaf of type L.
type Entry[T, L any] struct {
	tree   T
	leaf   L
	isLeaf bool
}

// NewTreeEntry produces an Entry holding a tree.
func NewTreeEntry[T, L any](t T) Entry[T, L] {
	return Entry[T, L]{tree: t}
}

// NewLeafEntry produces an Entry holding a leaf.
func NewLeafEntry[T, L any](l L) Entry[T, L] {
	return Entry[T, L]{leaf: l, isLeaf: true}
}

// IsTree tells whether e holds a tree.
func (e Entry[T, L]) IsTree() bool { return !e.isLeaf }

// IsLeaf tells whether e holds a leaf.
func (e Entry[T, L]) IsLeaf() bool { return e.isLeaf }

// Tree returns the tree in e, if it holds one.
func (e Entry[T, L]) Tree() (T, bool) {
	return e.tree, !e.isLeaf
}

// Leaf returns the leaf in e, if it holds one.
func (e Entry[T, L]) Leaf() (L, bool) {
	return e.leaf, e.isLeaf
}

// Manifest is a single directory level.
type Manifest[T, L any] interface {
	// List yields every entry, in name order.
	List() iter.Seq2[mpath.Element, Entry[T, L]]

	// Lookup finds the entry with the given name.
	Lookup(mpath.Element) (Entry[T, L], bool)
}

// Loadable is an id that can be resolved to a value of type V.
type Loadable[V any] interface {
	Load(context.Context, scm.Blobstore) (V, error)
}

// Storable is a value that can be persisted, yielding an id of type K.
type Storable[K any] interface {
	Store(context.Context, scm.Blobstore) (K, error)
}

// LoadEntry loads whichever variant e holds.
// Callers name the loaded types; the id types are inferred:
//
//	LoadEntry[*Tree, File](ctx, bs, e)
func LoadEntry[TV, LV any, T Loadable[TV], L Loadable[LV]](ctx context.Context, bs scm.Blobstore, e Entry[T, L]) (Entry[TV, LV], error) {
	if t, ok := e.Tree(); ok {
		v, err := t.Load(ctx, bs)
		if err != nil {
			return Entry[TV, LV]{}, err
		}
		return NewTreeEntry[TV, LV](v), nil
	}
	v, err := e.leaf.Load(ctx, bs)
	if err != nil {
		return Entry[TV, LV]{}, err
	}
	return NewLeafEntry[TV](v), nil
}

// StoreEntry stores whichever variant e holds.
func StoreEntry[TK, LK any, T Storable[TK], L Storable[LK]](ctx context.Context, bs scm.Blobstore, e Entry[T, L]) (Entry[TK, LK], error) {
	if t, ok := e.Tree(); ok {
		k, err := t.Store(ctx, bs)
		if err != nil {
			return Entry[TK, LK]{}, err
		}
		return NewTreeEntry[TK, LK](k), nil
	}
	k, err := e.leaf.Store(ctx, bs)
	if err != nil {
		return Entry[TK, LK]{}, err
	}
	return NewLeafEntry[TK](k), nil
}
