package manifest

import (
	"context"
	"iter"

	"github.com/bobg/scm"
	"github.com/bobg/scm/mpath"
	"github.com/bobg/scm/traverse"
)

// PathEntry is an entry found while walking a tree, with its full path.
type PathEntry struct {
	Path  mpath.Path
	Entry TreeEntry
}

type walkItem struct {
	path mpath.Path
	id   TreeID
}

// Walk yields every entry beneath the tree with the given id,
// loading at most concurrency trees at a time.
// Each directory's entries are yielded together, in name order,
// but directories arrive in no particular order.
// A parent directory is always yielded before its contents.
func Walk(ctx context.Context, bs scm.Blobstore, id TreeID, concurrency int, opts ...traverse.Option) iter.Seq2[PathEntry, error] {
	unfold := func(ctx context.Context, item walkItem) ([]PathEntry, []walkItem, error) {
		tree, err := item.id.Load(ctx, bs)
		if err != nil {
			return nil, nil, err
		}
		var (
			out      []PathEntry
			children []walkItem
		)
		for name, e := range tree.List() {
			p := item.path.Join(name)
			out = append(out, PathEntry{Path: p, Entry: e})
			if sub, ok := e.Tree(); ok {
				children = append(children, walkItem{path: p, id: sub})
			}
		}
		return out, children, nil
	}

	return func(yield func(PathEntry, error) bool) {
		s := traverse.NewStream(ctx, concurrency, walkItem{id: id}, unfold, opts...)
		defer s.Close()

		for entries, err := range s.All() {
			if err != nil {
				yield(PathEntry{}, err)
				return
			}
			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

// Files collects every leaf beneath the tree with the given id into a PathTree.
func Files(ctx context.Context, bs scm.Blobstore, id TreeID, concurrency int) (*PathTree[Leaf], error) {
	result := new(PathTree[Leaf])
	for pe, err := range Walk(ctx, bs, id, concurrency) {
		if err != nil {
			return nil, err
		}
		if leaf, ok := pe.Entry.Leaf(); ok {
			result.Insert(pe.Path, leaf)
		}
	}
	return result, nil
}
