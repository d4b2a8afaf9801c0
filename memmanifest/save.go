package memmanifest

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// save persists the subtree at h bottom-up.
// It reports whether the result is an empty tree,
// which the caller omits from its own listing.
// Only the root (keep) is stored even when empty.
func (a *arena) save(ctx context.Context, h handle, path mpath.Path, keep bool) (manifest.TreeEntry, bool, error) {
	a.mu.Lock()
	n := a.nodes[h]
	switch n.kind {
	case KindBlob:
		leaf := n.leaf
		a.mu.Unlock()
		return manifest.NewLeafEntry[manifest.TreeID](leaf), false, nil

	case KindConflict:
		a.mu.Unlock()
		return manifest.TreeEntry{}, false, &ConflictError{Path: path}
	}
	if a.unmodifiedLocked(n) {
		id := *n.base
		a.mu.Unlock()
		return manifest.NewTreeEntry[manifest.TreeID, manifest.Leaf](id), id == a.emptyID, nil
	}
	a.mu.Unlock()

	kids, err := a.children(ctx, h)
	if err != nil {
		return manifest.TreeEntry{}, false, errors.Wrapf(err, "listing %q", path.String())
	}

	type saved struct {
		entry manifest.TreeEntry
		empty bool
	}
	results := make([]saved, len(kids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, c := range kids {
		g.Go(func() error {
			e, empty, err := a.save(gctx, c.h, path.Join(c.name), false)
			results[i] = saved{entry: e, empty: empty}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return manifest.TreeEntry{}, false, err
	}

	var tree manifest.Tree
	for i, c := range kids {
		r := results[i]
		if r.empty && r.entry.IsTree() {
			continue
		}
		tree.Set(c.name, r.entry)
	}

	if tree.Len() == 0 && !keep {
		return manifest.TreeEntry{}, true, nil
	}

	id, err := tree.Store(ctx, a.bs)
	if err != nil {
		return manifest.TreeEntry{}, false, errors.Wrapf(err, "saving %q", path.String())
	}
	return manifest.NewTreeEntry[manifest.TreeID, manifest.Leaf](id), tree.Len() == 0, nil
}
