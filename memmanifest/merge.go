package memmanifest

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// merge combines trees x and y into a new tree.
// No common ancestor is consulted:
// each name present on either side appears in the result.
//
//   - A name on one side only takes that side's entry.
//   - Trees on both sides are merged recursively.
//   - Leaves with the same content id and file type are taken once.
//   - Anything else becomes a conflict listing the distinct sides.
//
// The result has no base, and its parents are those of x and y.
// It records every entry in its changes.
// The result shares no tree or conflict nodes with x and y,
// so changing one never shows through the others.
func (a *arena) merge(ctx context.Context, x, y handle, path mpath.Path) (handle, error) {
	a.mu.Lock()
	nx, ny := a.nodes[x], a.nodes[y]
	if nx.kind != KindTree || ny.kind != KindTree {
		a.mu.Unlock()
		return deleted, errors.Wrapf(ErrNotTree, "merging %s with %s at %q", nx.kind, ny.kind, path.String())
	}
	if x == y || (a.unmodifiedLocked(nx) && a.unmodifiedLocked(ny) && *nx.base == *ny.base) {
		h := a.cloneLocked(x)
		a.mu.Unlock()
		return h, nil
	}
	p1, p2 := parentOf(nx), parentOf(ny)
	a.mu.Unlock()

	var xs, ys []child
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		xs, err = a.children(gctx, x)
		return err
	})
	g.Go(func() (err error) {
		ys, err = a.children(gctx, y)
		return err
	})
	if err := g.Wait(); err != nil {
		return deleted, errors.Wrapf(err, "listing trees to merge at %q", path.String())
	}

	type pair struct {
		name mpath.Element
		x, y handle
	}

	var (
		merged  = make(map[mpath.Element]handle)
		recurse []pair
		i, j    int
	)

	a.mu.Lock()
	for i < len(xs) || j < len(ys) {
		switch {
		case j >= len(ys) || (i < len(xs) && xs[i].name < ys[j].name):
			merged[xs[i].name] = a.cloneLocked(xs[i].h)
			i++

		case i >= len(xs) || ys[j].name < xs[i].name:
			merged[ys[j].name] = a.cloneLocked(ys[j].h)
			j++

		default:
			name, xh, yh := xs[i].name, xs[i].h, ys[j].h
			i++
			j++
			if a.nodes[xh].kind == KindTree && a.nodes[yh].kind == KindTree {
				recurse = append(recurse, pair{name: name, x: xh, y: yh})
				continue
			}
			merged[name] = a.conflictLocked(path.Join(name), xh, yh)
		}
	}
	a.mu.Unlock()

	results := make([]handle, len(recurse))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for k, p := range recurse {
		g.Go(func() error {
			h, err := a.merge(gctx, p.x, p.y, path.Join(p.name))
			results[k] = h
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return deleted, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for k, p := range recurse {
		merged[p.name] = results[k]
	}
	h := a.allocTree(nil, p1, p2)
	a.nodes[h].changes = merged
	return h, nil
}

// conflictLocked produces the entry for a name whose two sides are not both trees.
// Conflicts are flattened and equal sides collapse,
// so the result may be a single side rather than a conflict.
// Either way it is a copy. Caller must hold mu.
func (a *arena) conflictLocked(path mpath.Path, x, y handle) handle {
	var sides []handle
	add := func(h handle) {
		n := a.nodes[h]
		if n.kind == KindConflict {
			for _, s := range n.sides {
				a.addSide(&sides, s)
			}
			return
		}
		a.addSide(&sides, h)
	}
	add(x)
	add(y)

	if len(sides) == 1 {
		return a.cloneLocked(sides[0])
	}

	a.log.Info("merge conflict", zap.Stringer("path", path), zap.Int("sides", len(sides)))
	for i, s := range sides {
		sides[i] = a.cloneLocked(s)
	}
	return a.alloc(&node{kind: KindConflict, sides: sides})
}

func (a *arena) addSide(sides *[]handle, h handle) {
	for _, s := range *sides {
		if s == h || a.sameSideLocked(a.nodes[s], a.nodes[h]) {
			return
		}
	}
	*sides = append(*sides, h)
}

// sameSideLocked tells whether two non-conflict nodes are interchangeable.
// Leaves must agree on both content and file type.
func (a *arena) sameSideLocked(m, n *node) bool {
	switch {
	case m.kind == KindBlob && n.kind == KindBlob:
		return m.leaf == n.leaf
	case m.kind == KindTree && n.kind == KindTree:
		return a.unmodifiedLocked(m) && a.unmodifiedLocked(n) && *m.base == *n.base
	}
	return false
}

// unmodifiedLocked tells whether tree n is exactly its persisted base:
// neither n nor any subtree loaded beneath it has changes.
// Caller must hold mu.
func (a *arena) unmodifiedLocked(n *node) bool {
	if n.base == nil || len(n.changes) > 0 {
		return false
	}
	for _, c := range n.cache {
		if cn := a.nodes[c]; cn.kind == KindTree && !a.unmodifiedLocked(cn) {
			return false
		}
	}
	return true
}

// cloneLocked copies the entry at h.
// Trees and conflicts are copied deeply enough that
// no later change to the copy reaches the original, or the reverse.
// Blobs never change and are shared.
// Caller must hold mu.
func (a *arena) cloneLocked(h handle) handle {
	if h == deleted {
		return deleted
	}
	n := a.nodes[h]
	switch n.kind {
	case KindBlob:
		return h

	case KindConflict:
		sides := make([]handle, len(n.sides))
		for i, s := range n.sides {
			sides[i] = a.cloneLocked(s)
		}
		return a.alloc(&node{kind: KindConflict, sides: sides})
	}

	c := &node{
		kind:    KindTree,
		base:    n.base,
		p1:      n.p1,
		p2:      n.p2,
		changes: make(map[mpath.Element]handle, len(n.changes)),
	}
	for name, ch := range n.changes {
		c.changes[name] = a.cloneLocked(ch)
	}
	if n.state == materialized {
		c.state, c.inherited = materialized, n.inherited

		// Unmodified inherited subtrees are made again on demand.
		for name, ch := range n.cache {
			if cn := a.nodes[ch]; cn.kind == KindTree && !a.unmodifiedLocked(cn) {
				if c.cache == nil {
					c.cache = make(map[mpath.Element]handle)
				}
				c.cache[name] = a.cloneLocked(ch)
			}
		}
	}
	return a.alloc(c)
}

// parentOf is the id that a merge of n records as a parent.
func parentOf(n *node) *manifest.TreeID {
	if n.base != nil {
		return n.base
	}
	return n.p1
}
