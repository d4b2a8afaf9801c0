// Package memmanifest is a mutable, copy-on-write overlay over a persisted manifest tree.
//
// A Root starts from nothing, from one persisted tree, or from the merge of two.
// Reads load persisted subtrees on demand;
// writes are recorded as overrides ("changes") in the tree they affect.
// A tree counts as changed when it, or any subtree loaded beneath it, has changes,
// whether the write came through Root or through an Entry found by Lookup.
// Save writes the result as new persisted trees, bottom-up,
// reusing every subtree that was not changed.
//
// Nodes live in an arena owned by the Root and are addressed by handles.
// A persisted subtree is loaded at most once,
// even when several goroutines reach it at the same time.
// Apart from that guarantee,
// concurrent mutation of one Root must be sequenced by the caller.
package memmanifest

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// Root is an in-memory manifest.
type Root struct {
	a    *arena
	root handle // guarded by a.mu
}

type config struct {
	log         *zap.Logger
	concurrency int
}

// Option configures a Root.
type Option func(*config)

// WithLogger sets the logger for merge conflicts and saves.
// The default is the logger in the context passed to New.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithConcurrency bounds the subtrees saved or merged at once
// at each level of the tree.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New produces a Root.
//
// With no ids, the Root is an empty tree.
// With base alone, the Root is that persisted tree, loaded from bs.
// With base and p2, the Root is the merge of the two trees:
// it has no base, its parents are base and p2,
// and every entry is recorded in its changes.
// Conflicts in the merge must be resolved before Save.
func New(ctx context.Context, bs scm.Blobstore, base, p2 *manifest.TreeID, opts ...Option) (*Root, error) {
	conf := config{
		log:         ctxlog.Logger(ctx),
		concurrency: 16,
	}
	for _, opt := range opts {
		opt(&conf)
	}

	r := &Root{a: newArena(bs, conf.log, conf.concurrency)}

	switch {
	case base == nil && p2 != nil:
		return nil, errors.New("second parent given without a base")

	case base == nil:
		r.root = r.a.newTree(nil, nil, nil)

	case p2 == nil:
		id := *base
		r.root = r.a.newTree(&id, &id, nil)
		if err := r.a.load(ctx, r.root); err != nil {
			return nil, errors.Wrapf(err, "loading %s", id)
		}

	default:
		id1, id2 := *base, *p2
		x := r.a.newTree(&id1, &id1, nil)
		y := r.a.newTree(&id2, &id2, nil)
		h, err := r.a.merge(ctx, x, y, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "merging %s and %s", id1, id2)
		}

		// Identical parents merge to the parent itself.
		r.a.mu.Lock()
		n := r.a.nodes[h]
		n.p1, n.p2 = &id1, &id2
		r.a.mu.Unlock()

		r.root = h
	}

	return r, nil
}

func (r *Root) rootHandle() handle {
	r.a.mu.Lock()
	defer r.a.mu.Unlock()
	return r.root
}

// Root is the root tree.
func (r *Root) Root() Entry {
	return Entry{a: r.a, h: r.rootHandle()}
}

// NewTree makes an empty tree with no base,
// for placing in this Root with Entry.Set.
func (r *Root) NewTree() Entry {
	return Entry{a: r.a, h: r.a.newTree(nil, nil, nil)}
}

// NewBlob makes a blob entry.
func (r *Root) NewBlob(leaf manifest.Leaf) Entry {
	r.a.mu.Lock()
	defer r.a.mu.Unlock()
	return Entry{a: r.a, h: r.a.allocBlob(leaf)}
}

// LoadTree makes an entry for a persisted tree.
// The tree is not read until it is used.
func (r *Root) LoadTree(id manifest.TreeID) Entry {
	return Entry{a: r.a, h: r.a.newTree(&id, &id, nil)}
}

// Lookup finds the entry at path.
// The empty path is the root.
func (r *Root) Lookup(ctx context.Context, path mpath.Path) (Entry, bool, error) {
	h := r.rootHandle()
	for _, name := range path {
		if r.a.kind(h) != KindTree {
			return Entry{}, false, nil
		}
		c, ok, err := r.a.lookup(ctx, h, name)
		if err != nil {
			return Entry{}, false, errors.Wrapf(err, "looking up %q", path.String())
		}
		if !ok {
			return Entry{}, false, nil
		}
		h = c
	}
	return Entry{a: r.a, h: h}, true, nil
}

// ChangeEntry sets the file at path to leaf, or removes it when leaf is nil.
// Missing directories on the way are created,
// and a file where a directory is needed is replaced.
// A conflict on the way is an error.
// Removing the last file from a directory leaves it empty but present
// until Save, which omits empty directories.
func (r *Root) ChangeEntry(ctx context.Context, path mpath.Path, leaf *manifest.Leaf) error {
	if path.IsRoot() {
		return ErrRootPath
	}
	if err := r.a.mutable(); err != nil {
		return err
	}

	h := r.rootHandle()
	for i, name := range path[:len(path)-1] {
		c, ok, err := r.a.lookup(ctx, h, name)
		if err != nil {
			return errors.Wrapf(err, "changing %q", path.String())
		}

		r.a.mu.Lock()
		switch {
		case ok && r.a.nodes[c].kind == KindConflict:
			r.a.mu.Unlock()
			return &ConflictError{Path: path[:i+1]}
		case !ok || r.a.nodes[c].kind == KindBlob:
			c = r.a.allocTree(nil, nil, nil)
		}
		r.a.nodes[h].changes[name] = c
		r.a.mu.Unlock()

		h = c
	}

	return Entry{a: r.a, h: h}.Change(path.Basename(), leaf)
}

// MergeWith merges the persisted tree other into r.
// See Entry.MergeWithConflicts.
func (r *Root) MergeWith(ctx context.Context, other manifest.TreeID) error {
	if err := r.a.mutable(); err != nil {
		return err
	}
	y := r.a.newTree(&other, &other, nil)
	h, err := r.a.merge(ctx, r.rootHandle(), y, nil)
	if err != nil {
		return errors.Wrapf(err, "merging %s", other)
	}
	r.a.mu.Lock()
	r.root = h
	r.a.mu.Unlock()
	return nil
}

// Save persists r and returns the id of its root tree.
// It fails with a *ConflictError if any conflict remains.
// After a successful Save, r can be inspected but not changed;
// start a new Root from the returned id for further edits.
func (r *Root) Save(ctx context.Context) (manifest.TreeID, error) {
	if err := r.a.mutable(); err != nil {
		return manifest.TreeID{}, err
	}
	e, _, err := r.a.save(ctx, r.rootHandle(), nil, true)
	if err != nil {
		return manifest.TreeID{}, errors.Wrap(err, "saving manifest")
	}
	id, _ := e.Tree()

	r.a.mu.Lock()
	r.a.saved = true
	r.a.mu.Unlock()

	r.a.log.Debug("saved manifest", zap.Stringer("id", id))
	return id, nil
}
