package memmanifest

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// handle indexes a node in an arena.
// The zero handle is never allocated;
// in a changes map it marks a deletion.
type handle int

const deleted handle = 0

// Kind tells what an Entry is.
type Kind int

const (
	KindTree Kind = iota + 1
	KindBlob
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

type loadState int

const (
	unloaded loadState = iota
	loading
	materialized
)

// loadCall is a load in progress.
// Callers that find one wait on done and then read err.
type loadCall struct {
	done chan struct{}
	err  error
}

type node struct {
	kind Kind

	// KindBlob
	leaf manifest.Leaf

	// KindConflict: two or more sides, none of them a conflict.
	sides []handle

	// KindTree
	base, p1, p2 *manifest.TreeID
	changes      map[mpath.Element]handle // overrides only
	state        loadState
	call         *loadCall
	inherited    *manifest.Tree           // contents of base, once materialized
	cache        map[mpath.Element]handle // nodes made for inherited entries
}

// arena owns every node of one overlay.
// All node fields are guarded by mu.
type arena struct {
	bs          scm.Blobstore
	log         *zap.Logger
	concurrency int
	emptyID     manifest.TreeID

	mu    sync.Mutex
	nodes []*node
	saved bool
}

func newArena(bs scm.Blobstore, log *zap.Logger, concurrency int) *arena {
	return &arena{
		bs:          bs,
		log:         log,
		concurrency: concurrency,
		emptyID:     new(manifest.Tree).ID(),
		nodes:       []*node{nil},
	}
}

// alloc adds n to the arena. Caller must hold mu.
func (a *arena) alloc(n *node) handle {
	a.nodes = append(a.nodes, n)
	return handle(len(a.nodes) - 1)
}

func (a *arena) newTree(base, p1, p2 *manifest.TreeID) handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocTree(base, p1, p2)
}

func (a *arena) allocTree(base, p1, p2 *manifest.TreeID) handle {
	return a.alloc(&node{kind: KindTree, base: base, p1: p1, p2: p2, changes: make(map[mpath.Element]handle)})
}

func (a *arena) allocBlob(leaf manifest.Leaf) handle {
	return a.alloc(&node{kind: KindBlob, leaf: leaf})
}

// allocEntry makes a node for a persisted entry. Caller must hold mu.
func (a *arena) allocEntry(e manifest.TreeEntry) handle {
	if id, ok := e.Tree(); ok {
		return a.allocTree(&id, &id, nil)
	}
	leaf, _ := e.Leaf()
	return a.allocBlob(leaf)
}

// load materializes the inherited entries of tree h.
// Concurrent callers share one load.
// A failed load leaves the node unloaded, so a later call retries.
func (a *arena) load(ctx context.Context, h handle) error {
	a.mu.Lock()
	n := a.nodes[h]
	switch n.state {
	case materialized:
		a.mu.Unlock()
		return nil

	case loading:
		call := n.call
		a.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.base == nil {
		n.state = materialized
		a.mu.Unlock()
		return nil
	}

	call := &loadCall{done: make(chan struct{})}
	n.state, n.call = loading, call
	id := *n.base
	a.mu.Unlock()

	tree, err := id.Load(ctx, a.bs)

	a.mu.Lock()
	if err != nil {
		n.state = unloaded
	} else {
		n.state = materialized
		n.inherited = tree
	}
	n.call = nil
	call.err = err
	a.mu.Unlock()

	close(call.done)
	return err
}

// lookup finds the child of tree h with the given name,
// making a node for it if it is inherited and not yet seen.
func (a *arena) lookup(ctx context.Context, h handle, name mpath.Element) (handle, bool, error) {
	a.mu.Lock()
	n := a.nodes[h]
	if n.kind != KindTree {
		a.mu.Unlock()
		return deleted, false, errors.Wrapf(ErrNotTree, "looking up %s in %s", name, n.kind)
	}
	if c, ok := n.changes[name]; ok {
		a.mu.Unlock()
		return c, c != deleted, nil
	}
	a.mu.Unlock()

	if err := a.load(ctx, h); err != nil {
		return deleted, false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lookupLocked(n, name)
}

func (a *arena) lookupLocked(n *node, name mpath.Element) (handle, bool, error) {
	if c, ok := n.changes[name]; ok {
		return c, c != deleted, nil
	}
	if c, ok := n.cache[name]; ok {
		return c, true, nil
	}
	if n.inherited == nil {
		return deleted, false, nil
	}
	e, ok := n.inherited.Lookup(name)
	if !ok {
		return deleted, false, nil
	}
	c := a.allocEntry(e)
	if n.cache == nil {
		n.cache = make(map[mpath.Element]handle)
	}
	n.cache[name] = c
	return c, true, nil
}

type child struct {
	name mpath.Element
	h    handle
}

// children lists the live children of tree h in name order.
func (a *arena) children(ctx context.Context, h handle) ([]child, error) {
	a.mu.Lock()
	kind := a.nodes[h].kind
	a.mu.Unlock()
	if kind != KindTree {
		return nil, errors.Wrapf(ErrNotTree, "listing %s", kind)
	}

	if err := a.load(ctx, h); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.nodes[h]
	names := make(map[mpath.Element]struct{})
	for name := range n.changes {
		names[name] = struct{}{}
	}
	if n.inherited != nil {
		for name := range n.inherited.List() {
			names[name] = struct{}{}
		}
	}

	var result []child
	for name := range names {
		c, ok, err := a.lookupLocked(n, name)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, child{name: name, h: c})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result, nil
}

// kind reports the kind of h.
func (a *arena) kind(h handle) Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nodes[h].kind
}

func (a *arena) checkMutable() error {
	if a.saved {
		return ErrSaved
	}
	return nil
}

func (a *arena) mutable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkMutable()
}
