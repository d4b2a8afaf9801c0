package manifest

import (
	"iter"
	"sort"

	"github.com/bobg/scm/mpath"
)

// PathTree is a tree of values addressed by path.
// Every node has a value;
// inserting at a deep path gives intermediate nodes the zero value.
type PathTree[V any] struct {
	Value    V
	Children map[mpath.Element]*PathTree[V]
}

// Insert sets the value at path, creating intermediate nodes as needed.
// The nil path sets the root's value.
func (t *PathTree[V]) Insert(path mpath.Path, v V) {
	node := t
	for _, e := range path {
		if node.Children == nil {
			node.Children = make(map[mpath.Element]*PathTree[V])
		}
		child, ok := node.Children[e]
		if !ok {
			child = new(PathTree[V])
			node.Children[e] = child
		}
		node = child
	}
	node.Value = v
}

// Get finds the node at path.
func (t *PathTree[V]) Get(path mpath.Path) (*PathTree[V], bool) {
	node := t
	for _, e := range path {
		child, ok := node.Children[e]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

// FromSeq builds a PathTree from (path, value) pairs.
// Later pairs for the same path win.
func FromSeq[V any](seq iter.Seq2[mpath.Path, V]) *PathTree[V] {
	t := new(PathTree[V])
	for p, v := range seq {
		t.Insert(p, v)
	}
	return t
}

// IntoSeq yields every (path, value) pair in t, starting with the root's (which has the nil path).
// Each node precedes its descendants;
// siblings come in reverse name order.
// The tree is consumed as it is walked:
// nodes are detached once visited.
func (t *PathTree[V]) IntoSeq() iter.Seq2[mpath.Path, V] {
	return func(yield func(mpath.Path, V) bool) {
		type frame struct {
			path mpath.Path
			node *PathTree[V]
		}
		stack := []frame{{node: t}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			names := make([]mpath.Element, 0, len(f.node.Children))
			for name := range f.node.Children {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
			for _, name := range names {
				stack = append(stack, frame{path: f.path.Join(name), node: f.node.Children[name]})
			}

			v := f.node.Value
			f.node.Children = nil
			var zero V
			f.node.Value = zero

			if !yield(f.path, v) {
				return
			}
		}
	}
}
