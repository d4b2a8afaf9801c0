package testutil

import (
	"context"
	"testing"

	"github.com/bobg/scm"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// StoreTree stores a tree of regular files, given as a map from path to content,
// and returns the id of its root.
// A path ending in "/" makes an empty directory.
func StoreTree(ctx context.Context, t *testing.T, bs scm.Blobstore, files map[string]string) manifest.TreeID {
	t.Helper()

	pt := new(manifest.PathTree[*manifest.File])
	for p, content := range files {
		if len(p) > 0 && p[len(p)-1] == '/' {
			pt.Insert(mpath.MustNew(p[:len(p)-1]), nil)
			continue
		}
		pt.Insert(mpath.MustNew(p), &manifest.File{Content: []byte(content), Type: manifest.Regular})
	}

	var store func(*manifest.PathTree[*manifest.File]) manifest.TreeID
	store = func(node *manifest.PathTree[*manifest.File]) manifest.TreeID {
		var tree manifest.Tree
		for name, child := range node.Children {
			if child.Value != nil {
				leaf, err := child.Value.Store(ctx, bs)
				if err != nil {
					t.Fatal(err)
				}
				tree.Set(name, manifest.NewLeafEntry[manifest.TreeID](leaf))
				continue
			}
			tree.Set(name, manifest.NewTreeEntry[manifest.TreeID, manifest.Leaf](store(child)))
		}
		id, err := tree.Store(ctx, bs)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	return store(pt)
}

// TreeFiles loads every file beneath a persisted tree
// and returns a map from path to content.
func TreeFiles(ctx context.Context, t *testing.T, bs scm.Blobstore, id manifest.TreeID) map[string]string {
	t.Helper()

	files, err := manifest.Files(ctx, bs, id, 4)
	if err != nil {
		t.Fatal(err)
	}
	result := make(map[string]string)
	for p, leaf := range files.IntoSeq() {
		if p.IsRoot() || leaf.ID == (scm.ContentID{}) {
			continue
		}
		f, err := leaf.Load(ctx, bs)
		if err != nil {
			t.Fatal(err)
		}
		result[p.String()] = string(f.Content)
	}
	return result
}
