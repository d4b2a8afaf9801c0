package manifest

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/filestore"
)

// File is the loaded form of a Leaf.
type File struct {
	Content []byte
	Type    FileType
}

var (
	_ Storable[Leaf] = File{}
	_ Loadable[File] = Leaf{}
)

// Store stores f's content in the default filestore layout on bs.
func (f File) Store(ctx context.Context, bs scm.Blobstore) (Leaf, error) {
	md, err := filestore.New(bs).StoreBytes(ctx, f.Content)
	if err != nil {
		return Leaf{}, errors.Wrap(err, "storing file content")
	}
	return Leaf{ID: md.ContentID, Type: f.Type}, nil
}

// Load fetches the content of l.
// Missing content is reported with an error wrapping scm.ErrNotFound.
func (l Leaf) Load(ctx context.Context, bs scm.Blobstore) (File, error) {
	content, ok, err := filestore.New(bs).FetchAll(ctx, filestore.Canonical(l.ID))
	if err != nil {
		return File{}, errors.Wrapf(err, "fetching %s", l.ID)
	}
	if !ok {
		return File{}, errors.Wrapf(scm.ErrNotFound, "content %s", l.ID)
	}
	return File{Content: content, Type: l.Type}, nil
}
