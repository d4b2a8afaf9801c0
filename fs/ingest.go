// Package fs moves directory trees between the local filesystem and a Blobstore.
//
// Ingest and AddTo copy local files in,
// Extract copies a persisted tree out,
// and FS presents a persisted tree as an io/fs.FS.
package fs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/memmanifest"
	"github.com/bobg/scm/mpath"
)

// ErrUnsupported is returned for local files that are not
// regular files, directories, or symlinks.
var ErrUnsupported = errors.New("unsupported file type")

// Option configures Ingest and AddTo.
type Option func(*ingester)

// WithFilestoreOptions passes options to the Filestore that holds file content.
func WithFilestoreOptions(opts ...filestore.Option) Option {
	return func(in *ingester) {
		in.fsopts = append(in.fsopts, opts...)
	}
}

// WithLogger sets the logger.
// The default is the logger in the context.
func WithLogger(log *zap.Logger) Option {
	return func(in *ingester) {
		in.log = log
	}
}

type ingester struct {
	bs     scm.Blobstore
	fs     *filestore.Filestore
	fsopts []filestore.Option
	log    *zap.Logger

	// Hard links to one local file are stored once.
	seen map[devIno]manifest.Leaf
}

func newIngester(ctx context.Context, bs scm.Blobstore, opts []Option) *ingester {
	in := &ingester{
		bs:   bs,
		seen: make(map[devIno]manifest.Leaf),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.log == nil {
		in.log = ctxlog.Logger(ctx)
	}
	in.fs = filestore.New(bs, append(in.fsopts, filestore.WithLogger(in.log))...)
	return in
}

// Ingest stores the local directory at dir, recursively,
// and returns the id of the resulting tree.
// Empty subdirectories are kept as empty trees.
func Ingest(ctx context.Context, bs scm.Blobstore, dir string, opts ...Option) (manifest.TreeID, error) {
	in := newIngester(ctx, bs, opts)
	id, err := in.dir(ctx, dir)
	if err != nil {
		return manifest.TreeID{}, err
	}
	in.log.Info("ingested directory", zap.String("dir", dir), zap.Stringer("tree", id))
	return id, nil
}

func (in *ingester) dir(ctx context.Context, path string) (manifest.TreeID, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return manifest.TreeID{}, errors.Wrapf(err, "reading dir %s", path)
	}

	var tree manifest.Tree
	for _, dirent := range dirents {
		name, err := mpath.NewElement(dirent.Name())
		if err != nil {
			return manifest.TreeID{}, errors.Wrapf(err, "in %s", path)
		}
		e, err := in.entry(ctx, filepath.Join(path, dirent.Name()))
		if err != nil {
			return manifest.TreeID{}, err
		}
		tree.Set(name, e)
	}

	id, err := tree.Store(ctx, in.bs)
	return id, errors.Wrapf(err, "storing tree for %s", path)
}

func (in *ingester) entry(ctx context.Context, path string) (manifest.TreeEntry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return manifest.TreeEntry{}, errors.Wrapf(err, "statting %s", path)
	}
	if info.IsDir() {
		id, err := in.dir(ctx, path)
		return manifest.NewTreeEntry[manifest.TreeID, manifest.Leaf](id), err
	}
	leaf, err := in.file(ctx, path, info)
	return manifest.NewLeafEntry[manifest.TreeID](leaf), err
}

// file stores a regular file or symlink.
// A symlink's content is its target.
func (in *ingester) file(ctx context.Context, path string, info os.FileInfo) (manifest.Leaf, error) {
	mode := info.Mode()

	if mode&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return manifest.Leaf{}, errors.Wrapf(err, "reading symlink %s", path)
		}
		md, err := in.fs.StoreBytes(ctx, []byte(target))
		if err != nil {
			return manifest.Leaf{}, errors.Wrapf(err, "storing symlink %s", path)
		}
		return manifest.Leaf{ID: md.ContentID, Type: manifest.Symlink}, nil
	}

	if !mode.IsRegular() {
		return manifest.Leaf{}, errors.Wrapf(ErrUnsupported, "%s has mode %s", path, mode.Type())
	}

	di, linked := fileDevIno(info)
	if linked {
		if leaf, ok := in.seen[di]; ok {
			in.log.Debug("hard link", zap.String("path", path), zap.Stringer("content", leaf.ID))
			return leaf, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return manifest.Leaf{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	md, err := in.fs.Store(ctx, filestore.NewStoreRequest(uint64(info.Size())), f)
	if err != nil {
		return manifest.Leaf{}, errors.Wrapf(err, "storing %s", path)
	}

	leaf := manifest.Leaf{ID: md.ContentID, Type: manifest.Regular}
	if mode&0o111 != 0 {
		leaf.Type = manifest.Executable
	}
	if linked {
		in.seen[di] = leaf
	}
	return leaf, nil
}

// AddTo copies the local file, symlink, or directory at local
// into the persisted tree base at path at,
// replacing whatever was there,
// and returns the id of the updated tree.
// Other entries of base are untouched.
// Empty local directories are not recorded.
func AddTo(ctx context.Context, bs scm.Blobstore, base manifest.TreeID, at mpath.Path, local string, opts ...Option) (manifest.TreeID, error) {
	if at.IsRoot() {
		return manifest.TreeID{}, memmanifest.ErrRootPath
	}

	in := newIngester(ctx, bs, opts)
	root, err := memmanifest.New(ctx, bs, &base, nil, memmanifest.WithLogger(in.log))
	if err != nil {
		return manifest.TreeID{}, errors.Wrapf(err, "loading %s", base)
	}

	// Clear the destination so that files absent locally do not survive.
	if err := removeAll(ctx, root, at); err != nil {
		return manifest.TreeID{}, err
	}

	err = filepath.WalkDir(local, func(path string, dirent os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if dirent.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(local, path)
		if err != nil {
			return errors.Wrapf(err, "relativizing %s", path)
		}
		dest := at
		if rel != "." {
			relPath, err := mpath.New(filepath.ToSlash(rel))
			if err != nil {
				return errors.Wrapf(err, "converting %s", rel)
			}
			dest = append(append(mpath.Path(nil), at...), relPath...)
		}
		info, err := dirent.Info()
		if err != nil {
			return errors.Wrapf(err, "statting %s", path)
		}
		leaf, err := in.file(ctx, path, info)
		if err != nil {
			return err
		}
		return errors.Wrapf(root.ChangeEntry(ctx, dest, &leaf), "adding %s", dest)
	})
	if err != nil {
		return manifest.TreeID{}, errors.Wrapf(err, "walking %s", local)
	}

	id, err := root.Save(ctx)
	if err != nil {
		return manifest.TreeID{}, err
	}
	in.log.Info("added to tree", zap.String("local", local), zap.Stringer("at", at), zap.Stringer("base", base), zap.Stringer("tree", id))
	return id, nil
}

// removeAll deletes every file at or beneath path in root.
func removeAll(ctx context.Context, root *memmanifest.Root, path mpath.Path) error {
	e, ok, err := root.Lookup(ctx, path)
	if err != nil || !ok {
		return err
	}
	if e.Kind() != memmanifest.KindTree {
		return errors.Wrapf(root.ChangeEntry(ctx, path, nil), "removing %s", path)
	}
	children, err := e.List(ctx)
	if err != nil {
		return errors.Wrapf(err, "listing %s", path)
	}
	for _, c := range children {
		if err := removeAll(ctx, root, path.Join(c.Name)); err != nil {
			return err
		}
	}
	return nil
}
