package fs

import (
	"context"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

var (
	_ fs.FS          = (*FS)(nil)
	_ fs.ReadDirFS   = (*FS)(nil)
	_ fs.StatFS      = (*FS)(nil)
	_ fs.File        = (*fsFile)(nil)
	_ fs.ReadDirFile = (*fsDir)(nil)
	_ fs.FileInfo    = (*fsFileInfo)(nil)
	_ fs.DirEntry    = (*fsDirEntry)(nil)
)

// FS presents a persisted tree as an io/fs.FS.
// Symlinks are reported as such but are not followed.
type FS struct {
	// Ctx is used for the blobstore operations behind each call.
	// This is an antipattern but acceptable when an object must adhere to a context-free stdlib interface
	// (https://go.dev/wiki/CodeReviewComments#contexts).
	// Callers may replace it during the lifetime of the FS as needed.
	Ctx context.Context

	bs     scm.Blobstore
	fstore *filestore.Filestore
	root   manifest.TreeID
}

// NewFS creates an FS reading the tree root from bs.
func NewFS(ctx context.Context, bs scm.Blobstore, root manifest.TreeID) *FS {
	return &FS{
		Ctx:    ctx,
		bs:     bs,
		fstore: filestore.New(bs),
		root:   root,
	}
}

func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// find resolves a slash-separated io/fs path.
func (f *FS) find(name string) (manifest.TreeEntry, error) {
	if !fs.ValidPath(name) {
		return manifest.TreeEntry{}, fs.ErrInvalid
	}
	e := manifest.NewTreeEntry[manifest.TreeID, manifest.Leaf](f.root)
	if name == "." {
		return e, nil
	}
	for _, part := range strings.Split(name, "/") {
		id, ok := e.Tree()
		if !ok {
			return manifest.TreeEntry{}, fs.ErrNotExist
		}
		tree, err := id.Load(f.Ctx, f.bs)
		if err != nil {
			return manifest.TreeEntry{}, err
		}
		e, ok = tree.Lookup(mpath.Element(part))
		if !ok {
			return manifest.TreeEntry{}, fs.ErrNotExist
		}
	}
	return e, nil
}

func (f *FS) info(name string, e manifest.TreeEntry) (*fsFileInfo, error) {
	result := &fsFileInfo{name: path.Base(name)}
	leaf, ok := e.Leaf()
	if !ok {
		result.mode = fs.ModeDir | 0o555
		return result, nil
	}
	switch leaf.Type {
	case manifest.Executable:
		result.mode = 0o555
	case manifest.Symlink:
		result.mode = fs.ModeSymlink | 0o777
	default:
		result.mode = 0o444
	}
	md, ok, err := f.fstore.GetAliases(f.Ctx, filestore.Canonical(leaf.ID))
	if err != nil {
		return nil, errors.Wrapf(err, "getting metadata for %s", leaf.ID)
	}
	if !ok {
		return nil, fs.ErrNotExist
	}
	result.size = int64(md.Size)
	return result, nil
}

// Open implements io/fs.FS.
// Directories open as io/fs.ReadDirFile.
func (f *FS) Open(name string) (fs.File, error) {
	e, err := f.find(name)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	info, err := f.info(name, e)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	if id, ok := e.Tree(); ok {
		return &fsDir{fsys: f, name: name, id: id, info: info}, nil
	}

	leaf, _ := e.Leaf()
	s, ok, err := f.fstore.Fetch(f.Ctx, filestore.Canonical(leaf.ID))
	if err == nil && !ok {
		err = fs.ErrNotExist
	}
	if err != nil {
		return nil, pathError("open", name, err)
	}
	return &fsFile{info: info, r: s.Reader(f.Ctx)}, nil
}

// ReadDir implements io/fs.ReadDirFS.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	e, err := f.find(name)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	id, ok := e.Tree()
	if !ok {
		return nil, pathError("readdir", name, errors.New("not a directory"))
	}
	entries, err := f.readDir(name, id)
	return entries, pathError("readdir", name, err)
}

func (f *FS) readDir(name string, id manifest.TreeID) ([]fs.DirEntry, error) {
	tree, err := id.Load(f.Ctx, f.bs)
	if err != nil {
		return nil, err
	}
	result := make([]fs.DirEntry, 0, tree.Len())
	for elem, e := range tree.List() {
		result = append(result, &fsDirEntry{
			fsys: f,
			path: path.Join(name, string(elem)),
			e:    e,
		})
	}
	return result, nil
}

// Stat implements io/fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	e, err := f.find(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	info, err := f.info(name, e)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return info, nil
}

type fsFile struct {
	info *fsFileInfo
	r    io.Reader
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *fsFile) Read(buf []byte) (int, error) {
	if f.r == nil {
		return 0, pathError("read", f.info.name, fs.ErrClosed)
	}
	return f.r.Read(buf)
}

func (f *fsFile) Close() error {
	f.r = nil
	return nil
}

type fsDir struct {
	fsys *FS
	name string
	id   manifest.TreeID
	info *fsFileInfo

	entries []fs.DirEntry // nil until the first ReadDir
	off     int
}

func (d *fsDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *fsDir) Read([]byte) (int, error) {
	return 0, pathError("read", d.name, errors.New("is a directory"))
}

func (d *fsDir) Close() error { return nil }

// ReadDir implements io/fs.ReadDirFile.
func (d *fsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		entries, err := d.fsys.readDir(d.name, d.id)
		if err != nil {
			return nil, pathError("readdir", d.name, err)
		}
		d.entries = entries
	}
	rest := d.entries[d.off:]
	if n <= 0 {
		d.off = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	d.off += n
	return rest[:n], nil
}

type fsFileInfo struct {
	name string
	mode fs.FileMode
	size int64
}

func (i *fsFileInfo) Name() string       { return i.name }
func (i *fsFileInfo) Size() int64        { return i.size }
func (i *fsFileInfo) Mode() fs.FileMode  { return i.mode }
func (i *fsFileInfo) ModTime() time.Time { return time.Time{} }
func (i *fsFileInfo) IsDir() bool        { return i.mode.IsDir() }
func (i *fsFileInfo) Sys() any           { return nil }

type fsDirEntry struct {
	fsys *FS
	path string
	e    manifest.TreeEntry
}

func (e *fsDirEntry) Name() string { return path.Base(e.path) }
func (e *fsDirEntry) IsDir() bool  { return e.e.IsTree() }

func (e *fsDirEntry) Type() fs.FileMode {
	if e.e.IsTree() {
		return fs.ModeDir
	}
	if leaf, _ := e.e.Leaf(); leaf.Type == manifest.Symlink {
		return fs.ModeSymlink
	}
	return 0
}

func (e *fsDirEntry) Info() (fs.FileInfo, error) {
	info, err := e.fsys.info(e.path, e.e)
	if err != nil {
		return nil, pathError("stat", e.path, err)
	}
	return info, nil
}
