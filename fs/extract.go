package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

// Extract writes the persisted tree id into the local directory dest,
// creating dest if needed.
// Files already present in dest are overwritten.
func Extract(ctx context.Context, bs scm.Blobstore, id manifest.TreeID, dest string, concurrency int) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}

	fstore := filestore.New(bs)
	for pe, err := range manifest.Walk(ctx, bs, id, concurrency) {
		if err != nil {
			return errors.Wrapf(err, "walking %s", id)
		}
		path := localPath(dest, pe.Path)
		if _, ok := pe.Entry.Tree(); ok {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errors.Wrapf(err, "creating %s", path)
			}
			continue
		}
		leaf, _ := pe.Entry.Leaf()
		if err := extractFile(ctx, fstore, leaf, path); err != nil {
			return err
		}
	}

	ctxlog.Logger(ctx).Info("extracted tree", zap.Stringer("tree", id), zap.String("dest", dest))
	return nil
}

func localPath(dest string, p mpath.Path) string {
	return filepath.Join(dest, filepath.FromSlash(p.String()))
}

func extractFile(ctx context.Context, fstore *filestore.Filestore, leaf manifest.Leaf, path string) error {
	s, ok, err := fstore.Fetch(ctx, filestore.Canonical(leaf.ID))
	if err != nil {
		return errors.Wrapf(err, "fetching %s", leaf.ID)
	}
	if !ok {
		return errors.Wrapf(scm.ErrNotFound, "content %s for %s", leaf.ID, path)
	}

	if leaf.Type == manifest.Symlink {
		target, err := io.ReadAll(s.Reader(ctx))
		if err != nil {
			return errors.Wrapf(err, "reading symlink target for %s", path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", path)
		}
		return errors.Wrapf(os.Symlink(string(target), path), "creating symlink %s", path)
	}

	perm := os.FileMode(0o644)
	if leaf.Type == manifest.Executable {
		perm = 0o755
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	if _, err := io.Copy(f, s.Reader(ctx)); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
