package filestore

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
)

// Rechunk reads existing content and stores it again
// with f's current chunking parameters.
// Use it after changing the chunk size:
// open a Filestore over the same Blobstore with the new options and rechunk each ContentID.
// Unknown content is reported as ErrContentNotFound.
func (f *Filestore) Rechunk(ctx context.Context, id scm.ContentID) (ContentMetadata, error) {
	s, ok, err := f.Fetch(ctx, Canonical(id))
	if err != nil {
		return ContentMetadata{}, errors.Wrapf(err, "fetching %s", id)
	}
	if !ok {
		return ContentMetadata{}, errors.Wrapf(ErrContentNotFound, "rechunking %s", id)
	}

	// The old content record is replaced only after every new chunk is stored,
	// so the stream keeps reading old chunks that remain in place.
	md, err := f.Store(ctx, NewStoreRequest(s.Size()).WithCanonical(id), s.Reader(ctx))
	if err != nil {
		return ContentMetadata{}, errors.Wrapf(err, "rechunking %s", id)
	}
	f.log.Info("rechunked content", zap.Stringer("content_id", id), zap.Uint64("chunk_size", f.chunkSize))
	return md, nil
}
