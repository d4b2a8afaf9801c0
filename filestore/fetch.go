package filestore

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
)

// GetCanonicalID resolves key to a ContentID.
// A canonical key resolves to itself without consulting the store.
// An alias resolves through its ContentAlias record,
// and reports false if there is none.
func (f *Filestore) GetCanonicalID(ctx context.Context, key FetchKey) (scm.ContentID, bool, error) {
	if key.kind == kindCanonical {
		return key.canonical, true, nil
	}
	var alias ContentAlias
	ok, err := scm.GetCBOR(ctx, f.bs, key.BlobstoreKey(), &alias)
	if err != nil || !ok {
		return scm.ContentID{}, false, errors.Wrapf(err, "resolving %s", key)
	}
	return alias.ContentID, true, nil
}

// GetAliases loads the metadata of the content that key names,
// reporting false if there is none.
func (f *Filestore) GetAliases(ctx context.Context, key FetchKey) (ContentMetadata, bool, error) {
	id, ok, err := f.GetCanonicalID(ctx, key)
	if err != nil || !ok {
		return ContentMetadata{}, false, err
	}
	var md ContentMetadata
	ok, err = scm.GetCBOR(ctx, f.bs, metadataKey(id), &md)
	return md, ok, errors.Wrapf(err, "loading metadata for %s", id)
}

// Exists tells whether the content that key names is stored.
// An alias record that cannot be decoded counts as absent;
// only I/O errors are reported.
func (f *Filestore) Exists(ctx context.Context, key FetchKey) (bool, error) {
	id, ok, err := f.GetCanonicalID(ctx, key)
	var derr *scm.DecodeError
	if errors.As(err, &derr) {
		f.log.Debug("undecodable alias", zap.Stringer("key", key), zap.Error(err))
		return false, nil
	}
	if err != nil || !ok {
		return false, err
	}
	ok, err = f.bs.IsPresent(ctx, id.BlobstoreKey())
	return ok, errors.Wrapf(err, "checking %s", id)
}

// Fetch starts a stream of the content that key names.
// It reports false if the content, or its first chunk, is not stored.
func (f *Filestore) Fetch(ctx context.Context, key FetchKey) (*Stream, bool, error) {
	id, ok, err := f.GetCanonicalID(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	var contents FileContents
	ok, err = scm.GetCBOR(ctx, f.bs, id.BlobstoreKey(), &contents)
	if err != nil || !ok {
		return nil, false, errors.Wrapf(err, "loading content record for %s", id)
	}

	s := &Stream{
		f:        f,
		id:       id,
		contents: contents,
		max:      f.chunkSize,
	}

	if !contents.IsChunked() {
		if uint64(len(contents.Inline)) != contents.Size {
			return nil, false, errors.Wrapf(ErrCorrupt, "inline content of %s has size %d, record says %d", id, len(contents.Inline), contents.Size)
		}
		s.pending = contents.Inline
		return s, true, nil
	}

	first, ok, err := s.loadChunk(ctx, 0)
	if err != nil || !ok {
		return nil, false, err
	}
	s.pending = first
	s.next = 1
	return s, true, nil
}

// FetchAll fetches the whole content that key names into memory.
func (f *Filestore) FetchAll(ctx context.Context, key FetchKey) ([]byte, bool, error) {
	s, ok, err := f.Fetch(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, s.Size()))
	if _, err := io.Copy(buf, s.Reader(ctx)); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// Stream yields the content of a file in pieces.
// No piece is longer than the Filestore's chunk size.
type Stream struct {
	f        *Filestore
	id       scm.ContentID
	contents FileContents
	max      uint64

	pending []byte
	next    int // index of the next chunk to load
	sent    uint64
}

// Size is the size of the content.
func (s *Stream) Size() uint64 {
	return s.contents.Size
}

// ContentID is the id of the content.
func (s *Stream) ContentID() scm.ContentID {
	return s.id
}

// Next produces the next piece of content.
// After the last piece it returns io.EOF.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	for len(s.pending) == 0 {
		if s.next >= len(s.contents.Chunks) {
			if s.sent != s.contents.Size {
				return nil, errors.Wrapf(ErrCorrupt, "content %s yielded %d bytes, record says %d", s.id, s.sent, s.contents.Size)
			}
			return nil, io.EOF
		}
		chunk, ok, err := s.loadChunk(ctx, s.next)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(ErrChunkNotFound, "chunk %d of %s", s.next, s.id)
		}
		s.pending = chunk
		s.next++
	}

	n := uint64(len(s.pending))
	if n > s.max {
		n = s.max
	}
	piece := s.pending[:n]
	s.pending = s.pending[n:]
	s.sent += n
	return piece, nil
}

func (s *Stream) loadChunk(ctx context.Context, i int) ([]byte, bool, error) {
	ref := s.contents.Chunks[i]
	data, ok, err := s.f.bs.Get(ctx, ref.ID.BlobstoreKey())
	if err != nil || !ok {
		return nil, false, errors.Wrapf(err, "getting chunk %s", ref.ID)
	}
	if uint64(len(data)) != ref.Size {
		return nil, false, errors.Wrapf(ErrCorrupt, "chunk %s has size %d, record says %d", ref.ID, len(data), ref.Size)
	}
	if scm.ChunkIDFor(data) != ref.ID {
		return nil, false, errors.Wrapf(ErrCorrupt, "chunk %s does not match its id", ref.ID)
	}
	return data, true, nil
}

// Reader adapts s to an io.Reader using the given context for each read.
func (s *Stream) Reader(ctx context.Context) io.Reader {
	return &streamReader{ctx: ctx, s: s}
}

type streamReader struct {
	ctx context.Context
	s   *Stream
	buf []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		piece, err := r.s.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		r.buf = piece
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
