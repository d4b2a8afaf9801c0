package filestore

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
)

// StoreRequest describes content to be stored.
// The size is required.
// Any ids supplied are checked against the content.
type StoreRequest struct {
	size      uint64
	canonical *scm.ContentID
	sha1      *digest.Sha1
	sha256    *digest.Sha256
	gitSha1   *digest.GitSha1
}

// NewStoreRequest starts a StoreRequest for content of the given size.
func NewStoreRequest(size uint64) StoreRequest {
	return StoreRequest{size: size}
}

// WithCanonical requires the content to have the given ContentID.
func (r StoreRequest) WithCanonical(id scm.ContentID) StoreRequest {
	r.canonical = &id
	return r
}

// WithSha1 requires the content to have the given SHA-1.
func (r StoreRequest) WithSha1(d digest.Sha1) StoreRequest {
	r.sha1 = &d
	return r
}

// WithSha256 requires the content to have the given SHA-256.
func (r StoreRequest) WithSha256(d digest.Sha256) StoreRequest {
	r.sha256 = &d
	return r
}

// WithGitSha1 requires the content to have the given git blob id.
func (r StoreRequest) WithGitSha1(d digest.GitSha1) StoreRequest {
	r.gitSha1 = &d
	return r
}

// Size is the declared size of the content.
func (r StoreRequest) Size() uint64 {
	return r.size
}

// Store reads content from r and stores it.
// The content must have the size and ids in req.
// On success the returned metadata carries all the content's ids,
// and the content is fetchable by any of them.
//
// Chunks are written before the record that refers to them,
// and the content record before the metadata and aliases,
// so a reader that finds a record can always find what it refers to.
// If verification fails, chunks already written are left behind;
// they are harmless and may be shared with other content.
func (f *Filestore) Store(ctx context.Context, req StoreRequest, r io.Reader) (ContentMetadata, error) {
	var (
		multi = digest.NewMulti(scm.ContentHashKey, req.size)
		lr    = io.LimitReader(r, int64(req.size)+1) // one extra byte detects overlong input
		tr    = io.TeeReader(lr, multi)
	)

	// Small content is stored inline.
	head := make([]byte, f.chunkSize+1)
	n, err := io.ReadFull(tr, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ContentMetadata{}, errors.Wrap(err, "reading content")
	}
	head = head[:n]

	var contents FileContents

	if uint64(n) <= f.chunkSize {
		contents.Inline = head
	} else {
		contents.Chunks, err = f.storeChunks(ctx, io.MultiReader(bytes.NewReader(head), tr))
		if err != nil {
			return ContentMetadata{}, err
		}
	}

	sums := multi.Sums()
	if sums.Size != req.size {
		return ContentMetadata{}, &SizeError{Expected: req.size, Actual: sums.Size}
	}
	contents.Size = sums.Size

	md := ContentMetadata{
		Size:      sums.Size,
		ContentID: scm.ContentID(sums.Blake2),
		Sha1:      sums.Sha1,
		Sha256:    sums.Sha256,
		GitSha1:   sums.GitSha1,
	}
	if err := req.verify(md); err != nil {
		return ContentMetadata{}, err
	}

	if err := scm.PutCBOR(ctx, f.bs, md.ContentID.BlobstoreKey(), contents); err != nil {
		return ContentMetadata{}, errors.Wrap(err, "storing content record")
	}

	alias := ContentAlias{ContentID: md.ContentID}
	records := map[string]interface{}{
		metadataKey(md.ContentID):             md,
		Sha1Key(md.Sha1).BlobstoreKey():       alias,
		Sha256Key(md.Sha256).BlobstoreKey():   alias,
		GitSha1Key(md.GitSha1).BlobstoreKey(): alias,
	}
	g, gctx := errgroup.WithContext(ctx)
	for key, rec := range records {
		g.Go(func() error {
			return scm.PutCBOR(gctx, f.bs, key, rec)
		})
	}
	if err := g.Wait(); err != nil {
		return ContentMetadata{}, errors.Wrap(err, "storing metadata and aliases")
	}

	f.log.Debug("stored content",
		zap.Stringer("content_id", md.ContentID),
		zap.Uint64("size", md.Size),
		zap.Int("chunks", len(contents.Chunks)),
	)

	return md, nil
}

// StoreBytes stores content held in memory.
func (f *Filestore) StoreBytes(ctx context.Context, data []byte) (ContentMetadata, error) {
	return f.Store(ctx, NewStoreRequest(uint64(len(data))), bytes.NewReader(data))
}

func (f *Filestore) storeChunks(ctx context.Context, r io.Reader) ([]ChunkRef, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	var refs []ChunkRef

	err := f.chunks(r, func(chunk []byte) error {
		id := scm.ChunkIDFor(chunk)
		refs = append(refs, ChunkRef{ID: id, Size: uint64(len(chunk))})
		g.Go(func() error {
			return errors.Wrapf(f.bs.Put(gctx, id.BlobstoreKey(), chunk), "storing chunk %s", id)
		})
		return gctx.Err()
	})
	if werr := g.Wait(); werr != nil {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r StoreRequest) verify(md ContentMetadata) error {
	if r.canonical != nil && *r.canonical != md.ContentID {
		return &HashMismatchError{Kind: "content id", Expected: r.canonical.String(), Actual: md.ContentID.String()}
	}
	if r.sha1 != nil && *r.sha1 != md.Sha1 {
		return &HashMismatchError{Kind: "sha1", Expected: r.sha1.String(), Actual: md.Sha1.String()}
	}
	if r.sha256 != nil && *r.sha256 != md.Sha256 {
		return &HashMismatchError{Kind: "sha256", Expected: r.sha256.String(), Actual: md.Sha256.String()}
	}
	if r.gitSha1 != nil && *r.gitSha1 != md.GitSha1 {
		return &HashMismatchError{Kind: "gitsha1", Expected: r.gitSha1.String(), Actual: md.GitSha1.String()}
	}
	return nil
}
