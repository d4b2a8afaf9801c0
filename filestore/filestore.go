// Package filestore stores file content in a Blobstore.
//
// Content is identified canonically by a ContentID
// and can also be found by its SHA-1, SHA-256, or git blob id ("aliases").
// Content larger than the chunk size is split into chunks,
// each stored as a separate blob,
// and fetched back as a stream of chunks.
//
// Records are stored under these keys:
//
//	content.blake2.<hex>           FileContents: inline bytes or a chunk list
//	content_metadata.blake2.<hex>  ContentMetadata: size and all ids
//	chunk.blake3.<hex>             raw chunk bytes
//	alias.sha1.<hex>               ContentAlias pointing to the ContentID
//	alias.sha256.<hex>             "
//	alias.gitsha1.<hex>            "
package filestore

import (
	"go.uber.org/zap"

	"github.com/bobg/scm"
)

// DefaultChunkSize is the chunk size used unless WithChunkSize says otherwise.
const DefaultChunkSize = 256 * 1024

// Filestore reads and writes file content in a Blobstore.
type Filestore struct {
	bs          scm.Blobstore
	chunkSize   uint64
	concurrency int
	splitBits   uint // 0 means fixed-size chunks
	log         *zap.Logger
}

// Option configures a Filestore.
type Option func(*Filestore)

// WithChunkSize sets the maximum size of a chunk.
// It also governs the size of the pieces Fetch yields.
// Content no larger than this is stored inline.
func WithChunkSize(n uint64) Option {
	return func(f *Filestore) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// WithConcurrency sets how many chunk writes may be in flight during Store.
func WithConcurrency(n int) Option {
	return func(f *Filestore) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithContentDefinedChunking places chunk boundaries using a rolling hash
// (github.com/bobg/hashsplit) rather than at fixed offsets,
// so an insertion in a large file changes only nearby chunks.
// The average chunk size is about 2^bits bytes;
// no chunk exceeds the chunk size.
func WithContentDefinedChunking(bits uint) Option {
	return func(f *Filestore) {
		f.splitBits = bits
	}
}

// WithLogger sets a logger.
func WithLogger(log *zap.Logger) Option {
	return func(f *Filestore) {
		f.log = log
	}
}

// New produces a new Filestore.
func New(bs scm.Blobstore, opts ...Option) *Filestore {
	f := &Filestore{
		bs:          bs,
		chunkSize:   DefaultChunkSize,
		concurrency: 8,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ChunkSize is the configured chunk size.
func (f *Filestore) ChunkSize() uint64 {
	return f.chunkSize
}
