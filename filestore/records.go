package filestore

import (
	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
)

// FileContents is the record stored under a ContentID's key.
// Content is either inline or a list of chunks, never both.
type FileContents struct {
	Size   uint64     `cbor:"1,keyasint"`
	Inline []byte     `cbor:"2,keyasint,omitempty"`
	Chunks []ChunkRef `cbor:"3,keyasint,omitempty"`
}

// ChunkRef identifies one chunk of a file.
type ChunkRef struct {
	ID   scm.ChunkID `cbor:"1,keyasint"`
	Size uint64      `cbor:"2,keyasint"`
}

// IsChunked tells whether the content is stored as chunks.
func (c FileContents) IsChunked() bool {
	return len(c.Chunks) > 0
}

// ContentMetadata holds every id of some content.
type ContentMetadata struct {
	Size      uint64         `cbor:"1,keyasint"`
	ContentID scm.ContentID  `cbor:"2,keyasint"`
	Sha1      digest.Sha1    `cbor:"3,keyasint"`
	Sha256    digest.Sha256  `cbor:"4,keyasint"`
	GitSha1   digest.GitSha1 `cbor:"5,keyasint"`
}

// ContentAlias is the record stored under an alias key.
type ContentAlias struct {
	ContentID scm.ContentID `cbor:"1,keyasint"`
}
