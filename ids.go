package scm

import "github.com/bobg/scm/digest"

// Keys for the digests that produce ids.
// Distinct keys keep ids of different kinds of record from colliding.
const (
	ContentHashKey = "content"
	ChunkHashKey   = "scm chunk"
)

type (
	// ContentID is the canonical id of a file's content.
	ContentID digest.Blake2

	// ChunkID is the id of one chunk of a file's content.
	ChunkID digest.Blake3
)

// ContentIDFor computes the canonical id of some content.
func ContentIDFor(data []byte) ContentID {
	return ContentID(digest.Blake2Sum(ContentHashKey, data))
}

// ChunkIDFor computes the id of a chunk.
func ChunkIDFor(data []byte) ChunkID {
	return ChunkID(digest.Blake3Sum(ChunkHashKey, data))
}

func (id ContentID) String() string { return digest.Blake2(id).String() }
func (id ChunkID) String() string   { return digest.Blake3(id).String() }

// BlobstoreKey is the key under which the content's FileContents record is stored.
func (id ContentID) BlobstoreKey() string { return "content.blake2." + id.String() }

// BlobstoreKey is the key under which the chunk's bytes are stored.
func (id ChunkID) BlobstoreKey() string { return "chunk.blake3." + id.String() }

// ParseContentID parses the hex form of a ContentID.
func ParseContentID(s string) (ContentID, error) {
	d, err := digest.ParseBlake2(s)
	return ContentID(d), err
}
