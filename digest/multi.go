package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// Multi computes every digest of a stream of content in one pass.
// The git digest depends on the content size,
// so it must be known before the first write.
type Multi struct {
	blake2, sha1, sha256, gitSha1 hash.Hash
	n                             uint64
}

// Sums holds the digests produced by a Multi.
type Sums struct {
	Size    uint64
	Blake2  Blake2
	Sha1    Sha1
	Sha256  Sha256
	GitSha1 GitSha1
}

// NewMulti produces a Multi whose BLAKE2b digest is keyed with blake2Key
// and whose git digest assumes content of the given size.
func NewMulti(blake2Key string, size uint64) *Multi {
	m := &Multi{
		blake2:  NewBlake2(blake2Key),
		sha1:    sha1.New(),
		sha256:  sha256.New(),
		gitSha1: sha1.New(),
	}
	m.gitSha1.Write(gitHeader(size))
	return m
}

// Write implements io.Writer. It never fails.
func (m *Multi) Write(p []byte) (int, error) {
	m.blake2.Write(p)
	m.sha1.Write(p)
	m.sha256.Write(p)
	m.gitSha1.Write(p)
	m.n += uint64(len(p))
	return len(p), nil
}

// Size is the number of bytes written so far.
func (m *Multi) Size() uint64 {
	return m.n
}

// Sums returns the digests of everything written so far.
func (m *Multi) Sums() Sums {
	s := Sums{Size: m.n}
	m.blake2.Sum(s.Blake2[:0])
	m.sha1.Sum(s.Sha1[:0])
	m.sha256.Sum(s.Sha256[:0])
	m.gitSha1.Sum(s.GitSha1[:0])
	return s
}
