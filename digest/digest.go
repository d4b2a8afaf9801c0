// Package digest contains the hash types used to identify content.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

type (
	// Sha1 is a SHA-1 digest of some content.
	Sha1 [sha1.Size]byte

	// Sha256 is a SHA-256 digest of some content.
	Sha256 [sha256.Size]byte

	// GitSha1 is the SHA-1 digest git computes for a blob:
	// the hash of "blob <size>\x00" followed by the content.
	GitSha1 [sha1.Size]byte

	// Blake2 is a keyed BLAKE2b-256 digest.
	Blake2 [blake2b.Size256]byte

	// Blake3 is a BLAKE3-256 digest in key-derivation mode.
	Blake3 [32]byte
)

// ErrBadHex is returned when parsing a digest from a malformed hex string.
var ErrBadHex = errors.New("bad hex digest")

func (d Sha1) String() string    { return hex.EncodeToString(d[:]) }
func (d Sha256) String() string  { return hex.EncodeToString(d[:]) }
func (d GitSha1) String() string { return hex.EncodeToString(d[:]) }
func (d Blake2) String() string  { return hex.EncodeToString(d[:]) }
func (d Blake3) String() string  { return hex.EncodeToString(d[:]) }

// ParseSha1 parses a hex-encoded SHA-1 digest.
func ParseSha1(s string) (Sha1, error) {
	var d Sha1
	return d, parseHex(s, d[:])
}

// ParseSha256 parses a hex-encoded SHA-256 digest.
func ParseSha256(s string) (Sha256, error) {
	var d Sha256
	return d, parseHex(s, d[:])
}

// ParseGitSha1 parses a hex-encoded git blob id.
func ParseGitSha1(s string) (GitSha1, error) {
	var d GitSha1
	return d, parseHex(s, d[:])
}

// ParseBlake2 parses a hex-encoded BLAKE2b digest.
func ParseBlake2(s string) (Blake2, error) {
	var d Blake2
	return d, parseHex(s, d[:])
}

// ParseBlake3 parses a hex-encoded BLAKE3 digest.
func ParseBlake3(s string) (Blake3, error) {
	var d Blake3
	return d, parseHex(s, d[:])
}

func parseHex(s string, dst []byte) error {
	if len(s) != 2*len(dst) {
		return errors.Wrapf(ErrBadHex, "%q has length %d, want %d", s, len(s), 2*len(dst))
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return errors.Wrapf(ErrBadHex, "decoding %q: %s", s, err)
	}
	return nil
}

// NewBlake2 returns a BLAKE2b-256 hash keyed with the given domain string.
// Keys longer than 64 bytes panic.
func NewBlake2(key string) hash.Hash {
	h, err := blake2b.New256([]byte(key))
	if err != nil {
		panic(fmt.Sprintf("blake2b key %q: %s", key, err))
	}
	return h
}

// Blake2Sum computes the keyed BLAKE2b-256 digest of data.
func Blake2Sum(key string, data []byte) Blake2 {
	h := NewBlake2(key)
	h.Write(data)
	var d Blake2
	h.Sum(d[:0])
	return d
}

// Blake3Sum computes the BLAKE3 digest of data, deriving the key from context.
func Blake3Sum(context string, data []byte) Blake3 {
	h := blake3.NewDeriveKey(context)
	h.Write(data)
	var d Blake3
	h.Sum(d[:0])
	return d
}

// Sha1Sum computes the SHA-1 digest of data.
func Sha1Sum(data []byte) Sha1 {
	return Sha1(sha1.Sum(data))
}

// Sha256Sum computes the SHA-256 digest of data.
func Sha256Sum(data []byte) Sha256 {
	return Sha256(sha256.Sum256(data))
}

// GitSha1Sum computes the git blob id of data.
func GitSha1Sum(data []byte) GitSha1 {
	h := sha1.New()
	h.Write(gitHeader(uint64(len(data))))
	h.Write(data)
	var d GitSha1
	h.Sum(d[:0])
	return d
}

func gitHeader(size uint64) []byte {
	return []byte("blob " + strconv.FormatUint(size, 10) + "\x00")
}
