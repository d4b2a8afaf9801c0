package filestore

import (
	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
)

type keyKind int

const (
	kindCanonical keyKind = iota
	kindSha1
	kindSha256
	kindGitSha1
)

// FetchKey identifies content by its canonical id or by one of its aliases.
type FetchKey struct {
	kind      keyKind
	canonical scm.ContentID
	sha1      digest.Sha1
	sha256    digest.Sha256
	gitSha1   digest.GitSha1
}

// Canonical is the FetchKey for a ContentID.
func Canonical(id scm.ContentID) FetchKey {
	return FetchKey{kind: kindCanonical, canonical: id}
}

// Sha1Key is the FetchKey for a SHA-1 alias.
func Sha1Key(d digest.Sha1) FetchKey {
	return FetchKey{kind: kindSha1, sha1: d}
}

// Sha256Key is the FetchKey for a SHA-256 alias.
func Sha256Key(d digest.Sha256) FetchKey {
	return FetchKey{kind: kindSha256, sha256: d}
}

// GitSha1Key is the FetchKey for a git blob id alias.
func GitSha1Key(d digest.GitSha1) FetchKey {
	return FetchKey{kind: kindGitSha1, gitSha1: d}
}

// BlobstoreKey is the key of the blob this FetchKey names:
// the FileContents record for a canonical key,
// or the ContentAlias record for an alias.
func (k FetchKey) BlobstoreKey() string {
	switch k.kind {
	case kindSha1:
		return aliasKey("sha1", k.sha1.String())
	case kindSha256:
		return aliasKey("sha256", k.sha256.String())
	case kindGitSha1:
		return aliasKey("gitsha1", k.gitSha1.String())
	}
	return k.canonical.BlobstoreKey()
}

func (k FetchKey) String() string {
	return k.BlobstoreKey()
}

func aliasKey(scheme, hex string) string {
	return "alias." + scheme + "." + hex
}

func metadataKey(id scm.ContentID) string {
	return "content_metadata.blake2." + id.String()
}
