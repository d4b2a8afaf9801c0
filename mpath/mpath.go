// Package mpath holds the names of files and directories in a manifest.
package mpath

import (
	"strings"

	"github.com/pkg/errors"
)

// Element is a single component of a path.
// It is non-empty and contains neither '/' nor NUL,
// and is not "." or "..".
type Element string

// Path is a sequence of Elements.
// The nil Path denotes the root.
type Path []Element

// ErrInvalid is returned for a malformed path or path element.
var ErrInvalid = errors.New("invalid path")

// NewElement validates s as a path element.
func NewElement(s string) (Element, error) {
	switch {
	case s == "":
		return "", errors.Wrap(ErrInvalid, "empty element")
	case s == "." || s == "..":
		return "", errors.Wrapf(ErrInvalid, "element %q", s)
	case strings.ContainsAny(s, "/\x00"):
		return "", errors.Wrapf(ErrInvalid, "element %q contains a separator or NUL", s)
	}
	return Element(s), nil
}

// New parses a slash-separated path.
// The empty string is the root.
func New(s string) (Path, error) {
	if s == "" {
		return nil, nil
	}
	var result Path
	for _, part := range strings.Split(s, "/") {
		e, err := NewElement(part)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q", s)
		}
		result = append(result, e)
	}
	return result, nil
}

// MustNew is like New but panics on error.
// It is for tests and constants.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Join returns a new Path with e appended.
// The receiver is not modified.
func (p Path) Join(e Element) Path {
	result := make(Path, len(p)+1)
	copy(result, p)
	result[len(p)] = e
	return result
}

// IsRoot tells whether p is the root.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent is p without its last element.
// The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Basename is the last element of p, or "" for the root.
func (p Path) Basename() Element {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = string(e)
	}
	return strings.Join(parts, "/")
}

// Less compares paths element by element.
func (p Path) Less(other Path) bool {
	for i := 0; i < len(p) && i < len(other); i++ {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return len(p) < len(other)
}
