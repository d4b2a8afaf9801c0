package manifest

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bobg/scm/mpath"
)

// A Tree is encoded in protobuf wire format as
//
//	message Tree { repeated Entry entries = 1; }
//	message Entry {
//	  bytes  name = 1;
//	  uint32 kind = 2; // 0 for a subtree, else the FileType
//	  bytes  id   = 3;
//	}
//
// with entries in name order, so equal trees have equal encodings.

const (
	fieldEntries = 1

	fieldName = 1
	fieldKind = 2
	fieldID   = 3

	kindTree = 0
)

// ErrBadTree is returned when decoding a malformed tree.
var ErrBadTree = errors.New("malformed tree")

// Encode serializes t.
func (t *Tree) Encode() []byte {
	var buf, inner []byte
	for _, ne := range t.entries {
		var (
			kind uint64
			id   []byte
		)
		if tid, ok := ne.entry.Tree(); ok {
			kind = kindTree
			id = tid[:]
		} else {
			leaf, _ := ne.entry.Leaf()
			kind = uint64(leaf.Type)
			id = leaf.ID[:]
		}

		inner = inner[:0]
		inner = protowire.AppendTag(inner, fieldName, protowire.BytesType)
		inner = protowire.AppendString(inner, string(ne.name))
		inner = protowire.AppendTag(inner, fieldKind, protowire.VarintType)
		inner = protowire.AppendVarint(inner, kind)
		inner = protowire.AppendTag(inner, fieldID, protowire.BytesType)
		inner = protowire.AppendBytes(inner, id)

		buf = protowire.AppendTag(buf, fieldEntries, protowire.BytesType)
		buf = protowire.AppendBytes(buf, inner)
	}
	return buf
}

// DecodeTree parses the output of Encode.
func DecodeTree(b []byte) (*Tree, error) {
	t := new(Tree)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "parsing tag")
		}
		b = b[n:]

		if num != fieldEntries || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "skipping field")
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "parsing entry")
		}
		b = b[n:]

		ne, err := decodeEntry(v)
		if err != nil {
			return nil, err
		}
		if len(t.entries) > 0 && t.entries[len(t.entries)-1].name >= ne.name {
			return nil, errors.Wrapf(ErrBadTree, "entry %q out of order", ne.name)
		}
		t.entries = append(t.entries, ne)
	}
	return t, nil
}

func decodeEntry(b []byte) (namedEntry, error) {
	var (
		name           string
		kind           uint64
		id             []byte
		gotName, gotID bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return namedEntry{}, errors.Wrap(protowire.ParseError(n), "parsing entry tag")
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			name, gotName = string(v), true
		case num == fieldKind && typ == protowire.VarintType:
			kind, n = protowire.ConsumeVarint(b)
		case num == fieldID && typ == protowire.BytesType:
			id, n = protowire.ConsumeBytes(b)
			gotID = true
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return namedEntry{}, errors.Wrap(protowire.ParseError(n), "parsing entry field")
		}
		b = b[n:]
	}

	if !gotName || !gotID {
		return namedEntry{}, errors.Wrap(ErrBadTree, "entry missing name or id")
	}
	elem, err := mpath.NewElement(name)
	if err != nil {
		return namedEntry{}, errors.Wrap(ErrBadTree, err.Error())
	}

	if kind == kindTree {
		var tid TreeID
		if len(id) != len(tid) {
			return namedEntry{}, errors.Wrapf(ErrBadTree, "entry %q has %d-byte id", name, len(id))
		}
		copy(tid[:], id)
		return namedEntry{name: elem, entry: NewTreeEntry[TreeID, Leaf](tid)}, nil
	}

	ft := FileType(kind)
	if ft != Regular && ft != Executable && ft != Symlink {
		return namedEntry{}, errors.Wrapf(ErrBadTree, "entry %q has kind %d", name, kind)
	}
	var leaf Leaf
	if len(id) != len(leaf.ID) {
		return namedEntry{}, errors.Wrapf(ErrBadTree, "entry %q has %d-byte id", name, len(id))
	}
	copy(leaf.ID[:], id)
	leaf.Type = ft
	return namedEntry{name: elem, entry: NewLeafEntry[TreeID](leaf)}, nil
}
