// Package compress implements a Blobstore that compresses and uncompresses blobs
// on their way into and out of a nested store.
//
// Each stored blob begins with a one-byte tag naming the codec that produced it,
// so a Store can read blobs written with any codec.
// Blobs that do not shrink are stored uncompressed.
package compress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = &Store{}

// Compressor is a compression codec.
type Compressor interface {
	// Tag identifies the codec in stored blobs.
	Tag() byte
	Compress([]byte) ([]byte, error)
	Uncompress([]byte) ([]byte, error)
}

const tagRaw = 0

// ErrUnknownCodec means a stored blob has a tag this package does not know.
var ErrUnknownCodec = errors.New("unknown codec")

var codecs = map[byte]Compressor{}

func registerCodec(c Compressor) {
	codecs[c.Tag()] = c
}

// Store is a compressing wrapper around a nested Blobstore.
type Store struct {
	s scm.Blobstore
	c Compressor
}

// New produces a new Store that compresses with c.
func New(s scm.Blobstore, c Compressor) *Store {
	return &Store{s: s, c: c}
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := s.s.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	u, err := uncompress(b)
	return u, err == nil, errors.Wrapf(err, "uncompressing %s", key)
}

func uncompress(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("missing codec tag")
	}
	tag, payload := b[0], b[1:]
	if tag == tagRaw {
		return payload, nil
	}
	c, ok := codecs[tag]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "tag %d", tag)
	}
	return c.Uncompress(payload)
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	comp, err := s.c.Compress(b)
	if err != nil {
		return errors.Wrapf(err, "compressing %s", key)
	}

	var out []byte
	if len(comp) < len(b) {
		out = make([]byte, 0, 1+len(comp))
		out = append(out, s.c.Tag())
		out = append(out, comp...)
	} else {
		out = make([]byte, 0, 1+len(b))
		out = append(out, tagRaw)
		out = append(out, b...)
	}
	return s.s.Put(ctx, key, out)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	return s.s.IsPresent(ctx, key)
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	return s.s.AssertPresent(ctx, key)
}

func init() {
	store.Register("compress", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		var c Compressor
		switch codec, _ := store.String(conf, "codec"); codec {
		case "", "zstd":
			c = Zstd{}
		case "lz4":
			c = LZ4{}
		case "flate":
			level, ok, err := store.Int(conf, "level")
			if err != nil {
				return nil, err
			}
			if !ok {
				level = -1
			}
			c = Flate{Level: level}
		default:
			return nil, errors.Errorf("unknown codec %s", codec)
		}
		return New(nested, c), nil
	})
}
