package compress

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

func init() {
	registerCodec(Zstd{})
	registerCodec(LZ4{})
	registerCodec(Flate{})
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	// EncodeAll and DecodeAll are safe for concurrent use.
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

// Zstd is the zstandard codec.
type Zstd struct{}

func (Zstd) Tag() byte { return 'z' }

func (Zstd) Compress(inp []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(inp, nil), nil
}

func (Zstd) Uncompress(inp []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(inp, nil)
}

// LZ4 is the lz4 block codec.
// The block is preceded by the uncompressed length as a uvarint.
type LZ4 struct{}

func (LZ4) Tag() byte { return 'l' }

func (LZ4) Compress(inp []byte) ([]byte, error) {
	buf := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(inp)))
	n := binary.PutUvarint(buf, uint64(len(inp)))
	m, err := lz4.CompressBlock(inp, buf[n:], nil)
	if err != nil {
		return nil, errors.Wrap(err, "lz4-compressing")
	}
	if m == 0 && len(inp) > 0 {
		// Incompressible; the caller will store it raw.
		return inp, nil
	}
	return buf[:n+m], nil
}

func (LZ4) Uncompress(inp []byte) ([]byte, error) {
	size, n := binary.Uvarint(inp)
	if n <= 0 {
		return nil, errors.New("bad lz4 length prefix")
	}
	out := make([]byte, size)
	m, err := lz4.UncompressBlock(inp[n:], out)
	if err != nil {
		return nil, errors.Wrap(err, "lz4-uncompressing")
	}
	if uint64(m) != size {
		return nil, errors.Errorf("lz4 block has %d bytes, want %d", m, size)
	}
	return out, nil
}

// Flate is the DEFLATE codec.
type Flate struct {
	Level int
}

func (Flate) Tag() byte { return 'f' }

func (f Flate) Compress(inp []byte) ([]byte, error) {
	level := f.Level
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	buf := new(bytes.Buffer)
	w, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(inp); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Flate) Uncompress(inp []byte) ([]byte, error) {
	rr := flate.NewReader(bytes.NewReader(inp))
	defer rr.Close()
	return io.ReadAll(rr)
}
