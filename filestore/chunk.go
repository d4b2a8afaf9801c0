package filestore

import (
	"io"

	"github.com/bobg/hashsplit"
	"github.com/pkg/errors"
)

// chunks reads r to the end, calling emit on each chunk.
// Chunk boundaries are fixed or content-defined depending on f.splitBits.
// Each chunk passed to emit is freshly allocated and never longer than f.chunkSize.
func (f *Filestore) chunks(r io.Reader, emit func([]byte) error) error {
	if f.splitBits == 0 {
		return fixedChunks(r, f.chunkSize, emit)
	}
	return splitChunks(r, f.chunkSize, f.splitBits, emit)
}

func fixedChunks(r io.Reader, size uint64, emit func([]byte) error) error {
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if err := emit(buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading content")
		}
	}
}

func splitChunks(r io.Reader, max uint64, bits uint, emit func([]byte) error) error {
	spl := hashsplit.NewSplitter(func(bytes []byte, _ uint) error {
		// The splitter reuses its buffer.
		for len(bytes) > 0 {
			n := uint64(len(bytes))
			if n > max {
				n = max
			}
			chunk := make([]byte, n)
			copy(chunk, bytes)
			if err := emit(chunk); err != nil {
				return err
			}
			bytes = bytes[n:]
		}
		return nil
	})
	spl.MinSize = 1024
	if uint64(spl.MinSize) > max {
		spl.MinSize = int(max)
	}
	spl.SplitBits = bits

	if _, err := io.Copy(spl, r); err != nil {
		return errors.Wrap(err, "splitting content")
	}
	return errors.Wrap(spl.Close(), "splitting content")
}
