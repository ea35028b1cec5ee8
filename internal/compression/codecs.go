package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// zlibCodec implements both historical zlib variants: framed (with the
// zlib header and checksum) for old protocol versions and raw deflate for
// the newer ones.
type zlibCodec struct {
	raw bool
}

func (zlibCodec) Algorithm() Algorithm { return Zlib }

func (c zlibCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	if c.raw {
		w, err = flate.NewWriter(&buf, flate.DefaultCompression)
	} else {
		w, err = zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	}
	if err != nil {
		return nil, fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flushing batch: %w", err)
	}
	return buf.Bytes(), nil
}

func (c zlibCodec) Decompress(data []byte) ([]byte, error) {
	var r io.ReadCloser
	if c.raw {
		r = flate.NewReader(bytes.NewReader(data))
	} else {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("reading zlib header: %w", err)
		}
		r = zr
	}
	defer func() { _ = r.Close() }()
	return readLimited(r)
}

type snappyCodec struct{}

func (snappyCodec) Algorithm() Algorithm { return Snappy }

func (snappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decompress(data []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("reading snappy length: %w", err)
	}
	if n > maxDecompressedSize {
		return nil, ErrPayloadTooLarge
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompressing snappy batch: %w", err)
	}
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) Algorithm() Algorithm { return LZ4 }

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing lz4 batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flushing lz4 batch: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	return readLimited(lz4.NewReader(bytes.NewReader(data)))
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing batch: %w", err)
	}
	if len(out) > maxDecompressedSize {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}
