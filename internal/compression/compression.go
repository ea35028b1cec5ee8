// Package compression provides the batch compression codecs of the
// Bedrock wire format and the policy selecting them per protocol version.
package compression

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported compression algorithm")
	// ErrPayloadTooLarge guards decompression against hostile ratios.
	ErrPayloadTooLarge = errors.New("decompressed payload exceeds limit")
)

// maxDecompressedSize bounds a single decompressed batch.
const maxDecompressedSize = 8 << 20

// Algorithm is a configured compression algorithm identifier.
type Algorithm string

const (
	None   Algorithm = "none"
	Zlib   Algorithm = "zlib"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
)

// ParseAlgorithm maps a configuration string to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case None, Zlib, Snappy, LZ4:
		return Algorithm(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// Codec compresses and decompresses whole batch payloads.
type Codec interface {
	Algorithm() Algorithm
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// noopCodec passes payloads through untouched. It is the placeholder
// installed on the newest protocol version until the handshake completes.
type noopCodec struct{}

func (noopCodec) Algorithm() Algorithm                   { return None }
func (noopCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noopCodec) Decompress(data []byte) ([]byte, error) { return data, nil }
