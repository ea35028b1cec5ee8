package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidegate/tidegate/internal/protocol"
)

func TestInitialCodecVersionTable(t *testing.T) {
	tests := []struct {
		version int
		want    Codec
	}{
		{7, zlibCodec{}},
		{8, zlibCodec{}},
		{9, zlibCodec{}},
		{10, zlibCodec{raw: true}},
		{11, noopCodec{}},
	}
	for _, tt := range tests {
		codec, err := InitialCodec(Snappy, tt.version)
		require.NoError(t, err, "version %d", tt.version)
		require.Equal(t, tt.want, codec, "version %d", tt.version)
	}
}

func TestInitialCodecIgnoresAlgorithmOnOldVersions(t *testing.T) {
	// Configuration cannot override the fixed codec of old versions.
	for _, algorithm := range []Algorithm{None, Zlib, Snappy, LZ4} {
		codec, err := InitialCodec(algorithm, 9)
		require.NoError(t, err)
		require.Equal(t, zlibCodec{}, codec)
	}
}

func TestInitialCodecUnknownVersion(t *testing.T) {
	_, err := InitialCodec(Zlib, 12)
	require.ErrorIs(t, err, protocol.ErrUnsupportedVersion)
}

func TestPostHandshakeCodecTable(t *testing.T) {
	tests := []struct {
		algorithm Algorithm
		want      Codec
	}{
		{Zlib, zlibCodec{raw: true}},
		{Snappy, snappyCodec{}},
		{LZ4, lz4Codec{}},
		{None, noopCodec{}},
	}
	for _, tt := range tests {
		codec, err := PostHandshakeCodec(tt.algorithm)
		require.NoError(t, err, "algorithm %s", tt.algorithm)
		require.Equal(t, tt.want, codec)
	}
}

func TestPostHandshakeCodecUnknownAlgorithm(t *testing.T) {
	_, err := PostHandshakeCodec(Algorithm("brotli"))
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"none", "zlib", "snappy", "lz4"} {
		algorithm, err := ParseAlgorithm(name)
		require.NoError(t, err)
		require.Equal(t, Algorithm(name), algorithm)
	}
	_, err := ParseAlgorithm("gzip")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestCodecRoundTrips(t *testing.T) {
	payload := append(bytes.Repeat([]byte("batch payload "), 100), 0, 1, 2, 3)
	codecs := []Codec{
		zlibCodec{},
		zlibCodec{raw: true},
		snappyCodec{},
		lz4Codec{},
		noopCodec{},
	}
	for _, codec := range codecs {
		compressed, err := codec.Compress(payload)
		require.NoError(t, err, "algorithm %s", codec.Algorithm())
		decompressed, err := codec.Decompress(compressed)
		require.NoError(t, err, "algorithm %s", codec.Algorithm())
		require.Equal(t, payload, decompressed, "algorithm %s", codec.Algorithm())
	}
}

func TestZlibVariantsAreIncompatible(t *testing.T) {
	payload := []byte("some batch payload")
	framed, err := zlibCodec{}.Compress(payload)
	require.NoError(t, err)

	// Raw deflate must not accept a zlib-framed stream.
	_, err = zlibCodec{raw: true}.Decompress(framed)
	require.Error(t, err)
}

func TestDecompressGarbage(t *testing.T) {
	garbage := []byte{0xff, 0xfe, 0xfd, 0xfc}
	for _, codec := range []Codec{zlibCodec{}, snappyCodec{}} {
		_, err := codec.Decompress(garbage)
		require.Error(t, err, "algorithm %s", codec.Algorithm())
	}
}
