package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tidegate/tidegate/internal/compression"
	"github.com/tidegate/tidegate/internal/protocol"
)

// CompressionStage wraps a compression codec as a chain slot. The codec
// is fixed; renegotiation replaces the whole stage in place.
type CompressionStage struct {
	codec compression.Codec
}

func NewCompressionStage(codec compression.Codec) *CompressionStage {
	return &CompressionStage{codec: codec}
}

func (c *CompressionStage) Name() string { return StageCompression }

// Codec exposes the wrapped codec for inspection.
func (c *CompressionStage) Codec() compression.Codec { return c.codec }

func (c *CompressionStage) Inbound(frames [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		decompressed, err := c.codec.Decompress(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, decompressed)
	}
	return out, nil
}

func (c *CompressionStage) Outbound(frames [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		compressed, err := c.codec.Compress(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, compressed)
	}
	return out, nil
}

// BatchDecodeStage splits a decompressed batch into its packets. Each
// packet inside a batch is prefixed with its varuint32 length.
type BatchDecodeStage struct{}

func NewBatchDecodeStage() *BatchDecodeStage { return &BatchDecodeStage{} }

func (b *BatchDecodeStage) Name() string { return StageBatchDecode }

func (b *BatchDecodeStage) Inbound(frames [][]byte) ([][]byte, error) {
	var out [][]byte
	for _, batch := range frames {
		for len(batch) > 0 {
			length, n := binary.Uvarint(batch)
			if n <= 0 {
				return nil, errors.New("malformed packet length in batch")
			}
			batch = batch[n:]
			if uint64(len(batch)) < length {
				return nil, fmt.Errorf("truncated packet in batch: need %d bytes, have %d", length, len(batch))
			}
			out = append(out, batch[:length])
			batch = batch[length:]
		}
	}
	return out, nil
}

func (b *BatchDecodeStage) Outbound(frames [][]byte) ([][]byte, error) {
	return frames, nil
}

// BatchEncodeStage joins outbound packets into a single batch payload.
type BatchEncodeStage struct{}

func NewBatchEncodeStage() *BatchEncodeStage { return &BatchEncodeStage{} }

func (b *BatchEncodeStage) Name() string { return StageBatchEncode }

func (b *BatchEncodeStage) Inbound(frames [][]byte) ([][]byte, error) {
	return frames, nil
}

func (b *BatchEncodeStage) Outbound(frames [][]byte) ([][]byte, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	var batch []byte
	for _, frame := range frames {
		batch = binary.AppendUvarint(batch, uint64(len(frame)))
		batch = append(batch, frame...)
	}
	return [][]byte{batch}, nil
}

// PacketStage holds the version-specific packet header codec. It is the
// boundary between raw frames and decoded packets, handled specially by
// the stage set.
type PacketStage struct {
	codec protocol.Codec
}

func NewPacketStage(codec protocol.Codec) *PacketStage {
	return &PacketStage{codec: codec}
}

func (p *PacketStage) Name() string { return StagePacket }

// Codec exposes the wrapped codec for inspection.
func (p *PacketStage) Codec() protocol.Codec { return p.codec }
