// Package protocol contains the version-dispatched packet header codecs
// of the Bedrock wire format. Header byte layouts changed across RakNet
// protocol versions, so codec selection is a closed table keyed by the
// negotiated version and unknown versions fail hard: guessing a layout
// silently corrupts every packet on the connection.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrUnsupportedVersion = errors.New("unsupported raknet protocol version")

// LatestVersion is the newest supported RakNet protocol version. It is
// the only version with deferred compression negotiation.
const LatestVersion = 11

// Header identifies a packet and the split-screen sub-clients it belongs
// to.
type Header struct {
	ID              uint32
	SenderSubClient byte
	TargetSubClient byte
}

// Codec encodes and decodes packet headers for one wire-format version.
type Codec interface {
	// Encode prepends the header to payload.
	Encode(h Header, payload []byte) ([]byte, error)
	// Decode splits a packet into header and payload.
	Decode(packet []byte) (Header, []byte, error)
}

// CodecFor returns the packet codec for a RakNet protocol version.
func CodecFor(rakVersion int) (Codec, error) {
	switch rakVersion {
	case 7:
		return codecV1{}, nil
	case 8:
		return codecV2{}, nil
	case 9, 10, 11:
		return codecV3{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rakVersion)
	}
}

// SupportedVersions lists the versions CodecFor accepts, for startup
// validation and status reporting.
func SupportedVersions() []int {
	return []int{7, 8, 9, 10, 11}
}

// codecV1 writes the packet id as a single byte.
type codecV1 struct{}

func (codecV1) Encode(h Header, payload []byte) ([]byte, error) {
	if h.ID > 0xff {
		return nil, fmt.Errorf("packet id %d does not fit single-byte header", h.ID)
	}
	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(h.ID))
	return append(out, payload...), nil
}

func (codecV1) Decode(packet []byte) (Header, []byte, error) {
	if len(packet) < 1 {
		return Header{}, nil, errors.New("packet too short for header")
	}
	return Header{ID: uint32(packet[0])}, packet[1:], nil
}

// codecV2 adds sender and target sub-client bytes after the id.
type codecV2 struct{}

func (codecV2) Encode(h Header, payload []byte) ([]byte, error) {
	if h.ID > 0xff {
		return nil, fmt.Errorf("packet id %d does not fit single-byte header", h.ID)
	}
	out := make([]byte, 0, 3+len(payload))
	out = append(out, byte(h.ID), h.SenderSubClient, h.TargetSubClient)
	return append(out, payload...), nil
}

func (codecV2) Decode(packet []byte) (Header, []byte, error) {
	if len(packet) < 3 {
		return Header{}, nil, errors.New("packet too short for header")
	}
	return Header{
		ID:              uint32(packet[0]),
		SenderSubClient: packet[1],
		TargetSubClient: packet[2],
	}, packet[3:], nil
}

// codecV3 packs id and sub-clients into a single varuint32:
// id | sender<<10 | target<<12.
type codecV3 struct{}

func (codecV3) Encode(h Header, payload []byte) ([]byte, error) {
	if h.ID > 0x3ff {
		return nil, fmt.Errorf("packet id %d does not fit 10-bit header", h.ID)
	}
	header := uint64(h.ID) |
		uint64(h.SenderSubClient&0x3)<<10 |
		uint64(h.TargetSubClient&0x3)<<12
	out := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen32+len(payload)), header)
	return append(out, payload...), nil
}

func (codecV3) Decode(packet []byte) (Header, []byte, error) {
	header, n, err := uvarint(packet)
	if err != nil {
		return Header{}, nil, err
	}
	return Header{
		ID:              uint32(header & 0x3ff),
		SenderSubClient: byte(header >> 10 & 0x3),
		TargetSubClient: byte(header >> 12 & 0x3),
	}, packet[n:], nil
}

func uvarint(data []byte) (uint64, int, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, 0, errors.New("malformed varuint32")
	}
	return v, n, nil
}
