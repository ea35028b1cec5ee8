package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tidegate/tidegate/internal/auth"
	"github.com/tidegate/tidegate/internal/compression"
	"github.com/tidegate/tidegate/internal/metrics"
	"github.com/tidegate/tidegate/internal/protocol"
)

// idServerToClientHandshake switches the client into encrypted mode.
const idServerToClientHandshake = 0x03

// PacketHandler consumes decoded packets after the handshake finished.
// Game packet semantics live outside this module.
type PacketHandler interface {
	HandlePacket(set *StageSet, header protocol.Header, payload []byte) error
}

// SessionFactory creates the session bookkeeping object for an
// authenticated connection and returns the handler taking over its
// packets. A nil handler drops further packets.
type SessionFactory func(set *StageSet, result *auth.Result) PacketHandler

type handshakeState int

const (
	awaitingLogin handshakeState = iota
	handshakeInFlight
	handshakeComplete
	connectionClosed
)

// Peer is the terminal pipeline stage. It owns the handshake lifecycle of
// its connection: it admits exactly one login packet, offloads handshake
// verification to the worker pool while the stage set buffers traffic,
// applies the post-handshake mutations (encryption key, compression swap)
// and finally hands the connection over to the session handler.
type Peer struct {
	conn        Conn
	set         *StageSet
	coordinator *auth.Coordinator
	pool        *Pool
	factory     SessionFactory
	algorithm   compression.Algorithm
	log         zerolog.Logger

	mu      sync.Mutex
	state   handshakeState
	handler PacketHandler
}

func (p *Peer) Name() string { return StagePeer }

func (p *Peer) handlePacket(header protocol.Header, payload []byte) error {
	p.mu.Lock()
	state := p.state
	handler := p.handler
	p.mu.Unlock()

	switch state {
	case handshakeComplete:
		if handler == nil {
			return nil
		}
		return handler.HandlePacket(p.set, header, payload)
	case handshakeInFlight:
		// Frames are gated at the stage set while the handshake runs, so
		// a packet here means the gate was bypassed.
		return errors.New("packet processed during handshake")
	case connectionClosed:
		// A lingering transport may still deliver frames after Close; a
		// login here must not restart the handshake.
		return nil
	}

	if header.ID != protocol.IDLogin {
		p.closeWith("unexpected packet before login", fmt.Errorf("packet %#x before login", header.ID))
		return nil
	}
	login, err := protocol.DecodeLogin(payload)
	if err != nil {
		p.closeWith("malformed login", fmt.Errorf("%w: login packet: %v", auth.ErrFormat, err))
		return nil
	}

	p.mu.Lock()
	p.state = handshakeInFlight
	p.mu.Unlock()
	p.set.gate()

	p.pool.Submit(func() {
		result, err := p.coordinator.ProcessHandshake(p, login.ClientData, login.Chain, int(login.ProtocolVersion))
		p.completeHandshake(result, err)
	})
	return nil
}

func (p *Peer) completeHandshake(result *auth.Result, err error) {
	if err != nil {
		p.closeWith(disconnectReason(err), err)
		return
	}

	if p.conn.RakVersion() == protocol.LatestVersion {
		codec, err := compression.PostHandshakeCodec(p.algorithm)
		if err != nil {
			p.closeWith(disconnectReason(err), err)
			return
		}
		if err := p.set.Replace(StageCompression, NewCompressionStage(codec)); err != nil {
			p.closeWith("internal error", err)
			return
		}
		metrics.CompressionSwapsTotal.WithLabelValues(string(codec.Algorithm())).Inc()
	}

	p.mu.Lock()
	p.state = handshakeComplete
	p.handler = p.factory(p.set, result)
	p.mu.Unlock()

	metrics.HandshakesTotal.Inc()
	p.log.Info().
		Str("display_name", result.DisplayName()).
		Bool("xbox_authenticated", result.XboxAuthenticated).
		Msg("login handshake complete")

	if err := p.set.ungate(); err != nil {
		p.closeWith("internal error", err)
	}
}

// RemoteAddr implements auth.Session.
func (p *Peer) RemoteAddr() string { return p.conn.RemoteAddr() }

// EnableEncryption implements auth.Session. The handshake token is the
// last plaintext frame written; the cipher activates only after the write
// completed, and inbound traffic is still gated at this point, so the
// first encrypted client frame is decrypted with the cipher in place.
func (p *Peer) EnableEncryption(key []byte, handshake *auth.SignedToken) error {
	token := []byte(handshake.Raw())
	payload := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen32+len(token)), uint64(len(token)))
	payload = append(payload, token...)
	err := p.set.SendPackets([]Packet{{
		Header:  protocol.Header{ID: idServerToClientHandshake},
		Payload: payload,
	}})
	if err != nil {
		return fmt.Errorf("sending encryption handshake: %w", err)
	}
	if err := p.set.frameStage().EnableEncryption(key); err != nil {
		return err
	}
	metrics.EncryptionEnabled.Inc()
	return nil
}

func (p *Peer) closeWith(reason string, err error) {
	p.mu.Lock()
	p.state = connectionClosed
	p.mu.Unlock()
	metrics.HandshakeErrorsTotal.WithLabelValues(errorLabel(err)).Inc()
	p.log.Warn().Err(err).Str("reason", reason).Msg("closing connection")
	_ = p.set.Close(reason)
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, auth.ErrChain):
		return "chain"
	case errors.Is(err, auth.ErrSignature):
		return "signature"
	case errors.Is(err, auth.ErrFormat):
		return "format"
	case errors.Is(err, auth.ErrCrypto):
		return "crypto"
	case errors.Is(err, protocol.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, compression.ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	default:
		return "internal"
	}
}

func disconnectReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrChain):
		return "invalid certificate chain"
	case errors.Is(err, auth.ErrSignature):
		return "invalid login signature"
	case errors.Is(err, auth.ErrFormat):
		return "malformed login"
	case errors.Is(err, protocol.ErrUnsupportedVersion):
		return "unsupported protocol version"
	case errors.Is(err, compression.ErrUnsupportedAlgorithm):
		return "unsupported compression algorithm"
	default:
		return "internal error"
	}
}
