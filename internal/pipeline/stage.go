// Package pipeline assembles the per-connection processing chain of the
// proxy. Every connection owns one StageSet with a fixed stage order:
//
//	frame-codec -> compression-codec -> batch-decoder -> batch-encoder ->
//	packet-codec -> peer
//
// Stages are named, replaceable slots. The only mutation ever applied to
// a live chain is an in-place replacement of a single slot (compression
// renegotiation after the handshake); stages are never inserted, removed
// or reordered.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/tidegate/tidegate/internal/metrics"
	"github.com/tidegate/tidegate/internal/protocol"
)

// Stage names, fixed across protocol versions.
const (
	StageFrame       = "frame-codec"
	StageCompression = "compression-codec"
	StageBatchDecode = "batch-decoder"
	StageBatchEncode = "batch-encoder"
	StagePacket      = "packet-codec"
	StagePeer        = "peer"
)

// Stage is a named slot in the chain.
type Stage interface {
	Name() string
}

// FrameTransformer is a stage operating on raw frame payloads. A single
// input may expand to several outputs (batch decoding) or several inputs
// may collapse into one (batch encoding).
type FrameTransformer interface {
	Stage
	Inbound(frames [][]byte) ([][]byte, error)
	Outbound(frames [][]byte) ([][]byte, error)
}

// Conn is the transport-level connection a StageSet is attached to. The
// reliable-UDP internals live outside this package; the pipeline only
// reads the negotiated protocol version and moves whole frames.
type Conn interface {
	// RakVersion returns the RakNet protocol version negotiated before
	// the pipeline was built. Fixed for the connection lifetime.
	RakVersion() int
	RemoteAddr() string
	// WriteFrame hands a fully encoded wire frame to the transport.
	WriteFrame(frame []byte) error
	// Close tears the connection down with an indicative reason.
	Close(reason string) error
}

// StageSet is the ordered per-connection chain. Inbound frames enter via
// HandleInbound in strict arrival order; while a handshake is in flight
// the set buffers frames and replays them once the result landed, so no
// traffic passes the packet codec before authentication finished.
type StageSet struct {
	conn      Conn
	closeOnce sync.Once

	mu      sync.Mutex
	stages  []Stage
	gated   bool
	pending [][]byte
}

func newStageSet(conn Conn, stages []Stage) *StageSet {
	return &StageSet{conn: conn, stages: stages}
}

// Conn returns the transport connection the set is attached to.
func (s *StageSet) Conn() Conn { return s.conn }

// Close tears the connection down. Idempotent; the first reason wins.
func (s *StageSet) Close(reason string) error {
	var err error
	s.closeOnce.Do(func() {
		metrics.ConnectionsActive.Dec()
		err = s.conn.Close(reason)
	})
	return err
}

// Names returns the stage names in chain order.
func (s *StageSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.stages))
	for i, st := range s.stages {
		names[i] = st.Name()
	}
	return names
}

// Replace swaps the named slot in place. The replacement must be of the
// same kind as the stage it replaces; the chain never changes length or
// order.
func (s *StageSet) Replace(name string, stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.stages {
		if existing.Name() != name {
			continue
		}
		if _, ok := existing.(FrameTransformer); ok {
			if _, ok := stage.(FrameTransformer); !ok {
				return fmt.Errorf("stage %q must be replaced by a frame transformer", name)
			}
		}
		s.stages[i] = stage
		return nil
	}
	return fmt.Errorf("no stage named %q", name)
}

// gate starts buffering inbound frames until ungate is called.
func (s *StageSet) gate() {
	s.mu.Lock()
	s.gated = true
	s.mu.Unlock()
}

// ungate drains the pending frames in arrival order and only stops
// buffering once the queue is empty. Frames arriving mid-drain keep
// queueing behind the ones already pending, so a live frame can never
// overtake a queued one and the chain never runs on two goroutines at
// once.
func (s *StageSet) ungate() error {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.gated = false
			s.mu.Unlock()
			return nil
		}
		frame := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		if err := s.runChain(frame); err != nil {
			return err
		}
	}
}

// HandleInbound feeds one wire frame through the chain. Decoded packets
// end up at the peer stage. While the set is gated the frame is queued
// instead.
func (s *StageSet) HandleInbound(frame []byte) error {
	s.mu.Lock()
	if s.gated {
		s.pending = append(s.pending, frame)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.runChain(frame)
}

func (s *StageSet) runChain(frame []byte) error {
	s.mu.Lock()
	stages := make([]Stage, len(s.stages))
	copy(stages, s.stages)
	s.mu.Unlock()

	frames := [][]byte{frame}
	for _, stage := range stages {
		switch st := stage.(type) {
		case FrameTransformer:
			var err error
			frames, err = st.Inbound(frames)
			if err != nil {
				return fmt.Errorf("stage %s: %w", st.Name(), err)
			}
		case *PacketStage:
			for _, packet := range frames {
				header, payload, err := st.codec.Decode(packet)
				if err != nil {
					return fmt.Errorf("stage %s: %w", st.Name(), err)
				}
				if err := s.peer().handlePacket(header, payload); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return nil
}

// SendPackets encodes packets, batches them into a single wire frame and
// writes it to the transport.
func (s *StageSet) SendPackets(packets []Packet) error {
	s.mu.Lock()
	stages := make([]Stage, len(s.stages))
	copy(stages, s.stages)
	s.mu.Unlock()

	var frames [][]byte
	packetStage := s.packetStage()
	for _, p := range packets {
		encoded, err := packetStage.codec.Encode(p.Header, p.Payload)
		if err != nil {
			return fmt.Errorf("stage %s: %w", StagePacket, err)
		}
		frames = append(frames, encoded)
	}

	// Outbound traversal runs the byte stages in reverse chain order.
	for i := len(stages) - 1; i >= 0; i-- {
		st, ok := stages[i].(FrameTransformer)
		if !ok {
			continue
		}
		var err error
		frames, err = st.Outbound(frames)
		if err != nil {
			return fmt.Errorf("stage %s: %w", st.Name(), err)
		}
	}
	for _, frame := range frames {
		if err := s.conn.WriteFrame(frame); err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
	}
	return nil
}

// Packet is a decoded application packet.
type Packet struct {
	Header  protocol.Header
	Payload []byte
}

func (s *StageSet) peer() *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[len(s.stages)-1].(*Peer)
}

func (s *StageSet) packetStage() *PacketStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stages {
		if ps, ok := st.(*PacketStage); ok {
			return ps
		}
	}
	panic("pipeline: stage set built without packet codec")
}

func (s *StageSet) frameStage() *FrameStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stages {
		if fs, ok := st.(*FrameStage); ok {
			return fs
		}
	}
	panic("pipeline: stage set built without frame codec")
}
