package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// frameID prefixes every game frame on the RakNet transport.
const frameID = 0xfe

// FrameStage strips and restores the frame id byte and applies session
// encryption once it has been activated. Activation happens exactly once
// per connection and is published through an atomic pointer so every
// frame processed afterwards observes it.
type FrameStage struct {
	cipher atomic.Pointer[sessionCipher]
}

func NewFrameStage() *FrameStage { return &FrameStage{} }

func (f *FrameStage) Name() string { return StageFrame }

// EnableEncryption switches the stage to encrypted framing. The key never
// reverts: the connection stays encrypted for its remaining lifetime.
func (f *FrameStage) EnableEncryption(key []byte) error {
	cipher, err := newSessionCipher(key)
	if err != nil {
		return err
	}
	if !f.cipher.CompareAndSwap(nil, cipher) {
		return errors.New("session encryption already enabled")
	}
	return nil
}

// Encrypted reports whether session encryption has been activated.
func (f *FrameStage) Encrypted() bool { return f.cipher.Load() != nil }

func (f *FrameStage) Inbound(frames [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		if len(frame) < 1 || frame[0] != frameID {
			return nil, fmt.Errorf("unexpected frame id %#x", frameByte(frame))
		}
		body := frame[1:]
		if cipher := f.cipher.Load(); cipher != nil {
			var err error
			body, err = cipher.decrypt(body)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, body)
	}
	return out, nil
}

func (f *FrameStage) Outbound(frames [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(frames))
	for _, body := range frames {
		if cipher := f.cipher.Load(); cipher != nil {
			body = cipher.encrypt(body)
		}
		frame := make([]byte, 0, 1+len(body))
		frame = append(frame, frameID)
		out = append(out, append(frame, body...))
	}
	return out, nil
}

func frameByte(frame []byte) byte {
	if len(frame) == 0 {
		return 0
	}
	return frame[0]
}
