package pipeline

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// checksumSize is the length of the integrity trailer appended to every
// encrypted frame body.
const checksumSize = 8

// sessionCipher implements the symmetric session encryption: AES-256-CTR
// over the frame body with a per-frame integrity trailer derived from the
// send counter, the plaintext and the session key. Separate streams and
// counters per direction. Not safe for concurrent use; a connection's
// frames are processed sequentially by design.
type sessionCipher struct {
	key         []byte
	encrypt0    cipher.Stream
	decrypt0    cipher.Stream
	sendCounter uint64
	recvCounter uint64
}

func newSessionCipher(key []byte) (*sessionCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating session cipher: %w", err)
	}
	// Both directions start from the same IV; the per-direction counters
	// keep the checksums distinct.
	iv := key[:aes.BlockSize]
	return &sessionCipher{
		key:      key,
		encrypt0: cipher.NewCTR(block, iv),
		decrypt0: cipher.NewCTR(block, iv),
	}, nil
}

func (c *sessionCipher) encrypt(body []byte) []byte {
	sum := c.checksum(c.sendCounter, body)
	c.sendCounter++
	out := make([]byte, len(body)+checksumSize)
	copy(out, body)
	copy(out[len(body):], sum)
	c.encrypt0.XORKeyStream(out, out)
	return out
}

func (c *sessionCipher) decrypt(body []byte) ([]byte, error) {
	if len(body) < checksumSize {
		return nil, errors.New("encrypted frame shorter than checksum")
	}
	plain := make([]byte, len(body))
	c.decrypt0.XORKeyStream(plain, body)
	payload := plain[:len(plain)-checksumSize]
	want := c.checksum(c.recvCounter, payload)
	c.recvCounter++
	if !bytes.Equal(plain[len(payload):], want) {
		return nil, errors.New("encrypted frame checksum mismatch")
	}
	return payload, nil
}

func (c *sessionCipher) checksum(counter uint64, payload []byte) []byte {
	digest := sha256.New()
	digest.Write(binary.LittleEndian.AppendUint64(nil, counter))
	digest.Write(payload)
	digest.Write(c.key)
	return digest.Sum(nil)[:checksumSize]
}
