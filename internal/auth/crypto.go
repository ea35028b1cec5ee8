package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const randomTokenSize = 16

// GenerateKeyPair produces the ephemeral P-384 key pair used for a single
// session's encryption handshake.
func GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating key pair: %v", ErrCrypto, err)
	}
	return key, nil
}

// GenerateRandomToken produces the random salt mixed into session key
// derivation so that colliding key pairs never share a session key.
func GenerateRandomToken() ([]byte, error) {
	token := make([]byte, randomTokenSize)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("%w: generating random token: %v", ErrCrypto, err)
	}
	return token, nil
}

// DeriveSessionKey computes the shared session secret: SHA-256 over the
// random token followed by the ECDH shared secret of the two keys. Both
// ends compute the same key from their own private and the peer's public
// key.
func DeriveSessionKey(serverKey *ecdsa.PrivateKey, clientKey *ecdsa.PublicKey, token []byte) ([]byte, error) {
	priv, err := serverKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: converting private key: %v", ErrCrypto, err)
	}
	pub, err := clientKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: converting public key: %v", ErrCrypto, err)
	}
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: deriving shared secret: %v", ErrCrypto, err)
	}
	digest := sha256.New()
	digest.Write(token)
	digest.Write(secret)
	return digest.Sum(nil), nil
}

type handshakeClaims struct {
	Salt string `json:"salt"`
}

// BuildHandshakeToken produces the signed token sent to the client to
// switch the session into encrypted mode. The payload carries the random
// token, the header carries the server public key, so the client can run
// the same derivation.
func BuildHandshakeToken(serverKey *ecdsa.PrivateKey, token []byte) (*SignedToken, error) {
	payload, err := json.Marshal(handshakeClaims{
		Salt: base64.StdEncoding.EncodeToString(token),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding handshake claims: %v", ErrCrypto, err)
	}
	return SignToken(payload, serverKey)
}
