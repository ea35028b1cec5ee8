// Package auth implements the login handshake of the proxy: certificate
// chain validation, client data extraction and the switch of a session
// into encrypted mode.
//
// Bedrock login tokens are compact-serialized JWS objects signed with
// ES384. Verification keys never come from a JWK set: every token names
// the key vouching for the next one in its identityPublicKey claim, and
// the chain is anchored by a well-known root key. Token headers carry the
// signer's own key in the x5u field as base64 DER, which the standard
// builder API of the JWT library does not emit, so signing assembles the
// compact form manually and only delegates the ES384 primitive.
package auth

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cristalhq/jwt/v5"
)

// SignedToken is a parsed compact JWS token. Immutable once parsed.
type SignedToken struct {
	raw     string
	token   *jwt.Token
	x5u     string
	payload []byte
}

type tokenHeader struct {
	Algorithm string `json:"alg"`
	X5U       string `json:"x5u,omitempty"`
}

// ParseSignedToken parses a compact-serialized token without verifying
// its signature. Use Verify with an explicit key afterwards.
func ParseSignedToken(raw string) (*SignedToken, error) {
	token, err := jwt.ParseNoVerify([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing token: %v", ErrFormat, err)
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(string(token.HeaderPart()))
	if err != nil {
		return nil, fmt.Errorf("%w: token header: %v", ErrFormat, err)
	}
	var header tokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: token header: %v", ErrFormat, err)
	}
	return &SignedToken{
		raw:     raw,
		token:   token,
		x5u:     header.X5U,
		payload: token.Claims(),
	}, nil
}

// Raw returns the compact serialization the token was parsed from.
func (t *SignedToken) Raw() string { return t.raw }

// Payload returns the decoded claims JSON.
func (t *SignedToken) Payload() []byte { return t.payload }

// X5U returns the base64 DER public key from the token header, empty if
// the header carries none.
func (t *SignedToken) X5U() string { return t.x5u }

// Verify checks the ES384 signature of the token against key.
func (t *SignedToken) Verify(key *ecdsa.PublicKey) error {
	verifier, err := jwt.NewVerifierES(jwt.ES384, key)
	if err != nil {
		return fmt.Errorf("%w: building verifier: %v", ErrCrypto, err)
	}
	return verifier.Verify(t.token)
}

// SignToken signs payload with key and produces a compact token whose
// header advertises the matching public key in x5u.
func SignToken(payload []byte, key *ecdsa.PrivateKey) (*SignedToken, error) {
	signer, err := jwt.NewSignerES(jwt.ES384, key)
	if err != nil {
		return nil, fmt.Errorf("%w: building signer: %v", ErrCrypto, err)
	}
	headerJSON, err := json.Marshal(tokenHeader{
		Algorithm: string(jwt.ES384),
		X5U:       EncodePublicKey(&key.PublicKey),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding header: %v", ErrCrypto, err)
	}
	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(payload)
	signature, err := signer.Sign([]byte(signingInput))
	if err != nil {
		return nil, fmt.Errorf("%w: signing token: %v", ErrCrypto, err)
	}
	raw := signingInput + "." + base64.RawURLEncoding.EncodeToString(signature)
	return ParseSignedToken(raw)
}

// ParsePublicKey decodes a base64 DER (SPKI) EC public key as found in
// identityPublicKey claims and x5u headers.
func ParsePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: public key base64: %v", ErrFormat, err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: public key DER: %v", ErrFormat, err)
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not an EC key", ErrFormat)
	}
	return ecKey, nil
}

// EncodePublicKey is the inverse of ParsePublicKey.
func EncodePublicKey(key *ecdsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		// Only reachable with an invalid curve point, which cannot be
		// constructed through this package.
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(der)
}
