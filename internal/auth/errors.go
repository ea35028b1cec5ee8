package auth

import "errors"

var (
	// ErrChain covers a malformed or empty certificate chain and any
	// adjacent-signature verification failure inside it.
	ErrChain = errors.New("invalid certificate chain")
	// ErrSignature means the client data token is not signed by the
	// identity key declared at the end of the certificate chain.
	ErrSignature = errors.New("client data signature mismatch")
	// ErrFormat means a required claim is missing or has the wrong shape.
	ErrFormat = errors.New("malformed login payload")
	// ErrCrypto wraps key generation, derivation and signing failures at
	// the crypto library boundary.
	ErrCrypto = errors.New("crypto operation failed")
)
