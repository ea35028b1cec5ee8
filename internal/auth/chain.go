package auth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/tidwall/gjson"
)

// mojangRootKeyBase64 is the public key signing the authoritative part of
// every Xbox-authenticated login chain.
const mojangRootKeyBase64 = "MHYwEAYHKoZIzj0CAQYFK4EEACIDYgAE8ELkixyLcwlZryUQcu1TvPOmI2B7vX83ndnWRUaXm74wFfa5f/lwQNTfrLVHa2PmenpGI6JhIMUJaWZrjmMj90NoKNFSNBuKdm8rYiXsfaz3K36x/1U26HpG0ZxK/V1V"

// MojangRootKey returns the trusted root key built into the proxy.
func MojangRootKey() *ecdsa.PublicKey {
	key, err := ParsePublicKey(mojangRootKeyBase64)
	if err != nil {
		panic(err)
	}
	return key
}

// ChainValidator verifies certificate chains against a trusted root key.
// Safe for concurrent use, the root key is read-only.
type ChainValidator struct {
	rootKey *ecdsa.PublicKey
}

func NewChainValidator(rootKey *ecdsa.PublicKey) *ChainValidator {
	return &ChainValidator{rootKey: rootKey}
}

// Validate walks the chain in outer to inner order. Every adjacent pair
// must verify against the identityPublicKey declared by the predecessor,
// any failure there is fatal. Root trust is a separate concern: each token
// is additionally checked against the trusted root until one verifies, and
// the chain is trusted if any link is root-signed. The returned key is the
// identityPublicKey of the innermost token, which signs the client data.
func (v *ChainValidator) Validate(chain []string) (trusted bool, leafKey *ecdsa.PublicKey, err error) {
	if len(chain) == 0 {
		return false, nil, fmt.Errorf("%w: empty chain", ErrChain)
	}

	var lastKey *ecdsa.PublicKey
	for i, raw := range chain {
		token, err := ParseSignedToken(raw)
		if err != nil {
			return false, nil, fmt.Errorf("%w: token %d: %v", ErrChain, i, err)
		}

		if !trusted && token.Verify(v.rootKey) == nil {
			trusted = true
		}
		if lastKey != nil {
			if err := token.Verify(lastKey); err != nil {
				return false, nil, fmt.Errorf("%w: token %d not signed by preceding identity key: %v", ErrChain, i, err)
			}
		}

		ipk := gjson.GetBytes(token.Payload(), "identityPublicKey")
		if !ipk.Exists() {
			return false, nil, fmt.Errorf("%w: token %d is missing identityPublicKey", ErrChain, i)
		}
		lastKey, err = ParsePublicKey(ipk.String())
		if err != nil {
			return false, nil, fmt.Errorf("%w: token %d identityPublicKey: %v", ErrChain, i, err)
		}
	}
	return trusted, lastKey, nil
}
