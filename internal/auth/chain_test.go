package auth

import (
	"crypto/ecdsa"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// signChainToken builds one chain link: a token signed by signer whose
// payload declares next as the identity key for the following link.
func signChainToken(t *testing.T, signer *ecdsa.PrivateKey, next *ecdsa.PublicKey, extraClaims map[string]any) string {
	t.Helper()
	claims := map[string]any{
		"identityPublicKey": EncodePublicKey(next),
	}
	for k, v := range extraClaims {
		claims[k] = v
	}
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	token, err := SignToken(payload, signer)
	require.NoError(t, err)
	return token.Raw()
}

func TestValidateChainFullyRootSigned(t *testing.T) {
	root := generateTestKey(t)
	leaf := generateTestKey(t)

	// Every link signed by the root, each declaring the root key again so
	// the adjacent checks stay valid, the last one declaring the leaf.
	chain := []string{
		signChainToken(t, root, &root.PublicKey, nil),
		signChainToken(t, root, &root.PublicKey, nil),
		signChainToken(t, root, &leaf.PublicKey, nil),
	}

	trusted, leafKey, err := NewChainValidator(&root.PublicKey).Validate(chain)
	require.NoError(t, err)
	require.True(t, trusted)
	require.True(t, leaf.PublicKey.Equal(leafKey))
}

func TestValidateChainRootSignsOuterTokenOnly(t *testing.T) {
	root := generateTestKey(t)
	intermediate := generateTestKey(t)
	leaf := generateTestKey(t)

	chain := []string{
		signChainToken(t, root, &intermediate.PublicKey, nil),
		signChainToken(t, intermediate, &leaf.PublicKey, nil),
	}

	trusted, leafKey, err := NewChainValidator(&root.PublicKey).Validate(chain)
	require.NoError(t, err)
	require.True(t, trusted)
	require.True(t, leaf.PublicKey.Equal(leafKey))
}

func TestValidateChainSelfSignedIsUntrusted(t *testing.T) {
	root := generateTestKey(t)
	self := generateTestKey(t)
	leaf := generateTestKey(t)

	// Sound chain with no root-signed link anywhere: verdict false but no
	// error, matching offline (non Xbox-authenticated) logins.
	chain := []string{
		signChainToken(t, self, &leaf.PublicKey, nil),
	}

	trusted, leafKey, err := NewChainValidator(&root.PublicKey).Validate(chain)
	require.NoError(t, err)
	require.False(t, trusted)
	require.True(t, leaf.PublicKey.Equal(leafKey))
}

func TestValidateChainCorruptedIntermediate(t *testing.T) {
	root := generateTestKey(t)
	intermediate := generateTestKey(t)
	leaf := generateTestKey(t)

	middle := signChainToken(t, intermediate, &leaf.PublicKey, nil)
	sigStart := strings.LastIndex(middle, ".") + 1
	corrupted := mutateBase64Char(middle, sigStart+4)
	require.NotEqual(t, middle, corrupted)

	chain := []string{
		signChainToken(t, root, &intermediate.PublicKey, nil),
		corrupted,
	}

	_, _, err := NewChainValidator(&root.PublicKey).Validate(chain)
	require.ErrorIs(t, err, ErrChain)
}

func TestValidateChainWrongSigner(t *testing.T) {
	root := generateTestKey(t)
	intermediate := generateTestKey(t)
	impostor := generateTestKey(t)
	leaf := generateTestKey(t)

	chain := []string{
		signChainToken(t, root, &intermediate.PublicKey, nil),
		// Signed by a key other than the declared intermediate.
		signChainToken(t, impostor, &leaf.PublicKey, nil),
	}

	_, _, err := NewChainValidator(&root.PublicKey).Validate(chain)
	require.ErrorIs(t, err, ErrChain)
}

func TestValidateChainEmpty(t *testing.T) {
	root := generateTestKey(t)
	_, _, err := NewChainValidator(&root.PublicKey).Validate(nil)
	require.ErrorIs(t, err, ErrChain)
}

func TestValidateChainMissingIdentityKey(t *testing.T) {
	root := generateTestKey(t)

	payload := []byte(`{"claim":"no identity key here"}`)
	token, err := SignToken(payload, root)
	require.NoError(t, err)

	_, _, err = NewChainValidator(&root.PublicKey).Validate([]string{token.Raw()})
	require.ErrorIs(t, err, ErrChain)
}

func TestValidateChainMalformedToken(t *testing.T) {
	root := generateTestKey(t)
	_, _, err := NewChainValidator(&root.PublicKey).Validate([]string{"garbage"})
	require.ErrorIs(t, err, ErrChain)
}

func TestForgeAuthChainValidates(t *testing.T) {
	root := generateTestKey(t)
	pair := generateTestKey(t)

	extraData := json.RawMessage(`{"displayName":"Steve","identity":"00000000-0000-4000-8000-000000000000","XUID":"123"}`)
	token, err := ForgeAuthChain(pair, extraData)
	require.NoError(t, err)

	// The forged chain is sound but not anchored at the trusted root.
	trusted, leafKey, err := NewChainValidator(&root.PublicKey).Validate([]string{token.Raw()})
	require.NoError(t, err)
	require.False(t, trusted)
	require.True(t, pair.PublicKey.Equal(leafKey))

	extractor := NewClientDataExtractor(ExtractorConfig{})
	extra, err := extractor.ExtractExtraData(token.Payload())
	require.NoError(t, err)
	require.JSONEq(t, string(extraData), string(extra))
}
