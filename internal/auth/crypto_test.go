package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDeriveSessionKeySymmetric(t *testing.T) {
	server := generateTestKey(t)
	client := generateTestKey(t)
	token, err := GenerateRandomToken()
	require.NoError(t, err)

	serverSide, err := DeriveSessionKey(server, &client.PublicKey, token)
	require.NoError(t, err)
	clientSide, err := DeriveSessionKey(client, &server.PublicKey, token)
	require.NoError(t, err)

	require.Len(t, serverSide, 32)
	require.Equal(t, serverSide, clientSide)
}

func TestDeriveSessionKeyDependsOnToken(t *testing.T) {
	server := generateTestKey(t)
	client := generateTestKey(t)

	key1, err := DeriveSessionKey(server, &client.PublicKey, []byte("token-one-bytes!"))
	require.NoError(t, err)
	key2, err := DeriveSessionKey(server, &client.PublicKey, []byte("token-two-bytes!"))
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)
}

func TestBuildHandshakeToken(t *testing.T) {
	server := generateTestKey(t)
	token, err := GenerateRandomToken()
	require.NoError(t, err)

	handshake, err := BuildHandshakeToken(server, token)
	require.NoError(t, err)

	// The client verifies the token against the key in its header and
	// reads the salt back out of the payload.
	headerKey, err := ParsePublicKey(handshake.X5U())
	require.NoError(t, err)
	require.True(t, server.PublicKey.Equal(headerKey))
	require.NoError(t, handshake.Verify(headerKey))

	salt := gjson.GetBytes(handshake.Payload(), "salt")
	require.True(t, salt.Exists())
	decoded, err := base64.StdEncoding.DecodeString(salt.String())
	require.NoError(t, err)
	require.Equal(t, token, decoded)
}
