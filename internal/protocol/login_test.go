package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginRoundTrip(t *testing.T) {
	login := &Login{
		ProtocolVersion: 712,
		Chain:           []string{"aaa.bbb.ccc", "ddd.eee.fff"},
		ClientData:      "ggg.hhh.iii",
	}
	encoded, err := EncodeLogin(login)
	require.NoError(t, err)

	decoded, err := DecodeLogin(encoded)
	require.NoError(t, err)
	require.Equal(t, login, decoded)
}

func TestDecodeLoginErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"too short", []byte{0, 0}},
		{"truncated chain length", []byte{0, 0, 0, 1, 5}},
		{"truncated chain body", []byte{0, 0, 0, 1, 0xff, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLogin(tt.payload)
			require.Error(t, err)
		})
	}
}

func TestDecodeLoginRequiresChainArray(t *testing.T) {
	login := &Login{ProtocolVersion: 1, ClientData: "x"}
	encoded, err := EncodeLogin(login)
	require.NoError(t, err)
	// Empty chain still encodes a valid array.
	decoded, err := DecodeLogin(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded.Chain)

	// A chain claim of the wrong shape is rejected.
	bad := appendByteString(nil, []byte(`{"chain":"nope"}`))
	payload := append([]byte{0, 0, 0, 1}, bad...)
	payload = appendByteString(payload, []byte("x"))
	_, err = DecodeLogin(payload)
	require.Error(t, err)
}
