package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// IDLogin is the packet id of the login packet on every supported
// version.
const IDLogin = 0x01

// Login is the decoded body of a login packet: the certificate chain in
// received order and the compact client data token.
type Login struct {
	ProtocolVersion int32
	Chain           []string
	ClientData      string
}

// DecodeLogin parses a login packet body. The body carries a big-endian
// protocol version followed by two little-endian length-prefixed byte
// strings: a JSON object with the chain array, and the raw client data
// token.
func DecodeLogin(payload []byte) (*Login, error) {
	if len(payload) < 4 {
		return nil, errors.New("login packet too short")
	}
	login := &Login{ProtocolVersion: int32(binary.BigEndian.Uint32(payload))}
	rest := payload[4:]

	chainJSON, rest, err := readByteString(rest)
	if err != nil {
		return nil, fmt.Errorf("reading chain: %w", err)
	}
	chain := gjson.GetBytes(chainJSON, "chain")
	if !chain.IsArray() {
		return nil, errors.New("chain claim is missing or not an array")
	}
	for _, token := range chain.Array() {
		login.Chain = append(login.Chain, token.String())
	}

	clientData, _, err := readByteString(rest)
	if err != nil {
		return nil, fmt.Errorf("reading client data: %w", err)
	}
	login.ClientData = string(clientData)
	return login, nil
}

// EncodeLogin is the inverse of DecodeLogin, used when forwarding a
// re-signed login downstream.
func EncodeLogin(login *Login) ([]byte, error) {
	chainJSON := []byte(`{"chain":[`)
	for i, token := range login.Chain {
		if i > 0 {
			chainJSON = append(chainJSON, ',')
		}
		chainJSON = appendJSONString(chainJSON, token)
	}
	chainJSON = append(chainJSON, ']', '}')

	out := binary.BigEndian.AppendUint32(nil, uint32(login.ProtocolVersion))
	out = appendByteString(out, chainJSON)
	out = appendByteString(out, []byte(login.ClientData))
	return out, nil
}

func readByteString(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("truncated length prefix")
	}
	length := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < length {
		return nil, nil, errors.New("truncated byte string")
	}
	return data[:length], data[length:], nil
}

func appendByteString(out, data []byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, data...)
}

func appendJSONString(out []byte, s string) []byte {
	// Compact tokens are base64url segments and dots, never characters
	// needing JSON escaping.
	out = append(out, '"')
	out = append(out, s...)
	return append(out, '"')
}
