package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestExtractClientDataVerifiesLeafKey(t *testing.T) {
	leaf := generateTestKey(t)
	token, err := SignToken([]byte(`{"DeviceModel":"test","SkinId":"custom"}`), leaf)
	require.NoError(t, err)

	extractor := NewClientDataExtractor(ExtractorConfig{})
	clientData, err := extractor.ExtractClientData(token.Raw(), &leaf.PublicKey, "203.0.113.7:19132")
	require.NoError(t, err)
	require.Equal(t, "test", gjson.GetBytes(clientData, "DeviceModel").String())
	require.Equal(t, "custom", gjson.GetBytes(clientData, "SkinId").String())
	// No forwarding claim unless configured.
	require.False(t, gjson.GetBytes(clientData, forwardedAddressClaim).Exists())
}

func TestExtractClientDataWrongKey(t *testing.T) {
	leaf := generateTestKey(t)
	other := generateTestKey(t)
	token, err := SignToken([]byte(`{}`), other)
	require.NoError(t, err)

	extractor := NewClientDataExtractor(ExtractorConfig{})
	_, err = extractor.ExtractClientData(token.Raw(), &leaf.PublicKey, "")
	require.ErrorIs(t, err, ErrSignature)
}

func TestExtractClientDataForwardsAddress(t *testing.T) {
	leaf := generateTestKey(t)
	token, err := SignToken([]byte(`{"DeviceModel":"test"}`), leaf)
	require.NoError(t, err)

	extractor := NewClientDataExtractor(ExtractorConfig{LoginExtras: true, IPForward: true})
	clientData, err := extractor.ExtractClientData(token.Raw(), &leaf.PublicKey, "203.0.113.7:19132")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", gjson.GetBytes(clientData, forwardedAddressClaim).String())
}

func TestExtractClientDataIgnoresClientForwardClaim(t *testing.T) {
	leaf := generateTestKey(t)
	// A hostile client pre-populating the proxy claim must be overwritten.
	token, err := SignToken([]byte(`{"`+forwardedAddressClaim+`":"1.2.3.4"}`), leaf)
	require.NoError(t, err)

	extractor := NewClientDataExtractor(ExtractorConfig{LoginExtras: true, IPForward: true})
	clientData, err := extractor.ExtractClientData(token.Raw(), &leaf.PublicKey, "203.0.113.7:19132")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", gjson.GetBytes(clientData, forwardedAddressClaim).String())
}

func TestExtractExtraData(t *testing.T) {
	extractor := NewClientDataExtractor(ExtractorConfig{})
	payload := []byte(`{"extraData":{"displayName":"Foo Bar","identity":"uuid","XUID":"42"}}`)

	extra, err := extractor.ExtractExtraData(payload)
	require.NoError(t, err)
	require.Equal(t, "Foo Bar", gjson.GetBytes(extra, "displayName").String())
	require.Equal(t, "42", gjson.GetBytes(extra, "XUID").String())
}

func TestExtractExtraDataReplacesSpaces(t *testing.T) {
	extractor := NewClientDataExtractor(ExtractorConfig{ReplaceUsernameSpaces: true})
	payload := []byte(`{"extraData":{"displayName":"Foo Bar"}}`)

	extra, err := extractor.ExtractExtraData(payload)
	require.NoError(t, err)
	require.Equal(t, "Foo_Bar", gjson.GetBytes(extra, "displayName").String())
}

func TestExtractExtraDataShape(t *testing.T) {
	extractor := NewClientDataExtractor(ExtractorConfig{})
	for _, payload := range []string{
		`{}`,
		`{"extraData":"not an object"}`,
		`{"extraData":[1,2]}`,
		`{"extraData":null}`,
	} {
		_, err := extractor.ExtractExtraData([]byte(payload))
		require.ErrorIs(t, err, ErrFormat, "payload %s", payload)
	}
}
