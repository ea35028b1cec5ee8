package auth

import (
	"crypto/ecdsa"
	"fmt"
	"net"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// forwardedAddressClaim is the proxy-local claim carrying the observed
// client address towards downstream servers. It is always overwritten,
// never taken from the client payload.
const forwardedAddressClaim = "Tidegate_IP"

// ExtractorConfig mirrors the proxy configuration flags that shape client
// data extraction.
type ExtractorConfig struct {
	// LoginExtras and IPForward together enable the forwarded-address
	// claim on the client data.
	LoginExtras bool
	IPForward   bool
	// ReplaceUsernameSpaces replaces spaces in the display name with
	// underscores.
	ReplaceUsernameSpaces bool
}

// ClientDataExtractor verifies and extracts the client-submitted data
// token and the identity (extraData) claims of the chain's leaf token.
type ClientDataExtractor struct {
	config ExtractorConfig
}

func NewClientDataExtractor(config ExtractorConfig) *ClientDataExtractor {
	return &ClientDataExtractor{config: config}
}

// ExtractClientData verifies rawToken against the leaf identity key from
// the certificate chain and returns its claims. When configured, the
// observed remote address is attached as a proxy-local claim.
func (e *ClientDataExtractor) ExtractClientData(rawToken string, identityKey *ecdsa.PublicKey, remoteAddr string) ([]byte, error) {
	token, err := ParseSignedToken(rawToken)
	if err != nil {
		return nil, err
	}
	if err := token.Verify(identityKey); err != nil {
		return nil, fmt.Errorf("%w: client data token not signed by leaf identity key: %v", ErrSignature, err)
	}

	clientData := token.Payload()
	if e.config.LoginExtras && e.config.IPForward && remoteAddr != "" {
		host := remoteAddr
		if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
			host = h
		}
		clientData, err = sjson.SetBytes(clientData, forwardedAddressClaim, host)
		if err != nil {
			return nil, fmt.Errorf("%w: attaching forwarded address: %v", ErrFormat, err)
		}
	}
	return clientData, nil
}

// ExtractExtraData pulls the extraData object out of the identity token
// payload, normalizing the display name when configured.
func (e *ClientDataExtractor) ExtractExtraData(payload []byte) ([]byte, error) {
	extra := gjson.GetBytes(payload, "extraData")
	if !extra.IsObject() {
		return nil, fmt.Errorf("%w: extraData is missing or not an object", ErrFormat)
	}
	extraData := []byte(extra.Raw)
	if e.config.ReplaceUsernameSpaces {
		name := gjson.GetBytes(extraData, "displayName")
		if name.Exists() && strings.Contains(name.String(), " ") {
			var err error
			extraData, err = sjson.SetBytes(extraData, "displayName", strings.ReplaceAll(name.String(), " ", "_"))
			if err != nil {
				return nil, fmt.Errorf("%w: normalizing display name: %v", ErrFormat, err)
			}
		}
	}
	return extraData, nil
}
