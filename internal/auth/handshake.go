package auth

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Session is the part of a live connection the handshake needs to touch.
// EnableEncryption must send the handshake token as the last plaintext
// frame and only then switch the transport to encrypted framing.
type Session interface {
	RemoteAddr() string
	EnableEncryption(key []byte, handshake *SignedToken) error
}

// Result is the outcome of a successful handshake, produced exactly once
// per connection and handed to session bookkeeping.
type Result struct {
	ClientData        json.RawMessage
	ExtraData         json.RawMessage
	XboxAuthenticated bool
	ProtocolVersion   int
}

// DisplayName returns the (possibly normalized) player display name.
func (r *Result) DisplayName() string {
	return gjson.GetBytes(r.ExtraData, "displayName").String()
}

// Identity returns the player UUID claim.
func (r *Result) Identity() string {
	return gjson.GetBytes(r.ExtraData, "identity").String()
}

// XUID returns the Xbox user id claim.
func (r *Result) XUID() string {
	return gjson.GetBytes(r.ExtraData, "XUID").String()
}

// CoordinatorConfig carries the configuration slice relevant to the
// handshake.
type CoordinatorConfig struct {
	// RootKey anchors chain validation. Nil means the built-in root.
	RootKey *ecdsa.PublicKey
	// UpstreamEncryption switches sessions to encrypted framing after a
	// successful login.
	UpstreamEncryption bool
	Extractor          ExtractorConfig
}

// Coordinator runs the full login handshake for a connection.
type Coordinator struct {
	validator *ChainValidator
	extractor *ClientDataExtractor
	config    CoordinatorConfig
	log       zerolog.Logger
}

func NewCoordinator(config CoordinatorConfig, log zerolog.Logger) *Coordinator {
	rootKey := config.RootKey
	if rootKey == nil {
		rootKey = MojangRootKey()
	}
	return &Coordinator{
		validator: NewChainValidator(rootKey),
		extractor: NewClientDataExtractor(config.Extractor),
		config:    config,
		log:       log,
	}
}

// ProcessHandshake authenticates a login. Linear and non-retryable: the
// first failing step aborts the connection, no partial result survives.
// Encryption enablement is sequenced explicitly between client data
// verification and extra data extraction, matching the wire order the
// client expects.
func (c *Coordinator) ProcessHandshake(sess Session, rawClientData string, chain []string, protocolVersion int) (*Result, error) {
	xboxAuth, leafKey, err := c.validator.Validate(chain)
	if err != nil {
		return nil, err
	}

	identityToken, err := ParseSignedToken(chain[len(chain)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: identity token: %v", ErrChain, err)
	}

	clientData, err := c.extractor.ExtractClientData(rawClientData, leafKey, sess.RemoteAddr())
	if err != nil {
		return nil, err
	}

	if c.config.UpstreamEncryption {
		if err := c.enableEncryption(sess, leafKey); err != nil {
			return nil, err
		}
	}

	extraData, err := c.extractor.ExtractExtraData(identityToken.Payload())
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Bool("xbox_authenticated", xboxAuth).
		Int("protocol_version", protocolVersion).
		Msg("handshake processed")

	return &Result{
		ClientData:        clientData,
		ExtraData:         extraData,
		XboxAuthenticated: xboxAuth,
		ProtocolVersion:   protocolVersion,
	}, nil
}

func (c *Coordinator) enableEncryption(sess Session, clientKey *ecdsa.PublicKey) error {
	serverKey, err := GenerateKeyPair()
	if err != nil {
		return err
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return err
	}
	sessionKey, err := DeriveSessionKey(serverKey, clientKey, token)
	if err != nil {
		return err
	}
	handshake, err := BuildHandshakeToken(serverKey, token)
	if err != nil {
		return err
	}
	if err := sess.EnableEncryption(sessionKey, handshake); err != nil {
		return fmt.Errorf("%w: enabling session encryption: %v", ErrCrypto, err)
	}
	return nil
}

// ForgeAuthChain re-signs login data under the proxy's own key pair for
// the connection towards a downstream server. The resulting single-token
// chain declares the proxy key as identity key, so the forwarded client
// data token must be re-signed with the same pair.
func ForgeAuthChain(pair *ecdsa.PrivateKey, extraData json.RawMessage) (*SignedToken, error) {
	now := time.Now().Unix()
	id := uuid.New()
	nonce := int64(binary.BigEndian.Uint64(id[8:]))

	payload := []byte(`{}`)
	for _, claim := range []struct {
		key   string
		value any
	}{
		{"nbf", now - 3600},
		{"exp", now + 24*3600},
		{"iat", now},
		{"iss", "self"},
		{"certificateAuthority", true},
		{"extraData", extraData},
		{"randomNonce", nonce},
		{"identityPublicKey", EncodePublicKey(&pair.PublicKey)},
	} {
		var err error
		if raw, ok := claim.value.(json.RawMessage); ok {
			payload, err = sjson.SetRawBytes(payload, claim.key, raw)
		} else {
			payload, err = sjson.SetBytes(payload, claim.key, claim.value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: forging auth chain: %v", ErrCrypto, err)
		}
	}
	return SignToken(payload, pair)
}
