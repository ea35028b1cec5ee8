package config

import (
	"fmt"

	"github.com/tidegate/tidegate/internal/auth"
	"github.com/tidegate/tidegate/internal/compression"
)

// Validate surfaces configuration mistakes at startup instead of at the
// first affected connection.
func (c Config) Validate() error {
	algorithm, err := compression.ParseAlgorithm(c.Compression.Algorithm)
	if err != nil {
		return fmt.Errorf("compression.algorithm: %w", err)
	}
	if _, err := compression.PostHandshakeCodec(algorithm); err != nil {
		return fmt.Errorf("compression.algorithm: %w", err)
	}
	if c.Auth.RootKey != "" {
		if _, err := auth.ParsePublicKey(c.Auth.RootKey); err != nil {
			return fmt.Errorf("auth.root_key: %w", err)
		}
	}
	if c.Listener.Port < 0 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port out of range: %d", c.Listener.Port)
	}
	if c.Handshake.Workers < 0 {
		return fmt.Errorf("handshake.workers must not be negative: %d", c.Handshake.Workers)
	}
	return nil
}
