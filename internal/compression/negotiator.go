package compression

import (
	"fmt"

	"github.com/tidegate/tidegate/internal/protocol"
)

// InitialCodec returns the compression codec installed when a connection
// is set up. Old versions use a fixed codec regardless of configuration.
// The newest version starts with a passthrough: the configured algorithm
// only takes effect once the handshake has established that both ends
// agree on it, see PostHandshakeCodec.
func InitialCodec(algorithm Algorithm, rakVersion int) (Codec, error) {
	switch rakVersion {
	case 7, 8, 9:
		return zlibCodec{}, nil
	case 10:
		return zlibCodec{raw: true}, nil
	case protocol.LatestVersion:
		return noopCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", protocol.ErrUnsupportedVersion, rakVersion)
	}
}

// PostHandshakeCodec returns the codec replacing the initial passthrough
// once the handshake completed on the newest protocol version.
func PostHandshakeCodec(algorithm Algorithm) (Codec, error) {
	switch algorithm {
	case Zlib:
		return zlibCodec{raw: true}, nil
	case Snappy:
		return snappyCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case None:
		return noopCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}
