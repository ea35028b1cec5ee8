package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/tidegate/tidegate/internal/auth"
	"github.com/tidegate/tidegate/internal/compression"
	"github.com/tidegate/tidegate/internal/metrics"
	"github.com/tidegate/tidegate/internal/protocol"
)

// AssemblerConfig is the configuration slice the assembler needs.
type AssemblerConfig struct {
	// Algorithm is the configured compression algorithm, effective after
	// the handshake on the newest protocol version.
	Algorithm compression.Algorithm
	// Workers bounds the handshake worker pool. Zero means GOMAXPROCS.
	Workers int
}

// Assembler builds the processing chain for new connections. Process-wide
// and read-only after construction; every built StageSet is exclusively
// owned by its connection.
type Assembler struct {
	config      AssemblerConfig
	coordinator *auth.Coordinator
	pool        *Pool
	factory     SessionFactory
	log         zerolog.Logger
}

func NewAssembler(config AssemblerConfig, coordinator *auth.Coordinator, factory SessionFactory, log zerolog.Logger) *Assembler {
	return &Assembler{
		config:      config,
		coordinator: coordinator,
		pool:        NewPool(config.Workers),
		factory:     factory,
		log:         log,
	}
}

// Algorithm returns the configured post-handshake compression algorithm.
func (a *Assembler) Algorithm() compression.Algorithm { return a.config.Algorithm }

// Build assembles the stage set for a connection whose transport version
// has already been negotiated. Stage order is fixed and identical on all
// versions; only the codecs inside the slots differ.
func (a *Assembler) Build(conn Conn) (*StageSet, error) {
	rakVersion := conn.RakVersion()
	packetCodec, err := protocol.CodecFor(rakVersion)
	if err != nil {
		return nil, err
	}
	initial, err := compression.InitialCodec(a.config.Algorithm, rakVersion)
	if err != nil {
		return nil, err
	}

	log := a.log.With().Str("remote_addr", conn.RemoteAddr()).Int("rak_version", rakVersion).Logger()
	peer := &Peer{
		conn:        conn,
		coordinator: a.coordinator,
		pool:        a.pool,
		factory:     a.factory,
		algorithm:   a.config.Algorithm,
		log:         log,
	}
	set := newStageSet(conn, []Stage{
		NewFrameStage(),
		NewCompressionStage(initial),
		NewBatchDecodeStage(),
		NewBatchEncodeStage(),
		NewPacketStage(packetCodec),
		peer,
	})
	peer.set = set

	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()
	log.Debug().Msg("connection pipeline assembled")
	return set, nil
}
