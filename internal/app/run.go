package app

import (
	"crypto/ecdsa"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/tidegate/tidegate/internal/auth"
	"github.com/tidegate/tidegate/internal/build"
	"github.com/tidegate/tidegate/internal/compression"
	"github.com/tidegate/tidegate/internal/config"
	"github.com/tidegate/tidegate/internal/logging"
	"github.com/tidegate/tidegate/internal/pipeline"
	"github.com/tidegate/tidegate/internal/protocol"
)

func Run(cmd *cobra.Command, configFile string) {
	cfg, cfgMeta, err := config.GetConfig(cmd, configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting config")
	}

	logCloseFn := logging.Setup(cfg)
	if logCloseFn != nil {
		defer logCloseFn()
	}
	if cfgMeta.FileNotFound {
		log.Warn().Msg("config file not found, continue using environment and flag options")
	} else {
		absConfPath, _ := filepath.Abs(configFile)
		log.Info().Str("path", absConfPath).Msg("using config file")
	}

	if err := writePidFile(cfg.PidFile); err != nil {
		log.Fatal().Err(err).Msg("error writing PID")
	}
	if os.Getenv("GOMAXPROCS") == "" {
		_, _ = maxprocs.Set()
	}

	log.Info().
		Str("version", build.Version).
		Str("runtime", runtime.Version()).
		Int("pid", os.Getpid()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Msg("starting Tidegate")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("error validating config")
	}

	assembler, err := BuildAssembler(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error building pipeline assembler")
	}

	if cfg.Prometheus.Enabled {
		go servePrometheus(cfg.Prometheus)
	}

	// The raknet transport integration calls assembler.Build for every
	// accepted connection.
	log.Info().
		Str("address", cfg.Listener.Address).
		Int("port", cfg.Listener.Port).
		Str("compression", string(assembler.Algorithm())).
		Ints("protocol_versions", protocol.SupportedVersions()).
		Msg("connection core ready, waiting for transport")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")
}

// BuildAssembler wires the handshake coordinator and pipeline assembler
// from configuration. The raknet transport integration calls
// Assembler.Build for every accepted connection.
func BuildAssembler(cfg config.Config) (*pipeline.Assembler, error) {
	var rootKey *ecdsa.PublicKey
	if cfg.Auth.RootKey != "" {
		var err error
		rootKey, err = auth.ParsePublicKey(cfg.Auth.RootKey)
		if err != nil {
			return nil, fmt.Errorf("parsing root key: %w", err)
		}
	}
	algorithm, err := compression.ParseAlgorithm(cfg.Compression.Algorithm)
	if err != nil {
		return nil, err
	}

	coordinator := auth.NewCoordinator(auth.CoordinatorConfig{
		RootKey:            rootKey,
		UpstreamEncryption: cfg.Upstream.Encryption,
		Extractor: auth.ExtractorConfig{
			LoginExtras:           cfg.Upstream.LoginExtras,
			IPForward:             cfg.Upstream.IPForward,
			ReplaceUsernameSpaces: cfg.Upstream.ReplaceUsernameSpaces,
		},
	}, log.Logger)

	return pipeline.NewAssembler(pipeline.AssemblerConfig{
		Algorithm: algorithm,
		Workers:   cfg.Handshake.Workers,
	}, coordinator, logSessionFactory, log.Logger), nil
}

// logSessionFactory stands in for the external session bookkeeping: it
// records the authenticated identity and drops further packets. The
// downstream proxying layer replaces it through NewAssembler.
func logSessionFactory(set *pipeline.StageSet, result *auth.Result) pipeline.PacketHandler {
	log.Info().
		Str("remote_addr", set.Conn().RemoteAddr()).
		Str("display_name", result.DisplayName()).
		Str("xuid", result.XUID()).
		Bool("xbox_authenticated", result.XboxAuthenticated).
		Msg("session authenticated")
	return nil
}

func servePrometheus(cfg config.Prometheus) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	log.Info().Str("address", addr).Msg("serving prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("prometheus endpoint failed")
	}
}

func writePidFile(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	return os.WriteFile(pidFile, pid, 0644)
}
