// Package config contains Tidegate Config and the code to load it.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config struct {
	// Log is a configuration for logging.
	Log Log `mapstructure:"log" json:"log" yaml:"log" toml:"log"`
	// Listener is the address the game transport binds to.
	Listener Listener `mapstructure:"listener" json:"listener" yaml:"listener" toml:"listener"`
	// Upstream controls how client connections are authenticated and
	// annotated before being handed to session bookkeeping.
	Upstream Upstream `mapstructure:"upstream" json:"upstream" yaml:"upstream" toml:"upstream"`
	// Compression selects the algorithm used after the handshake on
	// protocol versions with deferred compression negotiation.
	Compression Compression `mapstructure:"compression" json:"compression" yaml:"compression" toml:"compression"`
	// Auth configures chain-of-trust validation.
	Auth Auth `mapstructure:"auth" json:"auth" yaml:"auth" toml:"auth"`
	// Handshake tunes the handshake worker pool.
	Handshake Handshake `mapstructure:"handshake" json:"handshake" yaml:"handshake" toml:"handshake"`
	// Prometheus metrics endpoint configuration.
	Prometheus Prometheus `mapstructure:"prometheus" json:"prometheus" yaml:"prometheus" toml:"prometheus"`

	// PidFile is a path to write a file with Tidegate process PID.
	PidFile string `mapstructure:"pid_file" json:"pid_file" yaml:"pid_file" toml:"pid_file"`
}

type Log struct {
	Level string `mapstructure:"level" json:"level" yaml:"level" toml:"level"`
	File  string `mapstructure:"file" json:"file" yaml:"file" toml:"file"`
}

type Listener struct {
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	Port    int    `mapstructure:"port" json:"port" yaml:"port" toml:"port"`
}

type Upstream struct {
	// Encryption switches authenticated sessions to encrypted framing.
	Encryption bool `mapstructure:"encryption" json:"encryption" yaml:"encryption" toml:"encryption"`
	// LoginExtras enables proxy-side claims on forwarded login data.
	LoginExtras bool `mapstructure:"login_extras" json:"login_extras" yaml:"login_extras" toml:"login_extras"`
	// IPForward attaches the observed client address to the client data.
	// Only effective together with LoginExtras.
	IPForward bool `mapstructure:"ip_forward" json:"ip_forward" yaml:"ip_forward" toml:"ip_forward"`
	// ReplaceUsernameSpaces rewrites spaces in display names to
	// underscores.
	ReplaceUsernameSpaces bool `mapstructure:"replace_username_spaces" json:"replace_username_spaces" yaml:"replace_username_spaces" toml:"replace_username_spaces"`
}

type Compression struct {
	Algorithm string `mapstructure:"algorithm" json:"algorithm" yaml:"algorithm" toml:"algorithm"`
}

type Auth struct {
	// RootKey overrides the built-in trusted root public key, base64 DER.
	RootKey string `mapstructure:"root_key" json:"root_key" yaml:"root_key" toml:"root_key"`
}

type Handshake struct {
	// Workers bounds concurrent handshake verifications. Zero means one
	// per CPU.
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" toml:"workers"`
}

type Prometheus struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	Port    int    `mapstructure:"port" json:"port" yaml:"port" toml:"port"`
}

type Meta struct {
	FileNotFound bool
}

func DefineFlags(rootCmd *cobra.Command) {
	rootCmd.Flags().StringP("pid_file", "", "", "optional path to create PID file")
	rootCmd.Flags().StringP("listener.address", "a", "", "interface address to listen on")
	rootCmd.Flags().IntP("listener.port", "p", 19132, "port to bind game transport to")
	rootCmd.Flags().StringP("log.level", "", "info", "set the log level: trace, debug, info, warn, error, fatal or none")
	rootCmd.Flags().StringP("log.file", "", "", "optional log file - if not specified logs go to STDOUT")
	rootCmd.Flags().BoolP("upstream.encryption", "", true, "enable session encryption for authenticated clients")
	rootCmd.Flags().BoolP("upstream.login_extras", "", true, "enable proxy-side login claims")
	rootCmd.Flags().BoolP("upstream.ip_forward", "", false, "forward the observed client address in login data")
	rootCmd.Flags().BoolP("upstream.replace_username_spaces", "", false, "replace spaces in display names with underscores")
	rootCmd.Flags().StringP("compression.algorithm", "", "zlib", "compression algorithm: zlib, snappy, lz4 or none")
	rootCmd.Flags().IntP("handshake.workers", "", 0, "handshake worker pool size, 0 means one per CPU")
	rootCmd.Flags().BoolP("prometheus.enabled", "", false, "enable Prometheus metrics endpoint")
}

var defaults = map[string]any{
	"listener.port":         19132,
	"log.level":             "info",
	"upstream.encryption":   true,
	"upstream.login_extras": true,
	"compression.algorithm": "zlib",
	"prometheus.address":    "127.0.0.1",
	"prometheus.port":       10000,
}

func GetConfig(cmd *cobra.Command, configFile string) (Config, Meta, error) {
	v := viper.NewWithOptions(viper.WithDecodeHook(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if cmd != nil {
		bindPFlags := []string{
			"pid_file", "listener.address", "listener.port", "log.level", "log.file",
			"upstream.encryption", "upstream.login_extras", "upstream.ip_forward",
			"upstream.replace_username_spaces", "compression.algorithm",
			"handshake.workers", "prometheus.enabled",
		}
		for _, flag := range bindPFlags {
			_ = v.BindPFlag(flag, cmd.Flags().Lookup(flag))
		}
	}

	v.SetEnvPrefix("TIDEGATE")
	v.AutomaticEnv()

	meta := Meta{}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var pathError *os.PathError
			if errors.As(err, &pathError) {
				meta.FileNotFound = true
			} else {
				return Config{}, Meta{}, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return Config{}, Meta{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return *conf, meta, nil
}
