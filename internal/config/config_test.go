package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	conf, meta, err := GetConfig(nil, "")
	require.NoError(t, err)
	require.False(t, meta.FileNotFound)
	require.Equal(t, 19132, conf.Listener.Port)
	require.Equal(t, "info", conf.Log.Level)
	require.Equal(t, "zlib", conf.Compression.Algorithm)
	require.True(t, conf.Upstream.Encryption)
	require.True(t, conf.Upstream.LoginExtras)
	require.False(t, conf.Upstream.IPForward)
	require.Equal(t, 0, conf.Handshake.Workers)
}

func TestGetConfigFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"listener": {"port": 19133},
		"compression": {"algorithm": "snappy"},
		"upstream": {"encryption": false, "replace_username_spaces": true},
		"handshake": {"workers": 4}
	}`
	require.NoError(t, os.WriteFile(file, []byte(data), 0o644))

	conf, meta, err := GetConfig(nil, file)
	require.NoError(t, err)
	require.False(t, meta.FileNotFound)
	require.Equal(t, 19133, conf.Listener.Port)
	require.Equal(t, "snappy", conf.Compression.Algorithm)
	require.False(t, conf.Upstream.Encryption)
	require.True(t, conf.Upstream.ReplaceUsernameSpaces)
	require.Equal(t, 4, conf.Handshake.Workers)
}

func TestGetConfigMissingFile(t *testing.T) {
	_, meta, err := GetConfig(nil, filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.True(t, meta.FileNotFound)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		conf, _, err := GetConfig(nil, "")
		require.NoError(t, err)
		return conf
	}

	conf := base()
	require.NoError(t, conf.Validate())

	conf = base()
	conf.Compression.Algorithm = "gzip"
	require.ErrorContains(t, conf.Validate(), "compression.algorithm")

	conf = base()
	conf.Auth.RootKey = "not base64 der"
	require.ErrorContains(t, conf.Validate(), "auth.root_key")

	conf = base()
	conf.Listener.Port = 70000
	require.ErrorContains(t, conf.Validate(), "listener.port")

	conf = base()
	conf.Handshake.Workers = -1
	require.ErrorContains(t, conf.Validate(), "handshake.workers")
}
