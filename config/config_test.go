package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "./attest-data", cfg.DataDir)
	require.Equal(t, "attest-local", cfg.NetworkName)

	// The default file is persisted and loadable.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":9090\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.RPCAddress)
	require.Equal(t, "./attest-data", cfg.DataDir)
	require.Equal(t, "dev", cfg.Environment)
}

func TestAdminAddress(t *testing.T) {
	cfg := &Config{AdminAddress: "0x00000000000000000000000000000000000000ad"}
	admin, ok, err := cfg.Admin()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0xAD), admin[19])

	cfg = &Config{}
	_, ok, err = cfg.Admin()
	require.NoError(t, err)
	require.False(t, ok)

	cfg = &Config{AdminAddress: "nothex"}
	_, _, err = cfg.Admin()
	require.Error(t, err)

	cfg = &Config{AdminAddress: "abcd"}
	_, _, err = cfg.Admin()
	require.Error(t, err)
}

func TestLoadRejectsInvalidAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("AdminAddress = \"zz\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
