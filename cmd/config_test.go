package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/csvsource/internal/config"
	"github.com/zjrosen/csvsource/internal/flags"
	"github.com/zjrosen/csvsource/internal/paths"
)

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".csvsource", "config.yaml")

	require.NoError(t, initConfigFile(path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))

	require.ErrorContains(t, initConfigFile(path, false), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: yaml\n"), 0o600))
	require.NoError(t, initConfigFile(path, true))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))
}

func TestSetFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, setFlag(path, flags.FlagCacheParseFailures, "on"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "cache-parse-failures: true")

	require.NoError(t, setFlag(path, flags.FlagCacheParseFailures, "false"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "cache-parse-failures: false")
}

func TestSetFlag_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.ErrorContains(t, setFlag(path, "no-such-flag", "on"), "unknown flag")
	require.ErrorContains(t, setFlag(path, flags.FlagCacheParseFailures, "maybe"), "on or off")

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "nothing is written on error")
}

func TestInitConfigFile_DirectoryArgument(t *testing.T) {
	dir := t.TempDir()
	path := paths.ResolveConfigFile(dir)
	require.Equal(t, filepath.Join(dir, ".csvsource", "config.yaml"), path)

	require.NoError(t, initConfigFile(path, false))
	_, err := os.Stat(path)
	require.NoError(t, err)
}
