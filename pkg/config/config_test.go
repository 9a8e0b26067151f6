package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Query.HScale)
	assert.Equal(t, 1.0, cfg.Query.QualityRatio)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
query:
  hscale: 2.5
  quality_ratio: 1.2
server:
  address: "127.0.0.1:9090"
  cors_origins:
    - "https://example.com"
build:
  threads: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cpdrouter.yaml"), []byte(yaml), 0o644))

	cfg, err := Load([]string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Query.HScale)
	assert.Equal(t, 1.2, cfg.Query.QualityRatio)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 4, cfg.Build.Threads)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  address: \"127.0.0.1:9090\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cpdrouter.yaml"), []byte(yaml), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("server.address", "", "")
	require.NoError(t, fs.Set("server.address", "0.0.0.0:1234"))

	cfg, err := Load([]string{dir}, fs)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:1234", cfg.Server.Address)
}
