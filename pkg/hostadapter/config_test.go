package hostadapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBootConfig(t *testing.T) {
	cfg := DefaultBootConfig()
	assert.Equal(t, "axebergos", cfg.Hostname)
	assert.Equal(t, uint64(64<<20), cfg.MemoryLimit)
	assert.Equal(t, 256, cfg.Fuel)
	assert.Equal(t, ".", cfg.SnapshotDir)
	assert.False(t, cfg.TraceEnabled)
}

func TestLoadBootConfigOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`hostname = "custom-host"
trace_enabled = true
`), 0o644))

	cfg, err := LoadBootConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-host", cfg.Hostname)
	assert.True(t, cfg.TraceEnabled)
	assert.Equal(t, uint64(64<<20), cfg.MemoryLimit, "unnamed fields keep the default")
	assert.Equal(t, 256, cfg.Fuel, "unnamed fields keep the default")
}

func TestLoadBootConfigMissingFileReturnsError(t *testing.T) {
	_, err := LoadBootConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}
