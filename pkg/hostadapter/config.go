package hostadapter

import (
	"github.com/BurntSushi/toml"
)

// BootConfig is the boot-time configuration for cmd/axebergcored, loaded
// from a TOML file. It only configures the host adapters; the kernel core
// itself (pkg/kernel.Config) takes no file-backed configuration of its
// own.
type BootConfig struct {
	Hostname    string `toml:"hostname"`
	MemoryLimit uint64 `toml:"memory_limit_bytes"`
	Fuel        int    `toml:"fuel_per_tick"`
	SnapshotDir string `toml:"snapshot_dir"`
	TraceEnabled bool  `toml:"trace_enabled"`
}

// DefaultBootConfig returns the configuration used when no TOML file is
// supplied.
func DefaultBootConfig() BootConfig {
	return BootConfig{
		Hostname:     "axebergos",
		MemoryLimit:  64 << 20,
		Fuel:         256,
		SnapshotDir:  ".",
		TraceEnabled: false,
	}
}

// LoadBootConfig reads and decodes a BootConfig from path, starting from
// DefaultBootConfig so a partial file only overrides the fields it names.
func LoadBootConfig(path string) (BootConfig, error) {
	cfg := DefaultBootConfig()
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
