// Package config defines the Pipeline's Config struct (spec.md §4.4) and a
// TOML-backed loader.
//
// Grounded on Harvx's BurntSushi/toml + koanf layered-config approach; koanf
// itself is not adopted since dupescan only ever merges one file format
// with CLI flags — koanf's multi-provider abstraction would be unused
// generality.
package config

import (
	"fmt"
	"runtime"

	"github.com/BurntSushi/toml"
)

// DiskKind feeds the default-worker-count heuristic (spec.md §9).
type DiskKind string

const (
	DiskUnknown DiskKind = "unknown"
	DiskSSD     DiskKind = "ssd"
	DiskHDD     DiskKind = "hdd"
)

// Config holds every option enumerated in spec.md §4.4.
type Config struct {
	Workers          int      `toml:"workers"`
	DiskKind         DiskKind `toml:"disk_kind"`
	PartialSizeBytes int64    `toml:"partial_size_bytes"`
	ChunkSizeBytes   int64    `toml:"chunk_size_bytes"`
	BatchSize        int      `toml:"batch_size"`
	MemoryEfficient  bool     `toml:"memory_efficient"`
	MetadataOnly     bool     `toml:"metadata_only"`

	MinSizeBytes int64    `toml:"min_size_bytes"`
	Excludes     []string `toml:"excludes"`
	Gitignore    bool     `toml:"gitignore"`
	CacheFile    string   `toml:"cache_file"`
}

// Default returns the spec's documented defaults, with Workers left at 0 to
// mean "apply the §9 heuristic at run time" (the caller doesn't yet know
// the CPU count a loaded-but-unused zero would imply).
func Default() Config {
	return Config{
		Workers:          0,
		DiskKind:         DiskUnknown,
		PartialSizeBytes: 4096,
		ChunkSizeBytes:   65536,
		BatchSize:        0,
		MemoryEfficient:  false,
		MetadataOnly:     false,
	}
}

// Load reads a TOML config file and merges it over Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveWorkers applies spec.md §9's heuristic when Workers is unset
// (zero or negative): min(CPU_count, 8) for unknown disks, CPU_count*2 for
// SSD, 2 for rotational disks. The chosen value is always recorded in the
// Report's stats so readers can see what was picked without re-deriving it.
func (c Config) ResolveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	cpus := runtime.NumCPU()
	switch c.DiskKind {
	case DiskSSD:
		return cpus * 2
	case DiskHDD:
		return 2
	default:
		if cpus > 8 {
			return 8
		}
		return cpus
	}
}
