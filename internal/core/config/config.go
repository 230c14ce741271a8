package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultFileName = "pyintel.toml"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Analysis      Analysis      `toml:"analysis"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	// SearchRoots are the directories module names are derived from, in priority order.
	SearchRoots []string `toml:"search_roots"`
	DatabaseDir string   `toml:"database_dir"`
}

type Analysis struct {
	LanguageVersion   string `toml:"language_version"`
	MaxIterations     int    `toml:"max_iterations"`
	RevisitLimit      int    `toml:"revisit_limit"`
	MaxCallDepth      int    `toml:"max_call_depth"`
	MaxUnionSize      int    `toml:"max_union_size"`
	MaxPassesPerDrain int    `toml:"max_passes_per_drain"`
	ModuleCacheSize   int    `toml:"module_cache_size"`
}

type Database struct {
	// SymbolIndex is the SQLite file written next to the per-module records.
	SymbolIndex string        `toml:"symbol_index"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	ExcludeDirs  []string      `toml:"exclude_dirs"`
	ExcludeFiles []string      `toml:"exclude_files"`
	// DrainsPerSecond throttles analysis triggered by file events.
	DrainsPerSecond float64 `toml:"drains_per_second"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	ServiceName    string `toml:"service_name"`
}

func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes TOML content, applies defaults, env overrides and validation.
func Parse(content string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Paths.SearchRoots) == 0 {
		cfg.Paths.SearchRoots = []string{"."}
	}
	if cfg.Paths.DatabaseDir == "" {
		cfg.Paths.DatabaseDir = ".pyintel/db"
	}

	if cfg.Analysis.LanguageVersion == "" {
		cfg.Analysis.LanguageVersion = "3.12"
	}
	if cfg.Analysis.MaxIterations <= 0 {
		cfg.Analysis.MaxIterations = 8
	}
	if cfg.Analysis.RevisitLimit <= 0 {
		cfg.Analysis.RevisitLimit = 16
	}
	if cfg.Analysis.MaxCallDepth <= 0 {
		cfg.Analysis.MaxCallDepth = 24
	}
	if cfg.Analysis.MaxUnionSize <= 0 {
		cfg.Analysis.MaxUnionSize = 64
	}
	if cfg.Analysis.MaxPassesPerDrain <= 0 {
		cfg.Analysis.MaxPassesPerDrain = 4
	}
	if cfg.Analysis.ModuleCacheSize <= 0 {
		cfg.Analysis.ModuleCacheSize = 512
	}

	if cfg.DB.SymbolIndex == "" {
		cfg.DB.SymbolIndex = "symbols.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if len(cfg.Watch.ExcludeDirs) == 0 {
		cfg.Watch.ExcludeDirs = []string{".git", "__pycache__", ".venv", "node_modules"}
	}
	if cfg.Watch.DrainsPerSecond <= 0 {
		cfg.Watch.DrainsPerSecond = 4
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "pyintel"
	}
}
