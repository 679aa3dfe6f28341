package config

import (
	"flag"
	"path/filepath"
)

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagModelPath = flag.String("model-path", "", "Terrain search directories, separated by the OS list separator")
	flagCacheDir  = flag.String("cache-dir", "", "Download directory for remote terrains")
	flagLogFile   = flag.String("log-file", "", "Write logs to this file")
	flagMeshRes   = flag.Int("resolution", 0, "Mesh vertices per side")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagModelPath != "" {
		// Flag directories are searched before the configured ones.
		cfg.Terrain.ModelPath = append(filepath.SplitList(*flagModelPath), cfg.Terrain.ModelPath...)
	}
	if *flagCacheDir != "" {
		cfg.Terrain.CacheDir = *flagCacheDir
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagMeshRes > 0 {
		cfg.Mesh.Resolution = *flagMeshRes
	}
}
