// Package config handles terrain tool configuration loading and management.
package config

import "time"

// Config holds all settings.
type Config struct {
	Terrain TerrainConfig `yaml:"terrain"`
	Mesh    MeshConfig    `yaml:"mesh"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Logging LoggingConfig `yaml:"logging"`
}

// TerrainConfig holds terrain lookup settings.
type TerrainConfig struct {
	ModelPath []string `yaml:"model_path"` // Directories searched for relative terrain names
	CacheDir  string   `yaml:"cache_dir"`  // Download location for remote terrains
}

// MeshConfig holds tessellation defaults.
type MeshConfig struct {
	Resolution   int     `yaml:"resolution"`    // Vertices per side
	SmoothRadius float32 `yaml:"smooth_radius"` // Default radius for smoothed height queries, in feet
}

// FetchConfig holds remote download settings.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			ModelPath: []string{"."},
			CacheDir:  "",
		},
		Mesh: MeshConfig{
			Resolution:   33,
			SmoothRadius: 0,
		},
		Fetch: FetchConfig{
			Timeout: 2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}
