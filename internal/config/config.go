// Package config loads the optional .pyscanrc file from a scan root. A
// missing or malformed file always falls back to defaults; explicit CLI
// flags win over anything configured here.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file's basename, looked up directly under the
// scan root.
const FileName = ".pyscanrc"

// Config holds user-overridable scan defaults. The scalar fields are
// pointers so "unset" is distinguishable from "set to the zero value";
// SkipDirs is a plain slice, empty when unset. Explicit CLI flags always
// win over whatever is here.
type Config struct {
	SkipDirs    []string `yaml:"skip_dirs"`
	MaxFileSize *int64   `yaml:"max_file_size"`
	HashMode    *string  `yaml:"hash_mode"`
}

// Default returns the zero configuration: no extra skip dirs, no override
// of --max-file-size or --hash-mode.
func Default() *Config {
	return &Config{}
}

// Load reads .pyscanrc from dir. A missing file or invalid YAML falls
// back to Default() silently — a malformed config must never abort a scan.
func Load(dir string) *Config {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default()
	}

	return cfg
}

// EffectiveMaxFileSize returns the configured max file size, or fallback
// if unset.
func (c *Config) EffectiveMaxFileSize(fallback int64) int64 {
	if c.MaxFileSize != nil {
		return *c.MaxFileSize
	}
	return fallback
}

// EffectiveHashMode returns the configured hash mode, or fallback if unset.
func (c *Config) EffectiveHashMode(fallback string) string {
	if c.HashMode != nil {
		return *c.HashMode
	}
	return fallback
}

// AllSkipDirs returns the config's extra skip-dir entries combined with
// whatever the caller already collected from repeated --skip-dir flags.
func (c *Config) AllSkipDirs(extra []string) []string {
	combined := make([]string, 0, len(c.SkipDirs)+len(extra))
	combined = append(combined, c.SkipDirs...)
	combined = append(combined, extra...)
	return combined
}
