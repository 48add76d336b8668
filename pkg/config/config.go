// Package config loads the cratepack configuration file: global
// translation switches, filesystem paths, and per-crate overrides.
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/cratepack/cratepack/pkg/errors"
)

// Package holds the per-crate overrides of the global settings. Pointer
// fields are nil when the crate does not override the global value.
type Package struct {
	// CollapseFeatures merges every feature into the base package
	// instead of emitting one package per surviving feature.
	CollapseFeatures *bool `toml:"collapse_features"`

	// AllowPrerelease silences the warning for pre-release requirements
	// of this crate's dependencies.
	AllowPrerelease *bool `toml:"allow_prerelease"`
}

// Config is the top-level configuration.
type Config struct {
	// CollapseFeatures applies feature collapsing to every crate unless
	// overridden per package.
	CollapseFeatures bool `toml:"collapse_features"`

	// AllowPrerelease accepts pre-release dependency requirements
	// without warning.
	AllowPrerelease bool `toml:"allow_prerelease"`

	// SkipCrates are never descended into by recursive packaging.
	SkipCrates []string `toml:"skip_crates"`

	// DatabasePath overrides the default crate database location.
	DatabasePath string `toml:"database_path"`

	// OutputDir is where package descriptors are written. Defaults to
	// the working directory.
	OutputDir string `toml:"output_dir"`

	// CacheDir overrides the default HTTP cache location.
	CacheDir string `toml:"cache_dir"`

	// Testing marks generated descriptors as test runs, keeping them
	// out of the persistent database.
	Testing bool `toml:"testing"`

	// Packages holds per-crate overrides, keyed by crate name.
	Packages map[string]Package `toml:"packages"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{Packages: map[string]Package{}}
}

// Load reads a TOML config file. Unknown keys are an error so that
// typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "failed to parse config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"config %s has unknown key %q", path, undecoded[0].String())
	}
	if cfg.Packages == nil {
		cfg.Packages = map[string]Package{}
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// ShouldCollapse resolves the effective feature-collapsing setting for
// one crate.
func (c *Config) ShouldCollapse(crate string) bool {
	if p, ok := c.Packages[crate]; ok && p.CollapseFeatures != nil {
		return *p.CollapseFeatures
	}
	return c.CollapseFeatures
}

// PrereleaseAllowed resolves the effective pre-release setting for one
// crate.
func (c *Config) PrereleaseAllowed(crate string) bool {
	if p, ok := c.Packages[crate]; ok && p.AllowPrerelease != nil {
		return *p.AllowPrerelease
	}
	return c.AllowPrerelease
}

// Skipped reports whether recursive packaging must not descend into the
// named crate.
func (c *Config) Skipped(crate string) bool {
	for _, s := range c.SkipCrates {
		if s == crate {
			return true
		}
	}
	return false
}

// DefaultPath returns the standard config location,
// ~/.config/cratepack/config.toml (or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "cratepack", "config.toml")
}
