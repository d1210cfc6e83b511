// Package rsconfig loads TOML configuration for the rsi console and any
// other host process embedding this module, using the same
// github.com/BurntSushi/toml decoder the teacher engine's server config
// loading relies on. The Config type and its FillDefaults/Validate pair are
// grounded on server/config.go's Config, adapted from server-connection
// settings to the knobs this engine's Options and source directory need.
package rsconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rivebot/rivescript/internal/rsopts"
)

// Config is the on-disk configuration shape for a rivescript-driven
// process: where its brain lives and how the engine behaves while loading
// and replying.
type Config struct {
	// SourceDir is the directory of RiveScript source to load at startup.
	SourceDir string `toml:"source_dir"`

	// Watch enables live-reloading SourceDir via fsnotify.
	Watch bool `toml:"watch"`

	// Strict, UTF8, ForceCase, Depth, and UnicodePunctuation mirror
	// rsopts.Options directly; zero values are replaced by
	// rsopts.Default()'s values in FillDefaults.
	Strict             *bool  `toml:"strict"`
	UTF8               bool   `toml:"utf8"`
	ForceCase          bool   `toml:"force_case"`
	Depth              int    `toml:"depth"`
	UnicodePunctuation string `toml:"unicode_punctuation"`

	// ErrorOverrides remaps the engine's three reply-error strings.
	ErrorOverrides map[string]string `toml:"error_overrides"`
}

// Load reads and parses a TOML config file from path.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rsconfig: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("rsconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FillDefaults returns a copy of cfg with zero-valued fields replaced by
// rsopts.Default()'s values.
func (cfg Config) FillDefaults() Config {
	newCfg := cfg
	def := rsopts.Default()

	if newCfg.Strict == nil {
		strict := def.Strict
		newCfg.Strict = &strict
	}
	if newCfg.Depth == 0 {
		newCfg.Depth = def.Depth
	}
	if newCfg.UnicodePunctuation == "" {
		newCfg.UnicodePunctuation = def.UnicodePunctuation
	}
	return newCfg
}

// Validate returns an error if cfg has invalid field values. Call
// FillDefaults first if zero values should be treated as "use the default"
// rather than "invalid".
func (cfg Config) Validate() error {
	if cfg.SourceDir == "" {
		return fmt.Errorf("source_dir: must be set")
	}
	if info, err := os.Stat(cfg.SourceDir); err != nil {
		return fmt.Errorf("source_dir: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("source_dir: %q is not a directory", cfg.SourceDir)
	}
	if cfg.Depth < 0 {
		return fmt.Errorf("depth: must be non-negative, got %d", cfg.Depth)
	}
	return nil
}

// Options converts cfg into an rsopts.Options, assuming FillDefaults has
// already been applied.
func (cfg Config) Options() rsopts.Options {
	strict := true
	if cfg.Strict != nil {
		strict = *cfg.Strict
	}
	return rsopts.Options{
		Strict:             strict,
		UTF8:               cfg.UTF8,
		ForceCase:          cfg.ForceCase,
		Depth:              cfg.Depth,
		UnicodePunctuation: cfg.UnicodePunctuation,
		ErrorOverrides:     cfg.ErrorOverrides,
	}
}
