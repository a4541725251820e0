// Package config loads shaderls settings from <root>/.shaderls.toml and the
// environment.
//
// Environment overrides:
//   - SHADERLS_RG_PATH: ripgrep binary
//   - SHADERLS_SEARCH_ENGINE: ripgrep or builtin
//   - SHADERLS_SEARCH_STRATEGY: auto, scan or direct
//   - SHADERLS_EXTENSIONS: comma separated shader extensions
//   - SHADERLS_WATCH: enable the file watcher (true/false)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

// FileName is the per-project configuration file.
const FileName = ".shaderls.toml"

const (
	DefaultBinary    = "rg"
	DefaultBatchSize = 200
	DefaultIndexPath = ".shaderls/symbols.db"
)

// DefaultExtensions are the HLSL-family extensions scanned for workspace symbols.
var DefaultExtensions = []string{"hlsl", "hlsli", "fx", "fxh", "vsh", "psh", "cginc", "compute"}

// DefaultGLSLExtensions mark documents that get struct highlighting.
var DefaultGLSLExtensions = []string{"glsl", "vert", "frag", "geom", "tesc", "tese", "comp"}

// Config is the root configuration.
type Config struct {
	Root string `toml:"-"`

	Extensions     []string `toml:"extensions"`
	GLSLExtensions []string `toml:"glsl_extensions"`
	Exclude        []string `toml:"exclude"`

	Search   SearchConfig   `toml:"search"`
	Watch    WatchConfig    `toml:"watch"`
	Index    IndexConfig    `toml:"index"`
	Features FeaturesConfig `toml:"features"`
}

// WatchConfig controls the file-system watcher that invalidates cached symbols.
type WatchConfig struct {
	Enabled bool `toml:"enabled"`
}

// IndexConfig locates the SQLite symbol snapshot.
type IndexConfig struct {
	Path string `toml:"path"`
}

// FeaturesConfig toggles the editor features built on top of symbols.
type FeaturesConfig struct {
	// Basic enables definition, references and completion.
	Basic bool `toml:"basic"`
}

// Default returns the configuration used when no file or environment
// overrides exist.
func Default(root string) *Config {
	return &Config{
		Root:           root,
		Extensions:     append([]string(nil), DefaultExtensions...),
		GLSLExtensions: append([]string(nil), DefaultGLSLExtensions...),
		Exclude:        []string{},
		Search: SearchConfig{
			Engine:    EngineRipgrep,
			Strategy:  StrategyAuto,
			Binary:    DefaultBinary,
			BatchSize: DefaultBatchSize,
		},
		Watch:    WatchConfig{Enabled: true},
		Index:    IndexConfig{Path: DefaultIndexPath},
		Features: FeaturesConfig{Basic: true},
	}
}

// Load builds the configuration for root: defaults, then root/.shaderls.toml
// when present, then environment overrides.
func Load(root string) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", root, err)
	}
	cfg := Default(abs)

	path := filepath.Join(abs, FileName)
	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %s: unknown keys %v", path, undecoded)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if bin := os.Getenv("SHADERLS_RG_PATH"); bin != "" {
		c.Search.Binary = bin
	}
	if name := os.Getenv("SHADERLS_SEARCH_ENGINE"); name != "" {
		engine, ok := ParseSearchEngine(name)
		if !ok {
			return fmt.Errorf("SHADERLS_SEARCH_ENGINE: unknown engine %q", name)
		}
		c.Search.Engine = engine
	}
	if name := os.Getenv("SHADERLS_SEARCH_STRATEGY"); name != "" {
		strategy, ok := ParseStrategy(name)
		if !ok {
			return fmt.Errorf("SHADERLS_SEARCH_STRATEGY: unknown strategy %q", name)
		}
		c.Search.Strategy = strategy
	}
	if exts := os.Getenv("SHADERLS_EXTENSIONS"); exts != "" {
		c.Extensions = strings.Split(exts, ",")
	}
	if watch := os.Getenv("SHADERLS_WATCH"); watch != "" {
		enabled, err := strconv.ParseBool(watch)
		if err != nil {
			return fmt.Errorf("SHADERLS_WATCH: %w", err)
		}
		c.Watch.Enabled = enabled
	}
	return nil
}

// normalize trims extensions to bare suffixes and canonicalizes enum aliases
// read from the file.
func (c *Config) normalize() {
	c.Extensions = normalizeExtensions(c.Extensions)
	c.GLSLExtensions = normalizeExtensions(c.GLSLExtensions)

	if engine, ok := ParseSearchEngine(string(c.Search.Engine)); ok {
		c.Search.Engine = engine
	}
	if strategy, ok := ParseStrategy(string(c.Search.Strategy)); ok {
		c.Search.Strategy = strategy
	}
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool)
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), "*")
		ext = strings.TrimPrefix(ext, ".")
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, errors.New("root: must be set"))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("extensions: at least one shader extension is required"))
	}
	for _, ext := range append(append([]string{}, c.Extensions...), c.GLSLExtensions...) {
		if strings.ContainsAny(ext, `/\*?[]{}`) {
			errs = append(errs, fmt.Errorf("extensions: %q is not a plain file extension", ext))
		}
	}
	for _, pattern := range c.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("exclude: %q: %w", pattern, err))
		}
	}
	if _, ok := ParseSearchEngine(string(c.Search.Engine)); !ok {
		errs = append(errs, fmt.Errorf("search.engine: unknown engine %q", c.Search.Engine))
	}
	if _, ok := ParseStrategy(string(c.Search.Strategy)); !ok {
		errs = append(errs, fmt.Errorf("search.strategy: unknown strategy %q", c.Search.Strategy))
	}
	if c.Search.Engine == EngineRipgrep && c.Search.Binary == "" {
		errs = append(errs, errors.New("search.binary: must be set for the ripgrep engine"))
	}
	if c.Search.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("search.batch_size: must be positive, got %d", c.Search.BatchSize))
	}

	return errors.Join(errs...)
}

// IndexPath returns the snapshot database path, resolved against Root.
func (c *Config) IndexPath() string {
	if filepath.IsAbs(c.Index.Path) {
		return c.Index.Path
	}
	return filepath.Join(c.Root, c.Index.Path)
}

// IsGLSL reports whether path carries one of the GLSL extensions.
func (c *Config) IsGLSL(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, e := range c.GLSLExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
