package config

import "strings"

// SearchEngine selects how on-disk files are searched for declarations.
type SearchEngine string

const (
	// EngineRipgrep shells out to ripgrep (default). When the binary cannot
	// be found, workspace queries return no results.
	EngineRipgrep SearchEngine = "ripgrep"

	// EngineBuiltin walks the tree in-process with Go regular expressions.
	EngineBuiltin SearchEngine = "builtin"
)

// ParseSearchEngine accepts the engine names and their common aliases.
func ParseSearchEngine(name string) (SearchEngine, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ripgrep", "rg":
		return EngineRipgrep, true
	case "builtin", "go", "internal":
		return EngineBuiltin, true
	}
	return "", false
}

// Strategy selects how workspace symbol queries are answered.
type Strategy string

const (
	// StrategyAuto enumerates files and scans with a cache when a file
	// lister is available, which is always the case for local roots.
	StrategyAuto Strategy = "auto"

	// StrategyScan enumerates shader files, scans the uncached ones and
	// serves the rest from the per-file cache.
	StrategyScan Strategy = "scan"

	// StrategyDirect runs the search over the whole root on every query and
	// caches nothing.
	StrategyDirect Strategy = "direct"
)

// ParseStrategy accepts the strategy names and their common aliases.
func ParseStrategy(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "auto", "":
		return StrategyAuto, true
	case "scan", "enumerate", "cached":
		return StrategyScan, true
	case "direct", "exec":
		return StrategyDirect, true
	}
	return "", false
}

// SearchConfig holds settings for the external search executable.
type SearchConfig struct {
	Engine   SearchEngine `toml:"engine"`
	Strategy Strategy     `toml:"strategy"`

	// Binary is the ripgrep executable name or path.
	Binary string `toml:"binary"`

	// BatchSize caps the number of explicit files passed to one invocation.
	BatchSize int `toml:"batch_size"`
}

// UsesCache reports whether queries go through the per-file cache.
func (c SearchConfig) UsesCache() bool {
	return c.Strategy != StrategyDirect
}

// String describes the search configuration for logs.
func (c SearchConfig) String() string {
	switch c.Engine {
	case EngineBuiltin:
		return "builtin walker, " + string(c.Strategy)
	default:
		return "ripgrep (" + c.Binary + "), " + string(c.Strategy)
	}
}
