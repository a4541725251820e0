// Package workspace answers symbol queries for open documents and for the
// shader files on disk under the workspace root.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"shaderls/internal/config"
	"shaderls/internal/document"
	"shaderls/internal/logging"
	"shaderls/internal/search/grep"
	"shaderls/internal/search/symbols"
)

// Documents looks up open documents by URI.
type Documents interface {
	Get(uri string) (*document.Document, bool)
}

// Options configures an Index.
type Options struct {
	Root      string
	Documents Documents
	Searcher  grep.Searcher
	// Lister enables the enumerate-and-scan strategy. Without it every
	// workspace query searches the whole root and nothing is cached.
	Lister    grep.Lister
	Cache     *Cache
	BatchSize int
	Logger    *slog.Logger
}

// Index is the workspace symbol index.
type Index struct {
	root      string
	docs      Documents
	searcher  grep.Searcher
	lister    grep.Lister
	cache     *Cache
	batchSize int
	rules     []symbols.PatternRule
	extractor *symbols.Extractor
	logger    *slog.Logger

	scans singleflight.Group
}

// New creates an index from opts.
func New(opts Options) *Index {
	logger := logging.Component(opts.Logger, "workspace")
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = config.DefaultBatchSize
	}
	return &Index{
		root:      opts.Root,
		docs:      opts.Documents,
		searcher:  opts.Searcher,
		lister:    opts.Lister,
		cache:     cache,
		batchSize: batch,
		rules:     symbols.Catalog(),
		extractor: symbols.NewExtractor(logger),
		logger:    logger,
	}
}

// NewFromConfig wires the searcher and lister selected by cfg.
func NewFromConfig(cfg *config.Config, docs Documents, logger *slog.Logger) (*Index, error) {
	fsys := afero.NewOsFs()
	matcher, err := MatcherFromConfig(cfg, fsys)
	if err != nil {
		return nil, err
	}

	var searcher grep.Searcher
	switch cfg.Search.Engine {
	case config.EngineBuiltin:
		searcher = grep.NewWalker(fsys, cfg.Root, matcher)
	default:
		searcher = grep.NewRipgrep(cfg.Search.Binary, cfg.Root, cfg.Extensions, cfg.Exclude, logger)
	}

	opts := Options{
		Root:      cfg.Root,
		Documents: docs,
		Searcher:  searcher,
		BatchSize: cfg.Search.BatchSize,
		Logger:    logger,
	}
	if cfg.Search.UsesCache() {
		opts.Lister = grep.NewFileLister(fsys, cfg.Root, matcher, logger)
	}
	return New(opts), nil
}

// MatcherFromConfig builds the shader file matcher for cfg, honouring the
// root .gitignore.
func MatcherFromConfig(cfg *config.Config, fsys afero.Fs) (*grep.Matcher, error) {
	matcher, err := grep.NewMatcher(cfg.Extensions, cfg.Exclude, grep.LoadGitignore(fsys, cfg.Root))
	if err != nil {
		return nil, fmt.Errorf("building file matcher: %w", err)
	}
	return matcher, nil
}

// Cache exposes the per-file cache.
func (idx *Index) Cache() *Cache {
	return idx.cache
}

// QueryDocument extracts the symbols of an open document. Documents that are
// not open yield an empty result.
func (idx *Index) QueryDocument(uri string) []symbols.Symbol {
	if idx.docs == nil {
		return []symbols.Symbol{}
	}
	doc, ok := idx.docs.Get(uri)
	if !ok {
		return []symbols.Symbol{}
	}
	return idx.extractor.Extract(doc)
}

// QueryWorkspace returns the declarations found in the workspace's shader
// files. query is accepted for the caller's benefit but does not filter the
// result; callers match names themselves.
//
// Failures, an unavailable searcher and cancellation all produce an empty
// result.
func (idx *Index) QueryWorkspace(ctx context.Context, query string) []symbols.Symbol {
	if idx.searcher == nil {
		return []symbols.Symbol{}
	}

	result, err := idx.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			idx.logger.Debug("workspace query cancelled", "query", query)
		} else {
			idx.logger.Warn("workspace query failed", "query", query, "error", err)
		}
		return []symbols.Symbol{}
	}
	return result
}

// Scan returns the same declarations as QueryWorkspace but reports why a
// search failed instead of returning an empty result.
func (idx *Index) Scan(ctx context.Context) ([]symbols.Symbol, error) {
	if idx.searcher == nil {
		return nil, fmt.Errorf("%w: no searcher configured", grep.ErrUnavailable)
	}
	if idx.lister != nil {
		return idx.scan(ctx)
	}
	return idx.direct(ctx)
}

// Invalidate forgets the cached symbols of path.
func (idx *Index) Invalidate(path string) {
	idx.cache.Invalidate(idx.resolve(path))
}

func (idx *Index) scan(ctx context.Context) ([]symbols.Symbol, error) {
	var res singleflight.Result
	for {
		// concurrent queries share one scan; each then reads the cache itself
		ch := idx.scans.DoChan("scan", func() (any, error) {
			return idx.scanPending(ctx)
		})

		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res.Err != nil && ctx.Err() == nil && isContextErr(res.Err) {
			// the caller that started the shared scan went away, not this one
			idx.logger.Debug("shared scan cancelled, rescanning")
			continue
		}
		break
	}
	if res.Err != nil {
		return nil, res.Err
	}

	files := res.Val.([]string)
	result := []symbols.Symbol{}
	for _, path := range files {
		if e := idx.cache.Lookup(path); e.State == Populated {
			result = append(result, e.Symbols...)
		}
	}
	return result, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// scanPending lists the workspace, searches the files without a Populated
// entry and commits their symbols. It returns the sorted file list.
func (idx *Index) scanPending(ctx context.Context) ([]string, error) {
	files, err := idx.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	for i, f := range files {
		files[i] = idx.resolve(f)
	}
	sort.Strings(files)

	pending, gens := idx.cache.Pending(files)
	if len(pending) == 0 {
		return files, nil
	}
	idx.logger.Debug("scanning files", "files", len(pending), "cached", len(files)-len(pending))

	found := make(map[string][]symbols.Symbol, len(pending))
	var errs error
	for _, rule := range idx.rules {
		for start := 0; start < len(pending); start += idx.batchSize {
			batch := pending[start:min(start+idx.batchSize, len(pending))]
			lines, err := idx.searcher.Search(ctx, rule.Pattern, batch)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				errs = multierr.Append(errs, fmt.Errorf("%s rule: %w", rule.Kind, err))
				break
			}
			for path, syms := range idx.parseLines(rule, lines) {
				found[path] = append(found[path], syms...)
			}
		}
	}
	if errs != nil {
		// a partial scan would cache files missing some kinds
		return nil, errs
	}

	stale := 0
	for _, path := range pending {
		if !idx.cache.Commit(path, gens[path], found[path]) {
			stale++
		}
	}
	if stale > 0 {
		idx.logger.Debug("files changed during scan", "files", stale)
	}
	return files, nil
}

func (idx *Index) direct(ctx context.Context) ([]symbols.Symbol, error) {
	result := []symbols.Symbol{}
	var errs error
	for _, rule := range idx.rules {
		lines, err := idx.searcher.Search(ctx, rule.Pattern, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = multierr.Append(errs, fmt.Errorf("%s rule: %w", rule.Kind, err))
			continue
		}
		paths := make([]string, 0)
		byPath := idx.parseLines(rule, lines)
		for path := range byPath {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			result = append(result, byPath[path]...)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return result, nil
}

// parseLines converts raw result lines for rule into symbols keyed by
// absolute path. Lines that do not parse are skipped.
func (idx *Index) parseLines(rule symbols.PatternRule, lines []string) map[string][]symbols.Symbol {
	out := make(map[string][]symbols.Symbol)
	for _, line := range lines {
		m, ok := grep.ParseLine(line)
		if !ok {
			idx.logger.Debug("skipping malformed search result", "line", line)
			continue
		}
		sym, ok := symbolFromMatch(rule, m)
		if !ok {
			idx.logger.Debug("search result does not match rule", "kind", rule.Kind, "line", line)
			continue
		}
		path := idx.resolve(m.Path)
		sym.Location.URI = document.URIFromPath(path)
		out[path] = append(out[path], sym)
	}
	return out
}

// symbolFromMatch re-applies the rule to the matched text to recover the
// name and its column.
func symbolFromMatch(rule symbols.PatternRule, m grep.Match) (symbols.Symbol, bool) {
	loc := rule.Regexp().FindStringSubmatchIndex(m.Text)
	if loc == nil || loc[2] < 0 {
		return symbols.Symbol{}, false
	}
	name := m.Text[loc[2]:loc[3]]
	line := m.Line - 1
	// Column counts bytes before the match; only the offset inside the match
	// is converted to UTF-16. Rules are line-anchored, so nothing precedes it.
	col := m.Column - 1 + utf16Len(m.Text[:loc[2]])
	return symbols.Symbol{
		Name: name,
		Kind: rule.Kind,
		Location: symbols.Location{
			Range: symbols.Range{
				Start: symbols.Position{Line: line, Character: col},
				End:   symbols.Position{Line: line, Character: col + utf16Len(name)},
			},
		},
	}, true
}

func (idx *Index) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(idx.root, path)
	}
	return filepath.Clean(path)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
