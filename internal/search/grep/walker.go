package grep

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Walker searches files in process and emits the same result lines as
// Ripgrep: one line per match, path as passed in scope (or joined onto a
// scoped directory), 1-based line and byte column, matched text only.
type Walker struct {
	fs      afero.Fs
	root    string
	matcher *Matcher
}

// NewWalker creates an in-process searcher rooted at root.
func NewWalker(fsys afero.Fs, root string, matcher *Matcher) *Walker {
	return &Walker{fs: fsys, root: root, matcher: matcher}
}

// Search applies pattern line by line, like ripgrep without multiline mode.
func (w *Walker) Search(ctx context.Context, pattern string, scope []string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid search pattern: %w", err)
	}
	if len(scope) == 0 {
		scope = []string{"."}
	}

	lines := []string{}
	for _, target := range scope {
		files, err := w.expand(ctx, target)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			found, err := w.searchFile(re, file)
			if err != nil {
				continue
			}
			lines = append(lines, found...)
		}
	}
	return lines, nil
}

// expand turns a scope entry into the files to read, as display paths.
func (w *Walker) expand(ctx context.Context, target string) ([]string, error) {
	abs := w.resolve(target)
	info, err := w.fs.Stat(abs)
	if err != nil {
		// ripgrep reports missing paths and keeps going
		return nil, nil
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	lister := NewFileLister(w.fs, abs, w.matcher, nil)
	found, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(found))
	for _, f := range found {
		rel, err := filepath.Rel(abs, f)
		if err != nil {
			continue
		}
		files = append(files, filepath.Join(target, rel))
	}
	if target == "." {
		for i, f := range files {
			files[i] = "." + string(filepath.Separator) + f
		}
	}
	return files, nil
}

func (w *Walker) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.root, p)
}

func (w *Walker) searchFile(re *regexp.Regexp, display string) ([]string, error) {
	content, err := afero.ReadFile(w.fs, w.resolve(display))
	if err != nil {
		return nil, err
	}

	// lines may be arbitrarily long (minified or generated shaders)
	var out []string
	for i, raw := range bytes.Split(content, []byte{'\n'}) {
		line := strings.TrimSuffix(string(raw), "\r")
		for _, loc := range re.FindAllStringIndex(line, -1) {
			if loc[0] == loc[1] {
				continue
			}
			out = append(out, Match{
				Path:   display,
				Line:   i + 1,
				Column: loc[0] + 1,
				Text:   line[loc[0]:loc[1]],
			}.String())
		}
	}
	return out, nil
}
