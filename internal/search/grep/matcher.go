package grep

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	".shaderls":    true,
	"node_modules": true,
}

// Matcher decides which workspace paths hold shader source. Paths passed to
// it are slash separated and relative to the workspace root.
type Matcher struct {
	extensions map[string]bool
	exclude    []glob.Glob
	gitignore  *ignore.GitIgnore
}

// NewMatcher compiles the exclude globs. gitignore may be nil.
func NewMatcher(extensions, exclude []string, gitignore *ignore.GitIgnore) (*Matcher, error) {
	m := &Matcher{
		extensions: make(map[string]bool, len(extensions)),
		gitignore:  gitignore,
	}
	for _, ext := range extensions {
		m.extensions[strings.ToLower(ext)] = true
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling exclude pattern %q: %w", pattern, err)
		}
		m.exclude = append(m.exclude, g)
	}
	return m, nil
}

// SkipDir reports whether the directory at rel should not be walked.
func (m *Matcher) SkipDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	if ignoredDirs[path.Base(rel)] {
		return true
	}
	return m.excluded(rel + "/")
}

// Match reports whether the file at rel is a shader file that is not
// excluded.
func (m *Matcher) Match(rel string) bool {
	ext := strings.TrimPrefix(path.Ext(rel), ".")
	if !m.extensions[strings.ToLower(ext)] {
		return false
	}
	return !m.excluded(rel)
}

func (m *Matcher) excluded(rel string) bool {
	for _, g := range m.exclude {
		if g.Match(rel) || g.Match(strings.TrimSuffix(rel, "/")) {
			return true
		}
	}
	return m.gitignore != nil && m.gitignore.MatchesPath(rel)
}

// LoadGitignore compiles <root>/.gitignore. A missing file yields nil.
func LoadGitignore(fs afero.Fs, root string) *ignore.GitIgnore {
	content, err := afero.ReadFile(fs, filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(patterns...)
}
