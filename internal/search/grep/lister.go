package grep

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"shaderls/internal/logging"
)

// Lister enumerates the shader files under the workspace root.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// FileLister walks a file system with a Matcher.
type FileLister struct {
	fs      afero.Fs
	root    string
	matcher *Matcher
	logger  *slog.Logger
}

// NewFileLister creates a lister for root.
func NewFileLister(fsys afero.Fs, root string, matcher *Matcher, logger *slog.Logger) *FileLister {
	return &FileLister{
		fs:      fsys,
		root:    root,
		matcher: matcher,
		logger:  logging.Component(logger, "lister"),
	}
}

// List returns the absolute paths of matching files, sorted.
func (l *FileLister) List(ctx context.Context) ([]string, error) {
	files := []string{}
	err := afero.Walk(l.fs, l.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			l.logger.Debug("skipping unreadable path", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if l.matcher.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if l.matcher.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.root, err)
	}

	sort.Strings(files)
	return files, nil
}
