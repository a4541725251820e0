package grep

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"shaderls/internal/logging"
)

// Ripgrep runs the rg executable.
type Ripgrep struct {
	binary string
	path   string // resolved executable, empty when not found
	root   string
	globs  []string
	logger *slog.Logger
}

// NewRipgrep resolves binary on PATH and prepares a searcher rooted at root
// that only looks at files with the given extensions and skips paths
// matching the exclude globs.
func NewRipgrep(binary, root string, extensions, exclude []string, logger *slog.Logger) *Ripgrep {
	r := &Ripgrep{
		binary: binary,
		root:   root,
		globs:  globsFor(extensions, exclude),
		logger: logging.Component(logger, "ripgrep"),
	}
	if path, err := exec.LookPath(binary); err == nil {
		r.path = path
	} else {
		r.logger.Warn("ripgrep not found, workspace symbols disabled", "binary", binary, "error", err)
	}
	return r
}

// Available reports whether the executable was resolved.
func (r *Ripgrep) Available() bool {
	return r.path != ""
}

// Args builds the rg command line for one pattern.
func (r *Ripgrep) Args(pattern string, scope []string) []string {
	args := make([]string, 0, 2*len(r.globs)+15+len(scope))
	for _, g := range r.globs {
		args = append(args, "--glob", g)
	}
	args = append(args,
		"--case-sensitive",
		"--only-matching",
		"--with-filename",
		"--line-number",
		"--column",
		"--hidden",
		// .gitignore applies outside git checkouts too, as in Matcher
		"--no-require-git",
		"--no-heading",
		"--color", "never",
		"-e", pattern,
		"--",
	)
	if len(scope) == 0 {
		return append(args, ".")
	}
	return append(args, scope...)
}

// Search runs rg once and collects its output. Exit code 1 means no match
// and is not an error. Cancelling ctx kills the process.
func (r *Ripgrep) Search(ctx context.Context, pattern string, scope []string) ([]string, error) {
	if !r.Available() {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, r.binary)
	}

	cmd := exec.CommandContext(ctx, r.path, r.Args(pattern, scope)...)
	cmd.Dir = r.root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ripgrep: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			switch exitErr.ExitCode() {
			case 1:
				return []string{}, nil
			case 2:
				// rg exits 2 on unreadable files even when other files matched
				if len(lines) > 0 {
					r.logger.Debug("ripgrep reported errors", "stderr", strings.TrimSpace(stderr.String()))
					return lines, nil
				}
				msg := "invalid search pattern or parameters"
				if s := strings.TrimSpace(stderr.String()); s != "" {
					msg = s
				}
				return nil, fmt.Errorf("ripgrep error (exit code 2): %s", msg)
			}
		}
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("ripgrep error: %w (%s)", waitErr, s)
		}
		return nil, fmt.Errorf("ripgrep error: %w", waitErr)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("reading ripgrep output: %w", scanErr)
	}

	return lines, nil
}

func globsFor(extensions, exclude []string) []string {
	globs := make([]string, 0, len(extensions)+len(exclude))
	for _, ext := range extensions {
		globs = append(globs, "*."+ext)
	}
	for _, pattern := range exclude {
		globs = append(globs, "!"+pattern)
	}
	return globs
}
