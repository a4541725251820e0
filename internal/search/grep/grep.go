// Package grep finds pattern matches in on-disk shader files, either through
// an external ripgrep process or an in-process walk, and enumerates the
// shader files of a workspace.
package grep

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrUnavailable is returned when the search executable cannot be resolved.
var ErrUnavailable = errors.New("search executable unavailable")

// Searcher runs one regular expression over a set of files and returns the
// raw result lines, formatted path:line:column:matched-text. An empty scope
// searches the whole root.
type Searcher interface {
	Search(ctx context.Context, pattern string, scope []string) ([]string, error)
}

// Match is one parsed result line. Line and Column are 1-based; Column
// counts bytes.
type Match struct {
	Path   string
	Line   int
	Column int
	Text   string
}

// String formats the match as a result line.
func (m Match) String() string {
	return fmt.Sprintf("%s:%d:%d:%s", m.Path, m.Line, m.Column, m.Text)
}

// resultLine finds the first :line:column: pair so paths carrying a drive
// letter still parse.
var resultLine = regexp.MustCompile(`^(.+?):(\d+):(\d+):(.*)$`)

// ParseLine parses a path:line:column:text result line. Lines that do not
// have that shape report false.
func ParseLine(line string) (Match, bool) {
	m := resultLine.FindStringSubmatch(line)
	if m == nil {
		return Match{}, false
	}
	lineNum, err := strconv.Atoi(m[2])
	if err != nil || lineNum < 1 {
		return Match{}, false
	}
	col, err := strconv.Atoi(m[3])
	if err != nil || col < 1 {
		return Match{}, false
	}
	return Match{Path: m[1], Line: lineNum, Column: col, Text: m[4]}, true
}
