// Package document holds the text of documents open in the editor and
// translates between byte offsets and LSP positions.
package document

import (
	"sort"
	"unicode/utf8"

	"shaderls/internal/search/symbols"
)

// Document is an immutable snapshot of an open document.
type Document struct {
	uri        string
	languageID string
	version    int32
	text       string
	lineStarts []int
}

// New creates a document snapshot.
func New(uri, languageID string, version int32, text string) *Document {
	return &Document{
		uri:        uri,
		languageID: languageID,
		version:    version,
		text:       text,
		lineStarts: computeLineStarts(text),
	}
}

func (d *Document) URI() string        { return d.uri }
func (d *Document) LanguageID() string { return d.languageID }
func (d *Document) Version() int32     { return d.version }
func (d *Document) Text() string       { return d.text }
func (d *Document) LineCount() int     { return len(d.lineStarts) }

// computeLineStarts returns the byte offset of every line. \n, \r\n and a
// lone \r all end a line.
func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			starts = append(starts, i+1)
		}
	}
	return starts
}

// PositionAt converts a byte offset to a position. Offsets outside the text
// are clamped.
func (d *Document) PositionAt(offset int) symbols.Position {
	offset = max(0, min(offset, len(d.text)))
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1
	return symbols.Position{
		Line:      line,
		Character: utf16Len(d.text[d.lineStarts[line]:offset]),
	}
}

// OffsetAt converts a position to a byte offset. Lines past the end clamp to
// the end of the text, columns past the end of a line clamp to its end.
func (d *Document) OffsetAt(pos symbols.Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(d.lineStarts) {
		return len(d.text)
	}
	start, end := d.lineBounds(pos.Line)
	offset := start
	units := 0
	for offset < end && units < pos.Character {
		r, size := utf8.DecodeRuneInString(d.text[offset:])
		units += runeUnits(r)
		offset += size
	}
	return offset
}

// LineText returns line without its terminator.
func (d *Document) LineText(line int) string {
	if line < 0 || line >= len(d.lineStarts) {
		return ""
	}
	start, end := d.lineBounds(line)
	return d.text[start:end]
}

func (d *Document) lineBounds(line int) (int, int) {
	start := d.lineStarts[line]
	end := len(d.text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1]
	}
	for end > start && (d.text[end-1] == '\n' || d.text[end-1] == '\r') {
		end--
	}
	return start, end
}

// WordAt returns the identifier touching pos and its range. A cursor just
// past the last character of a word still selects it.
func (d *Document) WordAt(pos symbols.Position) (string, symbols.Range, bool) {
	offset := d.OffsetAt(pos)
	lineStart, lineEnd := d.lineBounds(min(max(pos.Line, 0), len(d.lineStarts)-1))

	start := offset
	for start > lineStart {
		r, size := utf8.DecodeLastRuneInString(d.text[lineStart:start])
		if !IsIdentRune(r) {
			break
		}
		start -= size
	}
	end := offset
	for end < lineEnd {
		r, size := utf8.DecodeRuneInString(d.text[end:])
		if !IsIdentRune(r) {
			break
		}
		end += size
	}

	if start == end {
		return "", symbols.Range{}, false
	}
	return d.text[start:end], symbols.Range{Start: d.PositionAt(start), End: d.PositionAt(end)}, true
}

// IsIdentRune reports whether r can appear in a shader identifier.
func IsIdentRune(r rune) bool {
	return r == '_' ||
		r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r >= 0x80 && r != utf8.RuneError
}

func runeUnits(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}
