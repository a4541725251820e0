package symbols

import (
	"log/slog"
	"strings"

	"shaderls/internal/logging"
)

// Source is a document as seen by the extractor.
type Source interface {
	URI() string
	Text() string
	// PositionAt converts a byte offset into the text to a position.
	PositionAt(offset int) Position
}

// Extractor scans a document's full text against a rule set.
type Extractor struct {
	rules  []PatternRule
	logger *slog.Logger
}

// NewExtractor returns an extractor over the catalog. A nil logger discards.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Extractor{rules: catalog, logger: logger}
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default extractor over src.
func Extract(src Source) []Symbol {
	return defaultExtractor.Extract(src)
}

// Extract returns every declaration found in src, grouped by rule in
// catalog order and by position within each rule. A range starts at the
// beginning of the declaring line and ends just past the kind's terminator.
// When no terminator follows, the range is clamped to the end of the text.
func (e *Extractor) Extract(src Source) []Symbol {
	text := src.Text()
	uri := src.URI()
	result := make([]Symbol, 0)

	for _, rule := range e.rules {
		term := Terminator(rule.Kind)
		for _, m := range rule.Regexp().FindAllStringSubmatchIndex(text, -1) {
			start := src.PositionAt(m[0])
			start.Character = 0

			end := len(text)
			if i := strings.IndexByte(text[m[0]:], term); i >= 0 {
				end = m[0] + i + 1
			} else {
				e.logger.Debug("declaration has no terminator, clamping to end of document",
					"uri", uri, "name", text[m[2]:m[3]], "terminator", string(term))
			}

			result = append(result, Symbol{
				Name: text[m[2]:m[3]],
				Kind: rule.Kind,
				Location: Location{
					URI:   uri,
					Range: Range{Start: start, End: src.PositionAt(end)},
				},
			})
		}
	}

	return result
}
