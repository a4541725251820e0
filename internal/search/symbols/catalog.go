package symbols

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	identPattern       = `[a-zA-Z_\x7f-\xff][a-zA-Z0-9:_\x7f-\xff]*`
	arrayIdentPattern  = `[a-zA-Z_\x7f-\xff][a-zA-Z0-9\[\]_\x7f-\xff]*`
	templateArgPattern = `[a-zA-Z_\x7f-\xff][a-zA-Z0-9,_\x7f-\xff]*`
)

// PatternRule recognizes one declaration kind at the start of a line.
// Pattern has exactly one capture group: the declared name.
type PatternRule struct {
	Kind    Kind
	Pattern string

	re *regexp.Regexp
}

func newRule(kind Kind, pattern string) PatternRule {
	return PatternRule{
		Kind:    kind,
		Pattern: pattern,
		re:      regexp.MustCompile("(?m)" + pattern),
	}
}

// Regexp returns the rule compiled in multiline mode, so ^ matches at every
// line start.
func (r PatternRule) Regexp() *regexp.Regexp {
	if r.re == nil {
		r.re = regexp.MustCompile("(?m)" + r.Pattern)
	}
	return r.re
}

// Validate checks the line-anchor and single-group invariants.
func (r PatternRule) Validate() error {
	if !strings.HasPrefix(r.Pattern, "^") {
		return fmt.Errorf("%s rule is not anchored to line start", r.Kind)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("%s rule: %w", r.Kind, err)
	}
	if n := re.NumSubexp(); n != 1 {
		return fmt.Errorf("%s rule has %d capture groups, want 1", r.Kind, n)
	}
	return nil
}

var catalog = []PatternRule{
	newRule(KindFunction, `^\w+\s+(`+identPattern+`)\s*\(`),
	newRule(KindStruct, `^(?:struct|cbuffer|tbuffer)\s+(`+identPattern+`)`),
	newRule(KindVariable, `^(?:sampler|sampler1D|sampler2D|sampler3D|samplerCUBE|samplerRECT|sampler_state|SamplerState)\s+(`+identPattern+`)`),
	newRule(KindField, `^(?:texture|texture2D|textureCUBE|Texture1D|Texture1DArray|Texture2D|Texture2DArray|Texture2DMS|Texture2DMSArray|Texture3D|TextureCube|TextureCubeArray)(?:\s*<(?:`+templateArgPattern+`)>)?\s+(`+arrayIdentPattern+`)`),
}

// Catalog returns the declaration rules in application order. The returned
// slice is a copy; callers may not alter the process-wide table.
func Catalog() []PatternRule {
	return slices.Clone(catalog)
}

// Terminator returns the character that closes a declaration of kind for
// range computation.
func Terminator(kind Kind) byte {
	switch kind {
	case KindFunction:
		return ')'
	case KindStruct:
		return '}'
	case KindVariable, KindField:
		return ';'
	}
	return 0
}

// functionNames matches function headers without scoped names; completion
// offers these as plain identifiers.
var functionNames = regexp.MustCompile(`(?m)^\w+\s+([a-zA-Z_\x7f-\xff][a-zA-Z0-9_\x7f-\xff]*)\s*\(`)

// FunctionNames returns the distinct function names declared in text, in
// order of first appearance.
func FunctionNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range functionNames.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
