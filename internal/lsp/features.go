package lsp

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"shaderls/internal/document"
	"shaderls/internal/search/symbols"
)

// definitions returns the locations of the document symbols named like the
// word at pos.
func definitions(doc *document.Document, pos symbols.Position, docSymbols []symbols.Symbol) []symbols.Location {
	locations := []symbols.Location{}
	word, _, ok := doc.WordAt(pos)
	if !ok {
		return locations
	}
	for _, sym := range docSymbols {
		if sym.Name == word {
			locations = append(locations, sym.Location)
		}
	}
	return locations
}

// localReferences finds every whole-word occurrence of name in doc.
func localReferences(doc *document.Document, name string) []symbols.Location {
	locations := []symbols.Location{}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return locations
	}
	for _, m := range re.FindAllStringIndex(doc.Text(), -1) {
		_, rng, ok := doc.WordAt(doc.PositionAt(m[0]))
		if !ok {
			continue
		}
		locations = append(locations, symbols.Location{URI: doc.URI(), Range: rng})
	}
	return locations
}

// foreignDeclarations keeps the workspace symbols named name that live in
// other documents.
func foreignDeclarations(uri, name string, wsSymbols []symbols.Symbol) []symbols.Location {
	var locations []symbols.Location
	for _, sym := range wsSymbols {
		if sym.Name == name && sym.Location.URI != uri {
			locations = append(locations, sym.Location)
		}
	}
	return locations
}

// completions offers the functions declared in doc that start with the word
// at pos.
func completions(doc *document.Document, pos symbols.Position) []CompletionItem {
	prefix, _, _ := doc.WordAt(pos)
	items := []CompletionItem{}
	for _, name := range symbols.FunctionNames(doc.Text()) {
		if strings.HasPrefix(name, prefix) {
			items = append(items, CompletionItem{Label: name, Kind: CompletionKindFunction})
		}
	}
	return items
}

// structTokenType is the only entry of the semantic token legend.
const structTokenType = "class"

var structDecl = regexp.MustCompile(`\bstruct\b[ \n]+([A-Za-z0-9_]+)`)

// structNames returns the distinct struct names declared in text.
func structNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range structDecl.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

type token struct {
	line, char, length int
}

// structTokens highlights every whole-word occurrence of a declared struct
// name, encoded relative to the previous token.
func structTokens(doc *document.Document) []uint32 {
	names := structNames(doc.Text())
	if len(names) == 0 {
		return []uint32{}
	}

	patterns := make([]*regexp.Regexp, 0, len(names))
	for _, name := range names {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(name)+`\b`))
	}

	var tokens []token
	for line := 0; line < doc.LineCount(); line++ {
		text := doc.LineText(line)
		for i, re := range patterns {
			for _, m := range re.FindAllStringIndex(text, -1) {
				tokens = append(tokens, token{
					line:   line,
					char:   utf16Len(text[:m[0]]),
					length: utf16Len(names[i]),
				})
			}
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].line != tokens[j].line {
			return tokens[i].line < tokens[j].line
		}
		return tokens[i].char < tokens[j].char
	})

	data := make([]uint32, 0, 5*len(tokens))
	prevLine, prevChar := 0, 0
	for _, t := range tokens {
		deltaChar := t.char
		if t.line == prevLine {
			deltaChar = t.char - prevChar
		}
		data = append(data, uint32(t.line-prevLine), uint32(deltaChar), uint32(t.length), 0, 0)
		prevLine, prevChar = t.line, t.char
	}
	return data
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
