package symbols

import (
	"fmt"
	"strings"
)

// Kind is the declaration kind of a symbol. Values match the LSP SymbolKind
// codes so records can be handed to an editor as-is.
type Kind int

const (
	KindField    Kind = 8  // texture and buffer resources
	KindFunction Kind = 12 // functions
	KindVariable Kind = 13 // samplers
	KindStruct   Kind = 23 // struct, cbuffer, tbuffer
)

// String returns the lower-case kind name
func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindFunction:
		return "function"
	case KindVariable:
		return "variable"
	case KindStruct:
		return "struct"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "field":
		return KindField, true
	case "function":
		return KindFunction, true
	case "variable":
		return KindVariable, true
	case "struct":
		return KindStruct, true
	}
	return 0, false
}

// Position is a zero-based line and UTF-16 column.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Range is the half-open span [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a document identified by URI.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Symbol is a located, named, kinded declaration. Its JSON form is the LSP
// SymbolInformation shape.
type Symbol struct {
	Name          string   `json:"name"`
	Kind          Kind     `json:"kind"`
	ContainerName string   `json:"containerName"`
	Location      Location `json:"location"`
}
