package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaderls/internal/search/symbols"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), ".shaderls", "symbols.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sym(name string, kind symbols.Kind, uri string, line int) symbols.Symbol {
	return symbols.Symbol{
		Name: name,
		Kind: kind,
		Location: symbols.Location{
			URI: uri,
			Range: symbols.Range{
				Start: symbols.Position{Line: line, Character: 7},
				End:   symbols.Position{Line: line, Character: 7 + len(name)},
			},
		},
	}
}

func names(syms []symbols.Symbol) []string {
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, s.Name)
	}
	return out
}

func TestReplaceAndList(t *testing.T) {
	s := openStore(t)

	lit := []symbols.Symbol{
		sym("main", symbols.KindFunction, "file:///ws/lit.hlsl", 9),
		sym("Light", symbols.KindStruct, "file:///ws/lit.hlsl", 0),
	}
	require.NoError(t, s.ReplaceFile("/ws/lit.hlsl", lit))

	got, err := s.ListDefsInFile("/ws/lit.hlsl")
	require.NoError(t, err)
	assert.Equal(t, []symbols.Symbol{lit[1], lit[0]}, got)

	require.NoError(t, s.ReplaceFile("/ws/lit.hlsl", lit[:1]))
	got, err = s.ListDefsInFile("/ws/lit.hlsl")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names(got))

	syms, files, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, syms)
	assert.Equal(t, 1, files)
}

func TestEmptyFileIsRecorded(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.ReplaceFile("/ws/empty.hlsl", nil))

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/empty.hlsl"}, files)

	got, err := s.ListDefsInFile("/ws/empty.hlsl")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemoveFile(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.ReplaceFile("/ws/a.hlsl", []symbols.Symbol{sym("A", symbols.KindStruct, "file:///ws/a.hlsl", 0)}))
	require.NoError(t, s.ReplaceFile("/ws/b.hlsl", []symbols.Symbol{sym("B", symbols.KindStruct, "file:///ws/b.hlsl", 0)}))

	require.NoError(t, s.RemoveFile("/ws/a.hlsl"))

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/b.hlsl"}, files)
	syms, _, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, syms)
}

func TestFindSymbolRanking(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.ReplaceFile("/ws/a.hlsl", []symbols.Symbol{
		sym("shadeLight", symbols.KindFunction, "file:///ws/a.hlsl", 1),
		sym("Light", symbols.KindStruct, "file:///ws/a.hlsl", 5),
		sym("LightData", symbols.KindStruct, "file:///ws/a.hlsl", 9),
		sym("lightSampler", symbols.KindVariable, "file:///ws/a.hlsl", 12),
		sym("Shadow", symbols.KindStruct, "file:///ws/a.hlsl", 20),
	}))

	got, err := s.FindSymbol("Light", 0, 0)
	require.NoError(t, err)
	// LIKE is case-insensitive for ASCII, so lightSampler ranks as a prefix match
	assert.Equal(t, []string{"Light", "LightData", "lightSampler", "shadeLight"}, names(got))

	got, err = s.FindSymbol("Light", symbols.KindStruct, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Light", "LightData"}, names(got))
	assert.Equal(t, symbols.KindStruct, got[0].Kind)
	assert.Equal(t, "file:///ws/a.hlsl", got[0].Location.URI)

	got, err = s.FindSymbol("Light", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Light"}, names(got))

	got, err = s.FindSymbol("nothing", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindSymbolEscapesWildcards(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.ReplaceFile("/ws/a.hlsl", []symbols.Symbol{
		sym("g_light", symbols.KindVariable, "file:///ws/a.hlsl", 1),
		sym("gXlight", symbols.KindVariable, "file:///ws/a.hlsl", 2),
	}))

	got, err := s.FindSymbol("g_", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"g_light"}, names(got))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceFile("/ws/a.hlsl", []symbols.Symbol{sym("A", symbols.KindStruct, "file:///ws/a.hlsl", 0)}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	syms, files, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, syms)
	assert.Equal(t, 1, files)
}
