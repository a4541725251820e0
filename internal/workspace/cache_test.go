package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shaderls/internal/search/symbols"
)

func TestCacheLifecycle(t *testing.T) {
	c := NewCache()
	foo := []symbols.Symbol{{Name: "FnFoo", Kind: symbols.KindFunction}}

	assert.Equal(t, Entry{State: Absent}, c.Lookup("/a.hlsl"))

	pending, gens := c.Pending([]string{"/a.hlsl", "/b.hlsl"})
	assert.Equal(t, []string{"/a.hlsl", "/b.hlsl"}, pending)
	assert.True(t, c.Commit("/a.hlsl", gens["/a.hlsl"], foo))
	assert.True(t, c.Commit("/b.hlsl", gens["/b.hlsl"], nil))

	assert.Equal(t, Entry{State: Populated, Symbols: foo}, c.Lookup("/a.hlsl"))
	assert.Equal(t, Entry{State: Populated, Symbols: []symbols.Symbol{}}, c.Lookup("/b.hlsl"))
	assert.Equal(t, 2, c.Len())

	pending, _ = c.Pending([]string{"/a.hlsl", "/b.hlsl"})
	assert.Empty(t, pending)

	c.Invalidate("/a.hlsl")
	assert.Equal(t, Entry{State: Stale}, c.Lookup("/a.hlsl"))
	assert.Equal(t, 1, c.Len())

	pending, gens = c.Pending([]string{"/a.hlsl", "/b.hlsl"})
	assert.Equal(t, []string{"/a.hlsl"}, pending)
	assert.True(t, c.Commit("/a.hlsl", gens["/a.hlsl"], nil))
	assert.Equal(t, Entry{State: Populated, Symbols: []symbols.Symbol{}}, c.Lookup("/a.hlsl"))
}

func TestCacheRejectsCommitAfterInvalidate(t *testing.T) {
	c := NewCache()

	_, gens := c.Pending([]string{"/a.hlsl"})
	c.Invalidate("/a.hlsl")
	assert.False(t, c.Commit("/a.hlsl", gens["/a.hlsl"], nil), "unknown path invalidated mid-scan")
	assert.Equal(t, Absent, c.Lookup("/a.hlsl").State)

	_, gens = c.Pending([]string{"/a.hlsl"})
	assert.True(t, c.Commit("/a.hlsl", gens["/a.hlsl"], nil))

	c.Invalidate("/a.hlsl")
	_, gens = c.Pending([]string{"/a.hlsl"})
	c.Invalidate("/a.hlsl")
	assert.False(t, c.Commit("/a.hlsl", gens["/a.hlsl"], nil))
	assert.Equal(t, Stale, c.Lookup("/a.hlsl").State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "populated", Populated.String())
}
