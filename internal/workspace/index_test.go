package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaderls/internal/document"
	"shaderls/internal/search/grep"
	"shaderls/internal/search/symbols"
)

const root = "/ws"

type fakeSearcher struct {
	mu       sync.Mutex
	byKind   map[symbols.Kind][]string
	err      error
	scopes   [][]string
	onSearch func()
}

func (f *fakeSearcher) Search(ctx context.Context, pattern string, scope []string) ([]string, error) {
	f.mu.Lock()
	f.scopes = append(f.scopes, append([]string(nil), scope...))
	onSearch := f.onSearch
	f.mu.Unlock()

	if onSearch != nil {
		onSearch()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, rule := range symbols.Catalog() {
		if rule.Pattern == pattern {
			return f.byKind[rule.Kind], nil
		}
	}
	return nil, nil
}

// gatedSearcher blocks its first call until release is closed and then
// fails with that call's context error. Later calls answer from byKind.
type gatedSearcher struct {
	mu      sync.Mutex
	calls   int
	byKind  map[symbols.Kind][]string
	started chan struct{}
	release chan struct{}
}

func (g *gatedSearcher) Search(ctx context.Context, pattern string, scope []string) ([]string, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first {
		close(g.started)
		<-g.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rule := range symbols.Catalog() {
		if rule.Pattern == pattern {
			return g.byKind[rule.Kind], nil
		}
	}
	return nil, nil
}

type fakeLister struct {
	files []string
	err   error
}

func (f *fakeLister) List(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.files...), f.err
}

// memWorkspace builds an index that scans an in-memory tree with the
// builtin walker.
func memWorkspace(t *testing.T, files map[string]string) (*Index, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(root, name), []byte(content), 0644))
	}
	m, err := grep.NewMatcher([]string{"hlsl"}, nil, nil)
	require.NoError(t, err)

	idx := New(Options{
		Root:     root,
		Searcher: grep.NewWalker(fsys, root, m),
		Lister:   grep.NewFileLister(fsys, root, m, nil),
	})
	return idx, fsys
}

func names(syms []symbols.Symbol) []string {
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, s.Name)
	}
	return out
}

func abs(name string) string {
	return filepath.Join(root, name)
}

func TestQueryWorkspaceScan(t *testing.T) {
	idx, _ := memWorkspace(t, map[string]string{
		"lit.hlsl": "struct Light\n{\n  float3 pos;\n};\n" +
			"Texture2D<float4> albedoMap;\n" +
			"SamplerState linearSampler;\n" +
			"float4 main(float2 uv) : SV_Target\n{\n  return 0;\n}\n",
		"blur.hlsl": "float4 blur(float2 uv)\n{\n  return 0;\n}\n",
		"notes.txt": "struct NotShader {};\n",
	})

	got := idx.QueryWorkspace(context.Background(), "")
	assert.Equal(t, []string{"blur", "main", "Light", "linearSampler", "albedoMap"}, names(got))

	main := got[1]
	assert.Equal(t, symbols.KindFunction, main.Kind)
	assert.Equal(t, document.URIFromPath(abs("lit.hlsl")), main.Location.URI)
	assert.Equal(t, symbols.Range{
		Start: symbols.Position{Line: 6, Character: 7},
		End:   symbols.Position{Line: 6, Character: 11},
	}, main.Location.Range)
	assert.Empty(t, main.ContainerName)

	assert.Equal(t, 2, idx.Cache().Len())
}

func TestQueryWorkspaceIgnoresQuery(t *testing.T) {
	idx, _ := memWorkspace(t, map[string]string{
		"a.hlsl": "struct Light {};\nstruct Shadow {};\n",
	})

	// query does not filter; callers match names themselves
	got := idx.QueryWorkspace(context.Background(), "Light")
	assert.Equal(t, []string{"Light", "Shadow"}, names(got))
}

func TestInvalidateForcesRescan(t *testing.T) {
	idx, fsys := memWorkspace(t, map[string]string{
		"a.hlsl": "void FnFoo()\n{\n}\n",
		"b.hlsl": "// nothing declared\n",
	})
	ctx := context.Background()

	assert.Equal(t, []string{"FnFoo"}, names(idx.QueryWorkspace(ctx, "")))
	assert.Equal(t, []string{"FnFoo"}, names(idx.Cache().Lookup(abs("a.hlsl")).Symbols))
	assert.Equal(t, Entry{State: Populated, Symbols: []symbols.Symbol{}}, idx.Cache().Lookup(abs("b.hlsl")))

	require.NoError(t, afero.WriteFile(fsys, abs("a.hlsl"), []byte("// FnFoo removed\n"), 0644))

	// without invalidation the cached records are reused
	assert.Equal(t, []string{"FnFoo"}, names(idx.QueryWorkspace(ctx, "")))

	idx.Invalidate(abs("a.hlsl"))
	assert.Equal(t, Stale, idx.Cache().Lookup(abs("a.hlsl")).State)

	assert.Empty(t, idx.QueryWorkspace(ctx, ""))
	assert.Equal(t, Entry{State: Populated, Symbols: []symbols.Symbol{}}, idx.Cache().Lookup(abs("a.hlsl")))
	assert.Equal(t, Entry{State: Populated, Symbols: []symbols.Symbol{}}, idx.Cache().Lookup(abs("b.hlsl")))
}

func TestInvalidateRelativePath(t *testing.T) {
	idx, _ := memWorkspace(t, map[string]string{"a.hlsl": "struct A {};\n"})
	idx.QueryWorkspace(context.Background(), "")

	idx.Invalidate("a.hlsl")
	assert.Equal(t, Stale, idx.Cache().Lookup(abs("a.hlsl")).State)

	idx.Invalidate("never/seen.hlsl")
	assert.Equal(t, Absent, idx.Cache().Lookup(abs("never/seen.hlsl")).State)
}

func TestScanSkipsCachedFiles(t *testing.T) {
	searcher := &fakeSearcher{}
	lister := &fakeLister{files: []string{abs("a.hlsl"), abs("b.hlsl")}}
	idx := New(Options{Root: root, Searcher: searcher, Lister: lister})

	idx.QueryWorkspace(context.Background(), "")
	require.Len(t, searcher.scopes, len(symbols.Catalog()))
	assert.Equal(t, []string{abs("a.hlsl"), abs("b.hlsl")}, searcher.scopes[0])

	idx.QueryWorkspace(context.Background(), "")
	assert.Len(t, searcher.scopes, len(symbols.Catalog()), "fully cached workspace is not searched")

	idx.Invalidate(abs("b.hlsl"))
	idx.QueryWorkspace(context.Background(), "")
	assert.Equal(t, []string{abs("b.hlsl")}, searcher.scopes[len(searcher.scopes)-1])
}

func TestScanBatchesFiles(t *testing.T) {
	searcher := &fakeSearcher{}
	lister := &fakeLister{files: []string{abs("a.hlsl"), abs("b.hlsl"), abs("c.hlsl")}}
	idx := New(Options{Root: root, Searcher: searcher, Lister: lister, BatchSize: 2})

	idx.QueryWorkspace(context.Background(), "")

	require.Len(t, searcher.scopes, 2*len(symbols.Catalog()))
	assert.Equal(t, []string{abs("a.hlsl"), abs("b.hlsl")}, searcher.scopes[0])
	assert.Equal(t, []string{abs("c.hlsl")}, searcher.scopes[1])
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	searcher := &fakeSearcher{byKind: map[symbols.Kind][]string{
		symbols.KindStruct: {
			abs("a.hlsl") + ":1:1:struct Light",
			"truncated output",
			abs("a.hlsl") + ":3",
			abs("a.hlsl") + ":5:1:not a struct",
			abs("a.hlsl") + ":9:1:cbuffer PerFrame",
		},
	}}
	idx := New(Options{Root: root, Searcher: searcher, Lister: &fakeLister{files: []string{abs("a.hlsl")}}})

	got := idx.QueryWorkspace(context.Background(), "")
	assert.Equal(t, []string{"Light", "PerFrame"}, names(got))
	assert.Equal(t, 8, got[1].Location.Range.Start.Line)
	assert.Equal(t, 8, got[1].Location.Range.Start.Character)
}

func TestSearcherUnavailable(t *testing.T) {
	rg := grep.NewRipgrep("shaderls-no-such-binary", root, []string{"hlsl"}, nil, nil)
	idx := New(Options{Root: root, Searcher: rg, Lister: &fakeLister{files: []string{abs("a.hlsl")}}})

	got := idx.QueryWorkspace(context.Background(), "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, idx.Cache().Len())

	direct := New(Options{Root: root, Searcher: rg})
	assert.Empty(t, direct.QueryWorkspace(context.Background(), ""))
}

func TestSearchFailureCachesNothing(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("exit status 2")}
	idx := New(Options{Root: root, Searcher: searcher, Lister: &fakeLister{files: []string{abs("a.hlsl")}}})

	assert.Empty(t, idx.QueryWorkspace(context.Background(), ""))
	assert.Equal(t, Absent, idx.Cache().Lookup(abs("a.hlsl")).State)

	idx = New(Options{Root: root, Searcher: &fakeSearcher{}, Lister: &fakeLister{err: errors.New("permission denied")}})
	assert.Empty(t, idx.QueryWorkspace(context.Background(), ""))
}

func TestCancelledQuery(t *testing.T) {
	idx, _ := memWorkspace(t, map[string]string{"a.hlsl": "struct A {};\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, idx.QueryWorkspace(ctx, ""))
	assert.Equal(t, 0, idx.Cache().Len())
}

func TestCancelledCallerDoesNotFailSharedScan(t *testing.T) {
	searcher := &gatedSearcher{
		byKind:  map[symbols.Kind][]string{symbols.KindStruct: {abs("a.hlsl") + ":1:1:struct Light"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	idx := New(Options{Root: root, Searcher: searcher, Lister: &fakeLister{files: []string{abs("a.hlsl")}}})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan []symbols.Symbol, 1)
	go func() { first <- idx.QueryWorkspace(ctx, "") }()
	<-searcher.started

	second := make(chan []symbols.Symbol, 1)
	go func() { second <- idx.QueryWorkspace(context.Background(), "") }()
	// give the second query time to join the scan in flight
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.Empty(t, <-first)
	close(searcher.release)

	select {
	case got := <-second:
		assert.Equal(t, []string{"Light"}, names(got))
	case <-time.After(5 * time.Second):
		t.Fatal("second query did not finish")
	}
	assert.Equal(t, Populated, idx.Cache().Lookup(abs("a.hlsl")).State)
}

func TestScanReportsFailures(t *testing.T) {
	idx := New(Options{Root: root})
	_, err := idx.Scan(context.Background())
	assert.ErrorIs(t, err, grep.ErrUnavailable)

	searchErr := errors.New("exit status 2")
	idx = New(Options{Root: root, Searcher: &fakeSearcher{err: searchErr}, Lister: &fakeLister{files: []string{abs("a.hlsl")}}})
	_, err = idx.Scan(context.Background())
	assert.ErrorIs(t, err, searchErr)

	idx = New(Options{Root: root, Searcher: &fakeSearcher{err: searchErr}})
	_, err = idx.Scan(context.Background())
	assert.ErrorIs(t, err, searchErr)

	idx, _ = memWorkspace(t, map[string]string{"a.hlsl": "struct A {};\n"})
	got, err := idx.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(got))
}

func TestInvalidationDuringScanWins(t *testing.T) {
	searcher := &fakeSearcher{byKind: map[symbols.Kind][]string{
		symbols.KindFunction: {abs("a.hlsl") + ":1:1:void FnFoo("},
	}}
	idx := New(Options{Root: root, Searcher: searcher, Lister: &fakeLister{files: []string{abs("a.hlsl")}}})

	var once sync.Once
	searcher.onSearch = func() {
		once.Do(func() { idx.Invalidate(abs("a.hlsl")) })
	}

	assert.Empty(t, idx.QueryWorkspace(context.Background(), ""))
	assert.NotEqual(t, Populated, idx.Cache().Lookup(abs("a.hlsl")).State)

	// the next query rescans
	assert.Equal(t, []string{"FnFoo"}, names(idx.QueryWorkspace(context.Background(), "")))
}

func TestConcurrentQueries(t *testing.T) {
	idx, _ := memWorkspace(t, map[string]string{
		"a.hlsl": "struct A {};\n",
		"b.hlsl": "struct B {};\n",
	})

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = names(idx.QueryWorkspace(context.Background(), ""))
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []string{"A", "B"}, r)
	}
}

func TestQueryWorkspaceDirect(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, abs("b.hlsl"), []byte("struct B {};\nvoid run()\n"), 0644))
	require.NoError(t, afero.WriteFile(fsys, abs("a.hlsl"), []byte("struct A {};\n"), 0644))
	m, err := grep.NewMatcher([]string{"hlsl"}, nil, nil)
	require.NoError(t, err)

	idx := New(Options{Root: root, Searcher: grep.NewWalker(fsys, root, m)})

	got := idx.QueryWorkspace(context.Background(), "")
	assert.Equal(t, []string{"run", "A", "B"}, names(got))
	assert.Equal(t, document.URIFromPath(abs("a.hlsl")), got[1].Location.URI)
	assert.Equal(t, 0, idx.Cache().Len(), "direct strategy caches nothing")
}

func TestQueryDocument(t *testing.T) {
	store := document.NewStore()
	store.Open("file:///ws/lit.hlsl", "hlsl", 1, "struct Light\n{\n};\n")
	idx := New(Options{Root: root, Documents: store})

	got := idx.QueryDocument("file:///ws/lit.hlsl")
	assert.Equal(t, []string{"Light"}, names(got))

	missing := idx.QueryDocument("file:///ws/closed.hlsl")
	assert.NotNil(t, missing)
	assert.Empty(t, missing)

	assert.Empty(t, New(Options{Root: root}).QueryDocument("file:///ws/lit.hlsl"))
}
