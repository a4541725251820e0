package workspace

import (
	"sync"

	"shaderls/internal/search/symbols"
)

// State is the condition of one cache entry.
type State int

const (
	// Absent: the file has never been scanned.
	Absent State = iota
	// Stale: the file changed after its last scan and must be rescanned.
	Stale
	// Populated: Symbols are the file's declarations as of the last scan.
	Populated
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Stale:
		return "stale"
	case Populated:
		return "populated"
	}
	return "unknown"
}

// Entry is a snapshot of one cached file.
type Entry struct {
	State   State
	Symbols []symbols.Symbol
}

type entry struct {
	state   State
	symbols []symbols.Symbol
	gen     uint64
}

// Cache maps absolute file paths to their last scanned symbols.
//
// Every key carries a generation that Invalidate bumps. A scan records the
// generations of the files it is about to read and Commit refuses to write
// an entry whose generation moved in the meantime, so an invalidation is
// never lost to a scan that read the old file.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Lookup returns the entry for path.
func (c *Cache) Lookup(path string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		return Entry{State: Absent}
	}
	return Entry{State: e.state, Symbols: e.symbols}
}

// Pending returns the paths that are not Populated, with their current
// generations.
func (c *Cache) Pending(paths []string) ([]string, map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []string
	gens := make(map[string]uint64)
	for _, p := range paths {
		e, ok := c.entries[p]
		if ok && e.state == Populated {
			continue
		}
		pending = append(pending, p)
		if ok {
			gens[p] = e.gen
		}
	}
	return pending, gens
}

// Commit stores syms for path if its generation still equals gen. It
// reports whether the entry was written.
func (c *Cache) Commit(path string, gen uint64, syms []symbols.Symbol) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		e = &entry{}
		c.entries[path] = e
	}
	if e.gen != gen {
		return false
	}
	if syms == nil {
		syms = []symbols.Symbol{}
	}
	e.state = Populated
	e.symbols = syms
	return true
}

// Invalidate marks path Stale and bumps its generation. A path that was
// never scanned stays Absent.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		// still record the generation so a scan already reading this file
		// cannot commit it
		c.entries[path] = &entry{state: Absent, gen: 1}
		return
	}
	e.gen++
	if e.state == Populated {
		e.state = Stale
		e.symbols = nil
	}
}

// Len returns the number of Populated entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.state == Populated {
			n++
		}
	}
	return n
}
