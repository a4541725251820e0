package document

import (
	"sort"
	"sync"
)

// Store tracks the documents currently open in the editor, keyed by URI.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Open records a newly opened document, replacing any previous snapshot.
func (s *Store) Open(uri, languageID string, version int32, text string) *Document {
	doc := New(uri, languageID, version, text)
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

// Update replaces the text of an open document. It reports false when the
// document is not open.
func (s *Store) Update(uri string, version int32, text string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	doc := New(uri, prev.languageID, version, text)
	s.docs[uri] = doc
	return doc, true
}

// Close forgets a document.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get returns the open document for uri.
func (s *Store) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// All returns every open document ordered by URI.
func (s *Store) All() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].uri < docs[j].uri })
	return docs
}
