package lsp

import (
	"strings"
	"sync"
)

// Document is an open buffer and the diagnostics last computed for it.
type Document struct {
	Text        string
	Version     int32
	Diagnostics int
}

type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewStore() *Store {
	return &Store{docs: map[string]*Document{}}
}

// Set stores text unless a newer version is already held.
func (s *Store) Set(uri, text string, version int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.docs[uri]; ok && version != 0 && version < cur.Version {
		return false
	}
	s.docs[uri] = &Document{Text: text, Version: version}
	return true
}

func (s *Store) Get(uri string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	if !ok {
		return "", false
	}
	return d.Text, true
}

// Record notes how many diagnostics were published for uri.
func (s *Store) Record(uri string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[uri]; ok {
		d.Diagnostics = count
	}
}

func (s *Store) Delete(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// IsKestrelURI reports whether uri names a .kes script.
func IsKestrelURI(uri string) bool {
	return strings.HasSuffix(strings.ToLower(uri), ".kes")
}
