package persona

import "sync/atomic"

// snapshot pairs a document with the prompt rendered from it.
type snapshot struct {
	doc    *Document
	prompt string
}

// Store holds the active persona and its precomputed system prompt. Readers
// never block; Replace swaps both values atomically.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore renders doc once and returns a Store serving it.
func NewStore(doc *Document) *Store {
	s := &Store{}
	s.Replace(doc)
	return s
}

// Replace renders doc and makes it the active persona.
func (s *Store) Replace(doc *Document) {
	if doc == nil {
		doc = &Document{}
	}
	s.current.Store(&snapshot{doc: doc, prompt: Render(doc)})
}

// Prompt returns the active system prompt.
func (s *Store) Prompt() string { return s.current.Load().prompt }

// Document returns the active persona document. Callers must not mutate it.
func (s *Store) Document() *Document { return s.current.Load().doc }
