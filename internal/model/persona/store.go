package persona

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPersona is returned when an identifier is not registered.
var ErrUnknownPersona = errors.New("unknown persona")

// Store exposes read-only persona lookup.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Get(id string) (Persona, error)
	IDs() []string
	// SafetyTriggers returns the keyword list owned by the tutoring persona.
	SafetyTriggers() []string
}

// MemoryStore implements Store with an immutable in-memory catalog.
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
// Later duplicates of an id are ignored.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int, len(items))}
	for _, item := range items {
		if _, dup := s.index[item.ID]; dup {
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item.clone())
	}
	return s
}

// List returns the catalog in registration order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, len(s.items))
	for i, item := range s.items {
		out[i] = item.clone()
	}
	return out
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	idx, ok := s.index[id]
	if !ok {
		return Persona{}, false
	}
	return s.items[idx].clone(), true
}

// Get is FindByID with an ErrUnknownPersona failure.
func (s *MemoryStore) Get(id string) (Persona, error) {
	p, ok := s.FindByID(id)
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return p, nil
}

// IDs returns the registered identifiers, sorted.
func (s *MemoryStore) IDs() []string {
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *MemoryStore) SafetyTriggers() []string {
	idx, ok := s.index[TutorID]
	if !ok {
		return nil
	}
	return append([]string(nil), s.items[idx].Triggers...)
}
