package menu

import (
	"sync"

	"github.com/google/uuid"
)

// Selector tracks the category a staff member is browsing. The empty
// string means no categories exist.
type Selector struct {
	mu       sync.Mutex
	selected string
	known    []string
}

// NewSelector selects the first of categories.
func NewSelector(categories []string) *Selector {
	s := &Selector{}
	s.Reconcile(categories)
	return s
}

// Selected returns the current category.
func (s *Selector) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select switches to category. Unknown categories are rejected.
func (s *Selector) Select(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.known {
		if c == category {
			s.selected = category
			return true
		}
	}
	return false
}

// Reconcile updates the known categories after a reload. The selection is
// kept when it still exists, otherwise it moves to the first category.
func (s *Selector) Reconcile(categories []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.known = append([]string(nil), categories...)
	for _, c := range s.known {
		if c == s.selected {
			return
		}
	}
	s.selected = ""
	if len(s.known) > 0 {
		s.selected = s.known[0]
	}
}

// Selections keeps one Selector per staff member.
type Selections struct {
	mu        sync.Mutex
	selectors map[uuid.UUID]*Selector
}

// NewSelections creates an empty Selections.
func NewSelections() *Selections {
	return &Selections{selectors: make(map[uuid.UUID]*Selector)}
}

// For returns the staff member's selector. A new selector starts on the
// first of categories; an existing one is returned as is.
func (s *Selections) For(staffID uuid.UUID, categories []string) *Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.selectors[staffID]
	if !ok {
		sel = NewSelector(categories)
		s.selectors[staffID] = sel
	}
	return sel
}

// Reconcile moves every selector onto categories. Wire it to
// Catalog.OnLoad.
func (s *Selections) Reconcile(categories []string) {
	s.mu.Lock()
	selectors := make([]*Selector, 0, len(s.selectors))
	for _, sel := range s.selectors {
		selectors = append(selectors, sel)
	}
	s.mu.Unlock()

	for _, sel := range selectors {
		sel.Reconcile(categories)
	}
}

// Drop forgets the staff member's selection.
func (s *Selections) Drop(staffID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selectors, staffID)
}
