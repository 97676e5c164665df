package cart

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	cart *Cart
}

// Registry keeps one in-memory cart per staff member.
type Registry struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{carts: make(map[uuid.UUID]*entry)}
}

// With runs fn with exclusive access to the staff member's cart, creating
// an empty cart on first use.
func (r *Registry) With(staffID uuid.UUID, fn func(c *Cart) error) error {
	r.mu.Lock()
	e, ok := r.carts[staffID]
	if !ok {
		e = &entry{cart: New()}
		r.carts[staffID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.cart)
}

// Drop forgets the staff member's cart. Called on sign out.
func (r *Registry) Drop(staffID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, staffID)
}
