// Package menu reads the system-wide menu and groups it for ordering.
package menu

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/model"
)

// Reader lists the menu items staff can order. Satisfied by *postgres.Queries.
type Reader interface {
	ListAvailableMenuItems(ctx context.Context) ([]model.MenuItem, error)
}

// Group is one category of the catalog.
type Group struct {
	Category string
	Items    []model.MenuItem
}

// Catalog caches the available menu items.
type Catalog struct {
	reader Reader
	log    *logger.Logger

	mu     sync.RWMutex
	items  []model.MenuItem
	loaded bool
	onLoad []func(categories []string)
}

// NewCatalog creates an empty Catalog. Call Load to fill it.
func NewCatalog(reader Reader, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{reader: reader, log: log}
}

// Load reads the available items, sorted by category then name. On failure
// the error is logged and the previous items are kept.
func (c *Catalog) Load(ctx context.Context) error {
	items, err := c.reader.ListAvailableMenuItems(ctx)
	if err != nil {
		c.log.Error(ctx, "error fetching menu items", err)
		return fmt.Errorf("list menu items: %w", err)
	}

	available := make([]model.MenuItem, 0, len(items))
	for _, it := range items {
		if it.Availability {
			available = append(available, it)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].Category != available[j].Category {
			return available[i].Category < available[j].Category
		}
		return available[i].Name < available[j].Name
	})

	c.mu.Lock()
	c.items = available
	c.loaded = true
	hooks := append([]func([]string){}, c.onLoad...)
	c.mu.Unlock()

	cats := categories(available)
	for _, fn := range hooks {
		fn(cats)
	}
	return nil
}

// OnLoad registers fn to run with the new categories after every
// successful Load.
func (c *Catalog) OnLoad(fn func(categories []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLoad = append(c.onLoad, fn)
}

// Loaded reports whether a Load has succeeded.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Items returns a copy of the catalog.
func (c *Catalog) Items() []model.MenuItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the item with the given id.
func (c *Catalog) Find(id uuid.UUID) (model.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.MenuItem{}, false
}

// Categories returns the distinct categories in first-appearance order.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return categories(c.items)
}

// ByCategory groups the items, categories in first-appearance order.
func (c *Catalog) ByCategory() []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var groups []Group
	index := make(map[string]int)
	for _, it := range c.items {
		i, ok := index[it.Category]
		if !ok {
			i = len(groups)
			index[it.Category] = i
			groups = append(groups, Group{Category: it.Category})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

func categories(items []model.MenuItem) []string {
	var out []string
	seen := make(map[string]bool)
	for _, it := range items {
		if !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	return out
}
