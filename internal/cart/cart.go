package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/model"
)

// Line is one menu item in the cart.
type Line struct {
	MenuItem model.MenuItem
	Quantity int32
	Notes    string
}

// Subtotal returns price × quantity using the live menu price.
func (l Line) Subtotal() decimal.Decimal {
	return l.MenuItem.Price.Mul(decimal.NewFromInt32(l.Quantity))
}

// Cart accumulates an in-progress order. It is never persisted; lines keep
// the order they were first added in. Cart is not safe for concurrent use;
// Registry serialises access per staff member.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts one more of menuItem in the cart.
func (c *Cart) Add(menuItem model.MenuItem) {
	if i := c.index(menuItem.ID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, Line{MenuItem: menuItem, Quantity: 1})
}

// SetQuantity overwrites the quantity of an existing line. A quantity of
// zero or less removes the line. An id that is not in the cart is ignored.
func (c *Cart) SetQuantity(menuItemID uuid.UUID, quantity int32) {
	i := c.index(menuItemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return
	}
	c.lines[i].Quantity = quantity
}

// SetNotes attaches kitchen notes to an existing line.
func (c *Cart) SetNotes(menuItemID uuid.UUID, notes string) {
	if i := c.index(menuItemID); i >= 0 {
		c.lines[i].Notes = notes
	}
}

// Total sums price × quantity over every line.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ToOrderItemsPayload freezes the current menu prices into item payloads.
func (c *Cart) ToOrderItemsPayload() []model.NewOrderItem {
	items := make([]model.NewOrderItem, len(c.lines))
	for i, l := range c.lines {
		items[i] = model.NewOrderItem{
			MenuItemID: l.MenuItem.ID,
			Quantity:   l.Quantity,
			ItemPrice:  l.MenuItem.Price,
			Notes:      l.Notes,
		}
	}
	return items
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Quantity returns how many of menuItemID are in the cart.
func (c *Cart) Quantity(menuItemID uuid.UUID) int32 {
	if i := c.index(menuItemID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) index(menuItemID uuid.UUID) int {
	for i, l := range c.lines {
		if l.MenuItem.ID == menuItemID {
			return i
		}
	}
	return -1
}
