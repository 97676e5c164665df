// Package model holds the rows the gateway reads and writes.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/enum"
)

// Branch is a physical restaurant location.
type Branch struct {
	ID        uuid.UUID
	Name      string
	Location  string
	CreatedAt time.Time
}

// Staff is a branch employee who can sign in. BranchID is uuid.Nil when
// the account has not been assigned to a branch yet.
type Staff struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	HashedPassword string
	BranchID       uuid.UUID
	CreatedAt      time.Time
}

// MenuItem is an entry of the system-wide menu.
type MenuItem struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Price        decimal.Decimal
	Category     string
	Availability bool
	ImageURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Order is a table order with its items, newest item first.
type Order struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	TableNumber int32
	Status      enum.OrderStatus
	TotalAmount decimal.Decimal
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []OrderItem
}

// OrderItem is one line of an order. ItemPrice is the menu price captured
// when the order was placed.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	ItemPrice  decimal.Decimal
	Notes      string
	CreatedAt  time.Time
	MenuItem   *MenuItem
}

// Subtotal returns ItemPrice × Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.ItemPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// NewOrder is the header row inserted before its items.
type NewOrder struct {
	BranchID    uuid.UUID
	TableNumber int32
	Status      enum.OrderStatus
	TotalAmount decimal.Decimal
	Notes       string
}

// NewOrderItem is an item payload. OrderID is filled in once the header exists.
type NewOrderItem struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	ItemPrice  decimal.Decimal
	Notes      string
}

// Clone returns a deep copy so callers can't mutate store-owned slices.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}
