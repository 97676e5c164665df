// Package views derives display data from order and menu snapshots. Every
// function is pure.
package views

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/model"
)

var (
	ErrUnknownFilter     = errors.New("unknown status filter")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DashboardPreviewItems is how many item lines an order card shows.
const DashboardPreviewItems = 3

// Buckets groups orders by status, each keeping the input order.
type Buckets struct {
	New       []model.Order
	Preparing []model.Order
	Ready     []model.Order
}

// Counts returns the size of each bucket.
func (b Buckets) Counts() map[enum.OrderStatus]int {
	return map[enum.OrderStatus]int{
		enum.OrderStatusNew:       len(b.New),
		enum.OrderStatusPreparing: len(b.Preparing),
		enum.OrderStatusReady:     len(b.Ready),
	}
}

// ByStatus splits orders into dashboard buckets. Unknown statuses are dropped.
func ByStatus(orders []model.Order) Buckets {
	var b Buckets
	for _, o := range orders {
		switch o.Status {
		case enum.OrderStatusNew:
			b.New = append(b.New, o)
		case enum.OrderStatusPreparing:
			b.Preparing = append(b.Preparing, o)
		case enum.OrderStatusReady:
			b.Ready = append(b.Ready, o)
		}
	}
	return b
}

// Filter keeps orders matching filter, which is "All" or a status.
func Filter(orders []model.Order, filter string) ([]model.Order, error) {
	if filter == "" || filter == enum.StatusFilterAll {
		return orders, nil
	}
	status := enum.OrderStatus(filter)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
	}
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

// FilterOptions lists the filters in display order.
func FilterOptions() []string {
	opts := []string{enum.StatusFilterAll}
	for _, s := range enum.OrderStatuses {
		opts = append(opts, string(s))
	}
	return opts
}

// Action is a forward move offered for an order.
type Action struct {
	Label   string           `json:"label"`
	Next    enum.OrderStatus `json:"next"`
	Variant string           `json:"variant"`
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the status it can move to.
var allowedTransitions = map[enum.OrderStatus]Action{
	enum.OrderStatusNew:       {Label: "Start Preparing", Next: enum.OrderStatusPreparing, Variant: "warning"},
	enum.OrderStatusPreparing: {Label: "Mark as Ready", Next: enum.OrderStatusReady, Variant: "success"},
}

// Actions returns the moves offered for status. Ready has none.
func Actions(status enum.OrderStatus) []Action {
	a, ok := allowedTransitions[status]
	if !ok {
		return []Action{}
	}
	return []Action{a}
}

// ValidateTransition checks if the transition from current to next is allowed.
func ValidateTransition(current, next enum.OrderStatus) error {
	a, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	if a.Next != next {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
	}
	return nil
}

// ItemsLabel returns "1 item" or "N items".
func ItemsLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

// FirstItemLabel names the first item and how many others follow,
// e.g. "Burger +2 more". Empty when there are no items.
func FirstItemLabel(items []model.OrderItem) string {
	if len(items) == 0 {
		return ""
	}
	label := ItemName(items[0])
	if len(items) > 1 {
		label += fmt.Sprintf(" +%d more", len(items)-1)
	}
	return label
}

// PreviewLines renders up to limit items as "2x Burger", plus a
// "+N more items" line when some are cut.
func PreviewLines(items []model.OrderItem, limit int) []string {
	var lines []string
	for i, it := range items {
		if i == limit {
			lines = append(lines, fmt.Sprintf("+%d more items", len(items)-limit))
			break
		}
		lines = append(lines, fmt.Sprintf("%dx %s", it.Quantity, ItemName(it)))
	}
	return lines
}

// Currency formats an amount as pounds, e.g. "£12.50".
func Currency(amount decimal.Decimal) string {
	return "£" + amount.StringFixed(2)
}

// Time formats the wall-clock time of t, e.g. "14:05".
func Time(t time.Time) string {
	return t.Format("15:04")
}

// DateTime formats t as a UK date and time, e.g. "05/03/2026 14:05".
func DateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// WasUpdated reports whether the order changed after it was created.
func WasUpdated(o model.Order) bool {
	return !o.UpdatedAt.Equal(o.CreatedAt)
}

// BadgeStyle is the colour pair of a status badge.
type BadgeStyle struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Badge returns the colours for status; unknown statuses are grey.
func Badge(status enum.OrderStatus) BadgeStyle {
	switch status {
	case enum.OrderStatusNew:
		return BadgeStyle{Background: "#FF6B35", Text: "#FFFFFF"}
	case enum.OrderStatusPreparing:
		return BadgeStyle{Background: "#FFC107", Text: "#000000"}
	case enum.OrderStatusReady:
		return BadgeStyle{Background: "#28A745", Text: "#FFFFFF"}
	}
	return BadgeStyle{Background: "#6C757D", Text: "#FFFFFF"}
}

// ItemName is the menu item name of it, or "Unknown item" when the menu
// item is gone.
func ItemName(it model.OrderItem) string {
	if it.MenuItem == nil || strings.TrimSpace(it.MenuItem.Name) == "" {
		return "Unknown item"
	}
	return it.MenuItem.Name
}
