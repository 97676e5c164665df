package views

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/model"
)

func ordersWith(statuses ...enum.OrderStatus) []model.Order {
	out := make([]model.Order, len(statuses))
	for i, s := range statuses {
		out[i] = model.Order{ID: uuid.New(), Status: s, TableNumber: int32(i + 1)}
	}
	return out
}

func named(name string, qty int32) model.OrderItem {
	return model.OrderItem{Quantity: qty, MenuItem: &model.MenuItem{Name: name}}
}

func TestByStatus(t *testing.T) {
	orders := ordersWith(enum.OrderStatusNew, enum.OrderStatusReady, enum.OrderStatusNew, enum.OrderStatusPreparing)

	b := ByStatus(orders)

	if len(b.New) != 2 || len(b.Preparing) != 1 || len(b.Ready) != 1 {
		t.Fatalf("unexpected bucket sizes: %d/%d/%d", len(b.New), len(b.Preparing), len(b.Ready))
	}
	if b.New[0].ID != orders[0].ID || b.New[1].ID != orders[2].ID {
		t.Error("New bucket should keep input order")
	}
	if got := b.Counts()[enum.OrderStatusNew]; got != 2 {
		t.Errorf("New count: got %d, want 2", got)
	}
}

func TestFilter(t *testing.T) {
	orders := ordersWith(enum.OrderStatusNew, enum.OrderStatusReady, enum.OrderStatusPreparing)

	tests := []struct {
		filter  string
		want    int
		wantErr bool
	}{
		{"All", 3, false},
		{"", 3, false},
		{"New", 1, false},
		{"Ready", 1, false},
		{"Served", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := Filter(orders, tt.filter)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFilter) {
					t.Fatalf("expected ErrUnknownFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d orders, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFilterOptions(t *testing.T) {
	got := FilterOptions()
	want := []string{"All", "New", "Preparing", "Ready"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("option %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestActions(t *testing.T) {
	a := Actions(enum.OrderStatusNew)
	if len(a) != 1 || a[0].Label != "Start Preparing" || a[0].Next != enum.OrderStatusPreparing {
		t.Errorf("New actions: %+v", a)
	}
	a = Actions(enum.OrderStatusPreparing)
	if len(a) != 1 || a[0].Label != "Mark as Ready" || a[0].Next != enum.OrderStatusReady {
		t.Errorf("Preparing actions: %+v", a)
	}
	if a := Actions(enum.OrderStatusReady); len(a) != 0 {
		t.Errorf("Ready should offer no actions, got %+v", a)
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		current, next enum.OrderStatus
		ok            bool
	}{
		{enum.OrderStatusNew, enum.OrderStatusPreparing, true},
		{enum.OrderStatusPreparing, enum.OrderStatusReady, true},
		{enum.OrderStatusNew, enum.OrderStatusReady, false},
		{enum.OrderStatusPreparing, enum.OrderStatusNew, false},
		{enum.OrderStatusReady, enum.OrderStatusNew, false},
		{enum.OrderStatusNew, enum.OrderStatusNew, false},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.current, tt.next)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.current, tt.next, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.current, tt.next, err)
		}
	}
}

func TestLabels(t *testing.T) {
	if got := ItemsLabel(1); got != "1 item" {
		t.Errorf("ItemsLabel(1) = %q", got)
	}
	if got := ItemsLabel(3); got != "3 items" {
		t.Errorf("ItemsLabel(3) = %q", got)
	}
	if got := ItemsLabel(0); got != "0 items" {
		t.Errorf("ItemsLabel(0) = %q", got)
	}

	items := []model.OrderItem{named("Burger", 2), named("Fries", 1), named("Cola", 1)}
	if got := FirstItemLabel(items); got != "Burger +2 more" {
		t.Errorf("FirstItemLabel = %q", got)
	}
	if got := FirstItemLabel(items[:1]); got != "Burger" {
		t.Errorf("FirstItemLabel single = %q", got)
	}
	if got := FirstItemLabel(nil); got != "" {
		t.Errorf("FirstItemLabel empty = %q", got)
	}
	if got := FirstItemLabel([]model.OrderItem{{Quantity: 1}}); got != "Unknown item" {
		t.Errorf("FirstItemLabel without menu item = %q", got)
	}
}

func TestPreviewLines(t *testing.T) {
	items := []model.OrderItem{named("Burger", 2), named("Fries", 1), named("Cola", 3), named("Pie", 1), named("Tea", 1)}

	got := PreviewLines(items, DashboardPreviewItems)

	want := []string{"2x Burger", "1x Fries", "3x Cola", "+2 more items"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if got := PreviewLines(items[:2], DashboardPreviewItems); len(got) != 2 {
		t.Errorf("short list should not add a more line: %v", got)
	}
}

func TestCurrency(t *testing.T) {
	tests := map[string]string{
		"12.5":  "£12.50",
		"0":     "£0.00",
		"13.50": "£13.50",
		"3.456": "£3.46",
	}
	for in, want := range tests {
		if got := Currency(decimal.RequireFromString(in)); got != want {
			t.Errorf("Currency(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeFormats(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 5, 0, 0, time.UTC)
	if got := Time(ts); got != "14:05" {
		t.Errorf("Time = %q", got)
	}
	if got := DateTime(ts); got != "05/03/2026 14:05" {
		t.Errorf("DateTime = %q", got)
	}

	o := model.Order{CreatedAt: ts, UpdatedAt: ts}
	if WasUpdated(o) {
		t.Error("fresh order should not be marked updated")
	}
	o.UpdatedAt = ts.Add(time.Minute)
	if !WasUpdated(o) {
		t.Error("order with later updated_at should be marked updated")
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		status enum.OrderStatus
		want   BadgeStyle
	}{
		{enum.OrderStatusNew, BadgeStyle{"#FF6B35", "#FFFFFF"}},
		{enum.OrderStatusPreparing, BadgeStyle{"#FFC107", "#000000"}},
		{enum.OrderStatusReady, BadgeStyle{"#28A745", "#FFFFFF"}},
		{enum.OrderStatus("Other"), BadgeStyle{"#6C757D", "#FFFFFF"}},
	}
	for _, tt := range tests {
		if got := Badge(tt.status); got != tt.want {
			t.Errorf("Badge(%s) = %+v, want %+v", tt.status, got, tt.want)
		}
	}
}
