package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/cart"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/handler"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/menu"
	"github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/orderstore"
)

type cartFixture struct {
	router *chi.Mux
	carts  *cart.Registry
	book   *mockOrderBook
	burger model.MenuItem
	cola   model.MenuItem
}

func setupCart(t *testing.T) *cartFixture {
	t.Helper()
	f := &cartFixture{
		carts:  cart.NewRegistry(),
		book:   &mockOrderBook{},
		burger: menuItem("Mains", "Burger", "4.50"),
		cola:   menuItem("Drinks", "Cola", "2.00"),
	}
	catalog := menu.NewCatalog(&mockMenuReader{items: []model.MenuItem{f.burger, f.cola}}, logger.Nop())
	if err := catalog.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	books := func(ctx context.Context, branchID uuid.UUID) handler.OrderBook { return f.book }

	h := handler.NewCartHandler(f.carts, catalog, books, logger.Nop())
	f.router = chi.NewRouter()
	f.router.Use(middleware.Authenticate(newSessions(newMockStaffStore())))
	f.router.Route("/cart", h.RegisterRoutes)
	return f
}

func (f *cartFixture) add(t *testing.T, claims *auth.Claims, item model.MenuItem) {
	t.Helper()
	rr := doAuthRequest(t, f.router, "POST", "/cart/items", map[string]string{"menu_item_id": item.ID.String()}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCart_AddAndView(t *testing.T) {
	f := setupCart(t)
	claims := testClaims(uuid.New())

	f.add(t, claims, f.burger)
	f.add(t, claims, f.burger)
	f.add(t, claims, f.cola)

	rr := doAuthRequest(t, f.router, "GET", "/cart", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["total"] != "11.00" || resp["total_display"] != "£11.00" {
		t.Errorf("unexpected total: %v / %v", resp["total"], resp["total_display"])
	}
	lines := resp["lines"].([]interface{})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	first := lines[0].(map[string]interface{})
	if first["name"] != "Burger" || first["quantity"] != float64(2) {
		t.Errorf("unexpected first line: %v", first)
	}
}

func TestCart_IsPerStaff(t *testing.T) {
	f := setupCart(t)
	branchID := uuid.New()
	alice, bob := testClaims(branchID), testClaims(branchID)

	f.add(t, alice, f.burger)

	rr := doAuthRequest(t, f.router, "GET", "/cart", nil, bob)
	if lines := decodeResponse(t, rr)["lines"].([]interface{}); len(lines) != 0 {
		t.Fatalf("expected empty cart for second staff member, got %d lines", len(lines))
	}
}

func TestCart_AddUnknownItem(t *testing.T) {
	f := setupCart(t)

	rr := doAuthRequest(t, f.router, "POST", "/cart/items",
		map[string]string{"menu_item_id": uuid.New().String()}, testClaims(uuid.New()))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCart_UpdateItem(t *testing.T) {
	f := setupCart(t)
	claims := testClaims(uuid.New())
	f.add(t, claims, f.burger)
	f.add(t, claims, f.cola)

	rr := doAuthRequest(t, f.router, "PATCH", "/cart/items/"+f.burger.ID.String(),
		map[string]interface{}{"quantity": 3, "notes": "no onions"}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total"] != "15.50" {
		t.Errorf("expected total 15.50, got %v", resp["total"])
	}
	line := resp["lines"].([]interface{})[0].(map[string]interface{})
	if line["notes"] != "no onions" {
		t.Errorf("expected notes on line, got %v", line["notes"])
	}

	rr = doAuthRequest(t, f.router, "PATCH", "/cart/items/"+f.cola.ID.String(),
		map[string]interface{}{"quantity": 0}, claims)
	if lines := decodeResponse(t, rr)["lines"].([]interface{}); len(lines) != 1 {
		t.Fatalf("expected zero quantity to remove the line, got %d lines", len(lines))
	}

	rr = doAuthRequest(t, f.router, "PATCH", "/cart/items/"+uuid.New().String(),
		map[string]interface{}{"quantity": 5}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for absent item, got %d", rr.Code)
	}
	if lines := decodeResponse(t, rr)["lines"].([]interface{}); len(lines) != 1 {
		t.Fatalf("expected absent item to be ignored, got %d lines", len(lines))
	}
}

func TestCart_Clear(t *testing.T) {
	f := setupCart(t)
	claims := testClaims(uuid.New())
	f.add(t, claims, f.burger)

	rr := doAuthRequest(t, f.router, "DELETE", "/cart", nil, claims)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	rr = doAuthRequest(t, f.router, "GET", "/cart", nil, claims)
	if lines := decodeResponse(t, rr)["lines"].([]interface{}); len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
}

func TestCart_Submit(t *testing.T) {
	f := setupCart(t)
	branchID := uuid.New()
	claims := testClaims(branchID)
	f.add(t, claims, f.burger)
	f.add(t, claims, f.burger)
	f.add(t, claims, f.cola)

	var got orderstore.CreateOrderRequest
	f.book.createFn = func(ctx context.Context, req orderstore.CreateOrderRequest) (model.Order, error) {
		got = req
		return model.Order{ID: uuid.New(), BranchID: branchID, TableNumber: req.TableNumber,
			Status: enum.OrderStatusNew, TotalAmount: req.TotalAmount}, nil
	}

	rr := doAuthRequest(t, f.router, "POST", "/cart/submit",
		map[string]string{"table_number": " 12 ", "notes": "  birthday  "}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.TableNumber != 12 || got.Notes != "birthday" {
		t.Errorf("unexpected request: table %d notes %q", got.TableNumber, got.Notes)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("11")) {
		t.Errorf("expected total 11, got %s", got.TotalAmount)
	}
	if len(got.Items) != 2 {
		t.Errorf("expected 2 item payloads, got %d", len(got.Items))
	}

	rr = doAuthRequest(t, f.router, "GET", "/cart", nil, claims)
	if lines := decodeResponse(t, rr)["lines"].([]interface{}); len(lines) != 0 {
		t.Fatalf("expected cart cleared after submit, got %d lines", len(lines))
	}
}

func TestCart_SubmitFailuresKeepCart(t *testing.T) {
	tests := []struct {
		name       string
		table      string
		empty      bool
		createErr  error
		wantStatus int
	}{
		{name: "missing table", table: "  ", wantStatus: http.StatusBadRequest},
		{name: "non-numeric table", table: "A4", wantStatus: http.StatusBadRequest},
		{name: "empty cart", table: "4", empty: true, wantStatus: http.StatusBadRequest},
		{name: "no branch", table: "4", createErr: orderstore.ErrNoBranch, wantStatus: http.StatusForbidden},
		{name: "backend failure", table: "4", createErr: context.DeadlineExceeded, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupCart(t)
			claims := testClaims(uuid.New())
			if !tt.empty {
				f.add(t, claims, f.burger)
			}
			calls := 0
			f.book.createFn = func(ctx context.Context, req orderstore.CreateOrderRequest) (model.Order, error) {
				calls++
				return model.Order{}, tt.createErr
			}

			rr := doAuthRequest(t, f.router, "POST", "/cart/submit", map[string]string{"table_number": tt.table}, claims)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.createErr == nil && calls != 0 {
				t.Errorf("expected no backend call, got %d", calls)
			}

			rr = doAuthRequest(t, f.router, "GET", "/cart", nil, claims)
			want := 1
			if tt.empty {
				want = 0
			}
			if lines := decodeResponse(t, rr)["lines"].([]interface{}); len(lines) != want {
				t.Fatalf("expected %d lines kept, got %d", want, len(lines))
			}
		})
	}
}

// mockCartStore routes cart access through withFn.
type mockCartStore struct {
	withFn func(staffID uuid.UUID, fn func(c *cart.Cart) error) error
}

func (m *mockCartStore) With(staffID uuid.UUID, fn func(c *cart.Cart) error) error {
	return m.withFn(staffID, fn)
}

func TestCart_StoreErrorsAreReported(t *testing.T) {
	burger := menuItem("Mains", "Burger", "4.50")
	catalog := menu.NewCatalog(&mockMenuReader{items: []model.MenuItem{burger}}, logger.Nop())
	if err := catalog.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	store := &mockCartStore{withFn: func(uuid.UUID, func(*cart.Cart) error) error {
		return errors.New("cart unavailable")
	}}
	books := func(ctx context.Context, branchID uuid.UUID) handler.OrderBook { return &mockOrderBook{} }

	h := handler.NewCartHandler(store, catalog, books, logger.Nop())
	router := chi.NewRouter()
	router.Use(middleware.Authenticate(newSessions(newMockStaffStore())))
	router.Route("/cart", h.RegisterRoutes)

	claims := testClaims(uuid.New())
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"get", "GET", "/cart", nil},
		{"clear", "DELETE", "/cart", nil},
		{"add", "POST", "/cart/items", map[string]string{"menu_item_id": burger.ID.String()}},
		{"update", "PATCH", "/cart/items/" + burger.ID.String(), map[string]int{"quantity": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, tt.method, tt.path, tt.body, claims)
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
			}
			if code := decodeResponse(t, rr)["code"]; code != "INTERNAL_ERROR" {
				t.Errorf("expected INTERNAL_ERROR, got %v", code)
			}
		})
	}
}
