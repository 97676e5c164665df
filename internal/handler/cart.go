package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/apperr"
	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/cart"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/views"
)

// CartStore gives exclusive access to a staff member's cart. Satisfied by
// *cart.Registry.
type CartStore interface {
	With(staffID uuid.UUID, fn func(c *cart.Cart) error) error
}

// CartHandler handles the staff member's in-progress order.
type CartHandler struct {
	carts   CartStore
	catalog MenuCatalog
	books   OrderBookFor
	log     *logger.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts CartStore, catalog MenuCatalog, books OrderBookFor, log *logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog, books: books, log: log}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Expected to be mounted at /cart.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{menuItemID}", h.UpdateItem)
	r.Post("/submit", h.Submit)
}

// --- Request / Response types ---

type addCartItemRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
}

type updateCartItemRequest struct {
	Quantity *int32  `json:"quantity"`
	Notes    *string `json:"notes" validate:"omitempty,max=200"`
}

type submitCartRequest struct {
	TableNumber string `json:"table_number"`
	Notes       string `json:"notes" validate:"max=500"`
}

type cartLineResponse struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	Quantity   int32     `json:"quantity"`
	Notes      *string   `json:"notes"`
	Subtotal   string    `json:"subtotal"`
}

type cartResponse struct {
	Lines        []cartLineResponse `json:"lines"`
	Total        string             `json:"total"`
	TotalDisplay string             `json:"total_display"`
}

// --- Handlers ---

// Get handles GET /cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var resp cartResponse
	err := h.carts.With(claims.UserID, func(c *cart.Cart) error {
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	err := h.carts.With(claims.UserID, func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /cart/items. The price is the catalog's current price.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
		return
	}

	if !h.catalog.Loaded() {
		if err := h.catalog.Load(r.Context()); err != nil {
			writeError(w, r, h.log, err, apperr.CodeReadFailed)
			return
		}
	}

	item, found := h.catalog.Find(menuItemID)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not available"})
		return
	}

	var resp cartResponse
	err = h.carts.With(claims.UserID, func(c *cart.Cart) error {
		c.Add(item)
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateItem handles PATCH /cart/items/{menuItemID}. A quantity of zero or
// less removes the line; ids not in the cart are ignored.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	menuItemID, err := uuid.Parse(chi.URLParam(r, "menuItemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req updateCartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	var resp cartResponse
	err = h.carts.With(claims.UserID, func(c *cart.Cart) error {
		if req.Notes != nil {
			c.SetNotes(menuItemID, *req.Notes)
		}
		if req.Quantity != nil {
			c.SetQuantity(menuItemID, *req.Quantity)
		}
		resp = toCartResponse(c)
		return nil
	})
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /cart/submit. The cart is cleared only when the
// order is saved.
func (h *CartHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req submitCartRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	book := h.books(r.Context(), claims.BranchID)

	var order model.Order
	err := h.carts.With(claims.UserID, func(c *cart.Cart) error {
		var err error
		order, err = cart.Submit(r.Context(), c, book, req.TableNumber, req.Notes)
		return err
	})
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeWriteFailed)
		return
	}

	if refreshed, ok := book.Order(order.ID); ok {
		order = refreshed
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(order))
}

// --- Helpers ---

func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}
	return claims, true
}

func toCartResponse(c *cart.Cart) cartResponse {
	lines := c.Lines()
	resp := cartResponse{
		Lines:        make([]cartLineResponse, len(lines)),
		Total:        c.Total().StringFixed(2),
		TotalDisplay: views.Currency(c.Total()),
	}
	for i, l := range lines {
		resp.Lines[i] = cartLineResponse{
			MenuItemID: l.MenuItem.ID,
			Name:       l.MenuItem.Name,
			Price:      l.MenuItem.Price.StringFixed(2),
			Quantity:   l.Quantity,
			Notes:      optionalString(l.Notes),
			Subtotal:   l.Subtotal().StringFixed(2),
		}
	}
	return resp
}
