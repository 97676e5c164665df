package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/apperr"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/orderstore"
	"github.com/tableside-pos/api/internal/views"
)

// OrderBook is one branch's order list.
// Satisfied by *orderstore.Store; narrow interface for testability.
type OrderBook interface {
	Orders() []model.Order
	Order(id uuid.UUID) (model.Order, bool)
	Loading() bool
	Refresh(ctx context.Context) error
	CreateOrder(ctx context.Context, req orderstore.CreateOrderRequest) (model.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enum.OrderStatus) error
}

// OrderBookFor returns the order book of a branch. uuid.Nil is a session
// without a branch.
type OrderBookFor func(ctx context.Context, branchID uuid.UUID) OrderBook

// OrderHandler handles order endpoints.
type OrderHandler struct {
	books OrderBookFor
	log   *logger.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(books OrderBookFor, log *logger.Logger) *OrderHandler {
	return &OrderHandler{books: books, log: log}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders; the branch comes from the session.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/dashboard", h.Dashboard)
	r.Post("/refresh", h.Refresh)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/advance", h.Advance)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableNumber int32                    `json:"table_number"`
	TotalAmount string                   `json:"total_amount" validate:"required"`
	Notes       string                   `json:"notes" validate:"max=500"`
	Items       []createOrderItemRequest `json:"items" validate:"dive"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int32  `json:"quantity"`
	ItemPrice  string `json:"item_price" validate:"required"`
	Notes      string `json:"notes" validate:"max=200"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Quantity   int32     `json:"quantity"`
	ItemPrice  string    `json:"item_price"`
	Subtotal   string    `json:"subtotal"`
	Notes      *string   `json:"notes"`
}

type orderResponse struct {
	ID           uuid.UUID           `json:"id"`
	BranchID     uuid.UUID           `json:"branch_id"`
	TableNumber  int32               `json:"table_number"`
	Status       enum.OrderStatus    `json:"status"`
	Badge        views.BadgeStyle    `json:"badge"`
	TotalAmount  string              `json:"total_amount"`
	TotalDisplay string              `json:"total_display"`
	Notes        *string             `json:"notes"`
	ItemsLabel   string              `json:"items_label"`
	FirstItem    string              `json:"first_item"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	CreatedTime  string              `json:"created_time"`
	WasUpdated   bool                `json:"was_updated"`
	Items        []orderItemResponse `json:"items"`
}

type orderDetailResponse struct {
	orderResponse
	CreatedDisplay string         `json:"created_display"`
	UpdatedDisplay string         `json:"updated_display"`
	Actions        []views.Action `json:"actions"`
}

type orderListResponse struct {
	Orders  []orderResponse `json:"orders"`
	Filter  string          `json:"filter"`
	Filters []string        `json:"filters"`
	Loading bool            `json:"loading"`
}

type dashboardCard struct {
	orderResponse
	Preview []string       `json:"preview"`
	Actions []views.Action `json:"actions"`
}

type dashboardResponse struct {
	Counts    map[enum.OrderStatus]int `json:"counts"`
	New       []dashboardCard          `json:"new"`
	Preparing []dashboardCard          `json:"preparing"`
	Ready     []dashboardCard          `json:"ready"`
	Loading   bool                     `json:"loading"`
}

// --- Handlers ---

// List handles GET /orders?status=All|New|Preparing|Ready.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	filter := r.URL.Query().Get("status")
	if filter == "" {
		filter = enum.StatusFilterAll
	}
	orders, err := views.Filter(book.Orders(), filter)
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders:  toOrderResponses(orders),
		Filter:  filter,
		Filters: views.FilterOptions(),
		Loading: book.Loading(),
	})
}

// Dashboard handles GET /orders/dashboard.
func (h *OrderHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	buckets := views.ByStatus(book.Orders())
	writeJSON(w, http.StatusOK, dashboardResponse{
		Counts:    buckets.Counts(),
		New:       toDashboardCards(buckets.New),
		Preparing: toDashboardCards(buckets.Preparing),
		Ready:     toDashboardCards(buckets.Ready),
		Loading:   book.Loading(),
	})
}

// Refresh handles POST /orders/refresh. A failed refresh keeps the
// previous list.
func (h *OrderHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	if err := book.Refresh(r.Context()); err != nil {
		writeError(w, r, h.log, err, apperr.CodeReadFailed)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders:  toOrderResponses(book.Orders()),
		Filter:  enum.StatusFilterAll,
		Filters: views.FilterOptions(),
		Loading: book.Loading(),
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, found := book.Order(orderID)
	if !found {
		writeError(w, r, h.log, orderstore.ErrOrderNotFound, apperr.CodeNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(order))
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid total_amount"})
		return
	}

	items := make([]model.NewOrderItem, len(req.Items))
	for i, item := range req.Items {
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "invalid menu_item_id")})
			return
		}
		price, err := decimal.NewFromString(item.ItemPrice)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "invalid item_price")})
			return
		}
		items[i] = model.NewOrderItem{
			MenuItemID: menuItemID,
			Quantity:   item.Quantity,
			ItemPrice:  price,
			Notes:      item.Notes,
		}
	}

	order, err := book.CreateOrder(r.Context(), orderstore.CreateOrderRequest{
		TableNumber: req.TableNumber,
		Items:       items,
		TotalAmount: total,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, h.log, err, apperr.CodeWriteFailed)
		return
	}

	writeJSON(w, http.StatusCreated, h.created(book, order))
}

// UpdateStatus handles PATCH /orders/{id}/status. Only the forward move
// offered for the current status is accepted.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, h.log, err, apperr.CodeValidation)
		return
	}

	next := enum.OrderStatus(req.Status)
	if !next.Valid() {
		writeError(w, r, h.log, orderstore.ErrInvalidStatus, apperr.CodeValidation)
		return
	}

	current, found := book.Order(orderID)
	if !found {
		writeError(w, r, h.log, orderstore.ErrOrderNotFound, apperr.CodeNotFound)
		return
	}

	if err := views.ValidateTransition(current.Status, next); err != nil {
		writeError(w, r, h.log, err, apperr.CodeConflict)
		return
	}

	h.setStatus(w, r, book, current, next)
}

// Advance handles POST /orders/{id}/advance, applying the single action
// offered for the order's status.
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	book, ok := h.book(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	current, found := book.Order(orderID)
	if !found {
		writeError(w, r, h.log, orderstore.ErrOrderNotFound, apperr.CodeNotFound)
		return
	}

	actions := views.Actions(current.Status)
	if len(actions) == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order has no further status"})
		return
	}

	h.setStatus(w, r, book, current, actions[0].Next)
}

// --- Helpers ---

func (h *OrderHandler) book(w http.ResponseWriter, r *http.Request) (OrderBook, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}
	return h.books(r.Context(), claims.BranchID), true
}

func (h *OrderHandler) setStatus(w http.ResponseWriter, r *http.Request, book OrderBook, current model.Order, next enum.OrderStatus) {
	if err := book.UpdateStatus(r.Context(), current.ID, next); err != nil {
		writeError(w, r, h.log, err, apperr.CodeWriteFailed)
		return
	}

	// The list only changes once the refresh lands; fall back to the
	// written status when it has not.
	updated, found := book.Order(current.ID)
	if !found || updated.Status != next {
		updated = current
		updated.Status = next
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(updated))
}

// created prefers the refreshed copy of order, which carries its items.
func (h *OrderHandler) created(book OrderBook, order model.Order) orderDetailResponse {
	if refreshed, ok := book.Order(order.ID); ok {
		return toOrderDetailResponse(refreshed)
	}
	return toOrderDetailResponse(order)
}

func toOrderResponse(o model.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Name:       views.ItemName(it),
			Quantity:   it.Quantity,
			ItemPrice:  it.ItemPrice.StringFixed(2),
			Subtotal:   it.Subtotal().StringFixed(2),
			Notes:      optionalString(it.Notes),
		}
	}
	return orderResponse{
		ID:           o.ID,
		BranchID:     o.BranchID,
		TableNumber:  o.TableNumber,
		Status:       o.Status,
		Badge:        views.Badge(o.Status),
		TotalAmount:  o.TotalAmount.StringFixed(2),
		TotalDisplay: views.Currency(o.TotalAmount),
		Notes:        optionalString(o.Notes),
		ItemsLabel:   views.ItemsLabel(len(o.Items)),
		FirstItem:    views.FirstItemLabel(o.Items),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		CreatedTime:  views.Time(o.CreatedAt),
		WasUpdated:   views.WasUpdated(o),
		Items:        items,
	}
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func toOrderDetailResponse(o model.Order) orderDetailResponse {
	return orderDetailResponse{
		orderResponse:  toOrderResponse(o),
		CreatedDisplay: views.DateTime(o.CreatedAt),
		UpdatedDisplay: views.DateTime(o.UpdatedAt),
		Actions:        views.Actions(o.Status),
	}
}

func toDashboardCards(orders []model.Order) []dashboardCard {
	cards := make([]dashboardCard, len(orders))
	for i, o := range orders {
		cards[i] = dashboardCard{
			orderResponse: toOrderResponse(o),
			Preview:       views.PreviewLines(o.Items, views.DashboardPreviewItems),
			Actions:       views.Actions(o.Status),
		}
	}
	return cards
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatItemError(index int, msg string) string {
	return fmt.Sprintf("items[%d]: %s", index, msg)
}
