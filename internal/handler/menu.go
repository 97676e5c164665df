package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/apperr"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/menu"
	"github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/views"
)

// MenuCatalog is the cached menu.
// Satisfied by *menu.Catalog; narrow interface for testability.
type MenuCatalog interface {
	Load(ctx context.Context) error
	Loaded() bool
	Categories() []string
	ByCategory() []menu.Group
	Find(id uuid.UUID) (model.MenuItem, bool)
}

// MenuHandler serves the menu grouped by category.
type MenuHandler struct {
	catalog    MenuCatalog
	selections *menu.Selections
	log        *logger.Logger
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(catalog MenuCatalog, selections *menu.Selections, log *logger.Logger) *MenuHandler {
	return &MenuHandler{catalog: catalog, selections: selections, log: log}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted at /menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/reload", h.Reload)
}

// --- Response types ---

type menuItemResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        string    `json:"price"`
	PriceDisplay string    `json:"price_display"`
	Category     string    `json:"category"`
	ImageURL     *string   `json:"image_url"`
}

type menuGroupResponse struct {
	Category string             `json:"category"`
	Items    []menuItemResponse `json:"items"`
}

type menuResponse struct {
	Categories       []string            `json:"categories"`
	SelectedCategory string              `json:"selected_category"`
	Groups           []menuGroupResponse `json:"groups"`
	Items            []menuItemResponse  `json:"items"`
}

// --- Handlers ---

// Get handles GET /menu. ?category= switches the staff member's selected
// category; the items of the selected category are returned in "items".
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if !h.catalog.Loaded() {
		if err := h.catalog.Load(r.Context()); err != nil {
			writeError(w, r, h.log, err, apperr.CodeReadFailed)
			return
		}
	}

	selector := h.selections.For(claims.UserID, h.catalog.Categories())
	if category := r.URL.Query().Get("category"); category != "" {
		if !selector.Select(category) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown category"})
			return
		}
	}

	writeJSON(w, http.StatusOK, h.menuResponse(selector.Selected()))
}

// Reload handles POST /menu/reload. On failure the previous catalog is kept.
func (h *MenuHandler) Reload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if err := h.catalog.Load(r.Context()); err != nil {
		writeError(w, r, h.log, err, apperr.CodeReadFailed)
		return
	}

	selector := h.selections.For(claims.UserID, h.catalog.Categories())
	writeJSON(w, http.StatusOK, h.menuResponse(selector.Selected()))
}

// --- Helpers ---

func (h *MenuHandler) menuResponse(selected string) menuResponse {
	groups := h.catalog.ByCategory()
	resp := menuResponse{
		Categories:       h.catalog.Categories(),
		SelectedCategory: selected,
		Groups:           make([]menuGroupResponse, len(groups)),
		Items:            []menuItemResponse{},
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	for i, g := range groups {
		items := make([]menuItemResponse, len(g.Items))
		for j, it := range g.Items {
			items[j] = toMenuItemResponse(it)
		}
		resp.Groups[i] = menuGroupResponse{Category: g.Category, Items: items}
		if g.Category == selected {
			resp.Items = items
		}
	}
	return resp
}

func toMenuItemResponse(it model.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:           it.ID,
		Name:         it.Name,
		Description:  it.Description,
		Price:        it.Price.StringFixed(2),
		PriceDisplay: views.Currency(it.Price),
		Category:     it.Category,
	}
	if it.ImageURL != "" {
		url := it.ImageURL
		resp.ImageURL = &url
	}
	return resp
}
