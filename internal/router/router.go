package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/cart"
	"github.com/tableside-pos/api/internal/config"
	"github.com/tableside-pos/api/internal/handler"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/menu"
	mw "github.com/tableside-pos/api/internal/middleware"
	"github.com/tableside-pos/api/internal/orderstore"
	"github.com/tableside-pos/api/internal/session"
	"github.com/tableside-pos/api/internal/ws"
)

// Deps are the services the routes are built on.
type Deps struct {
	Log        *logger.Logger
	Sessions   *session.Manager
	Orders     *orderstore.Registry
	Catalog    *menu.Catalog
	Selections *menu.Selections
	Carts      *cart.Registry
	Hub        *ws.Hub
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ready reports whether the backend is reachable.
	Ready func(ctx context.Context) error
}

// New creates a Chi router with all application routes wired up.
// Every route below /auth/login needs a session; the branch comes from it.
func New(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(mw.RequestID(deps.Log))
	r.Use(mw.Logging(deps.Log))
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	books := func(ctx context.Context, branchID uuid.UUID) handler.OrderBook {
		return deps.Orders.Store(ctx, branchID)
	}

	authHandler := handler.NewAuthHandler(deps.Sessions, deps.Log, deps.Carts.Drop, deps.Selections.Drop)
	authHandler.RegisterPublicRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(deps.Hub, deps.Sessions, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(deps.Sessions))

		authHandler.RegisterRoutes(r)

		menuHandler := handler.NewMenuHandler(deps.Catalog, deps.Selections, deps.Log)
		r.Route("/menu", menuHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(books, deps.Log)
		r.Route("/orders", orderHandler.RegisterRoutes)

		cartHandler := handler.NewCartHandler(deps.Carts, deps.Catalog, books, deps.Log)
		r.Route("/cart", cartHandler.RegisterRoutes)
	})

	deps.Log.Info(context.Background(), "router initialized")
	return r
}
