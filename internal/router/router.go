package router

import (
	"net/http"

	"github.com/carehub-id/api/internal/auth"
	"github.com/carehub-id/api/internal/config"
	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/handler"
	mw "github.com/carehub-id/api/internal/middleware"
	"github.com/carehub-id/api/internal/service"
	"github.com/carehub-id/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Externals are the collaborating systems the engine calls out to.
type Externals struct {
	Catalog   service.Catalog
	Documents service.DocumentStore
	Schedule  service.Schedule
}

// New creates a Chi router with all application routes wired up. Services
// share env; the hub receives live order updates when env has no notifier.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, ext Externals, env service.Env) chi.Router {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Notifier == nil && hub != nil {
		env.Notifier = hub
	}
	logger := env.Logger

	queries := database.New(pool)
	slots := service.NewSlotResolver(ext.Schedule, queries, env)
	orders := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, ext.Catalog, slots, env)
	checkout := service.NewCheckoutService(pool, func(db database.DBTX) service.CheckoutStore {
		return database.New(db)
	}, ext.Documents, auth.NewSessionSigner(cfg.SessionSecret), env)

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(env.Metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Guest-ID", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if env.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", env.Metrics.Handler())
	}

	if hub != nil {
		r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(hub, w, r)
		})
	}

	r.Route("/checkout-sessions", handler.NewSessionHandler(checkout, logger).RegisterRoutes)
	r.Route("/payments", handler.NewPaymentHandler(checkout, cfg.PaymentWebhookSecret, logger).RegisterRoutes)

	// Guest-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireGuest)

		r.Route("/cart", handler.NewCartHandler(orders, logger).RegisterRoutes)
		r.Route("/orders", handler.NewOrderHandler(orders, checkout, logger).RegisterRoutes)
		r.Route("/slots", handler.NewSlotHandler(slots, logger).RegisterRoutes)
	})

	logger.Info("router initialized")
	return r
}
