package server

import (
	"net/http"

	"github.com/alfagnish/users-api/internal/config"
	"github.com/alfagnish/users-api/internal/handlers"
	"github.com/alfagnish/users-api/internal/metrics"
	"github.com/alfagnish/users-api/internal/middleware"
	"github.com/alfagnish/users-api/internal/users"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// New creates a fully-configured chi router with middleware, handlers and
// the terminal error stages wired together in a fixed order.
func New(cfg *config.Config, store *users.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	errs := middleware.NewErrorHandler(log, cfg.Development())
	m := metrics.New(store.Len)

	// ── Middleware ───────────────────────────────────────────
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.AccessLog(log))
	r.Use(errs.Rescue)
	r.Use(middleware.Metrics(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, errs).Handler)
	}
	r.Use(middleware.LimitJSONBody(cfg.MaxJSONBodyBytes()))
	r.Use(chimw.GetHead)

	// ── Handlers ────────────────────────────────────────────
	usersH := handlers.NewUsersHandler(store, errs)
	healthH := handlers.NewHealthHandler(errs)

	// ── Routes ──────────────────────────────────────────────
	r.Route("/api/users", usersH.Routes)
	r.Route("/health", healthH.Routes)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// ── Error stages ────────────────────────────────────────
	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.NotFound)

	return r
}
