package engine

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация swagger-документации.
	_ "github.com/magabrotheeeer/ssh-subscription/docs"
	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/health"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/orders/initiate"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/orders/reconcile"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/plans"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/users/cancel"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/users/register"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/users/serverinfo"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/users/status"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/middlewarectx"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/jwt"
)

// NewRouter регистрирует все маршруты движка.
func NewRouter(cfg config.HTTPServer, logger *slog.Logger, d *Deps) http.Handler {
	r := chi.NewRouter()
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.MetricsMiddleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))
		r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
		r.Use(middlewarectx.RequireRole(logger, jwt.RoleChat, jwt.RoleOperator))

		r.Get("/plans", plans.New(logger, d.Catalog).ServeHTTP)

		r.Post("/users", register.New(logger, d.Accounts).ServeHTTP)
		r.Get("/users/{id}/status", status.New(logger, d.Accounts).ServeHTTP)
		r.Get("/users/{id}/serverinfo", serverinfo.New(logger, d.Accounts).ServeHTTP)
		r.Post("/users/{id}/cancel", cancel.New(logger, d.Accounts).ServeHTTP)

		r.Post("/orders", initiate.New(logger, d.Orders).ServeHTTP)
		r.Post("/orders/{id}/reconcile", reconcile.New(logger, d.Orders).ServeHTTP)
	})

	r.Get("/healthz", health.New(logger, d.Checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
	return r
}
