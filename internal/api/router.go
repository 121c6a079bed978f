package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/charity-faceoff/internal/api/handlers"
	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/auth"
	"github.com/baharkarakas/charity-faceoff/internal/config"
	"github.com/baharkarakas/charity-faceoff/internal/feed"
	"github.com/baharkarakas/charity-faceoff/internal/metrics"
	"github.com/baharkarakas/charity-faceoff/internal/middleware"
	"github.com/baharkarakas/charity-faceoff/internal/services"
)

type RouterDeps struct {
	Cfg         config.Config
	TM          *auth.TokenManager
	Reconciler  *services.Reconciler
	Checkout    *services.CheckoutService
	Totals      *services.TotalsService
	Admin       *services.AdminService
	Diagnostics *services.DiagnosticsService
	Auth        *services.AuthService
	Hub         *feed.Hub
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	})

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// Provider deliveries are not rate limited: a 429 would only trigger
	// more retries.
	wh := handlers.NewWebhookHandler(d.Reconciler)
	r.Post("/webhooks/stripe", wh.Stripe)

	co := handlers.NewCheckoutHandler(d.Checkout)
	th := handlers.NewTotalsHandler(d.Totals, d.Hub)
	ah := handlers.NewAuthHandler(d.Auth)
	adm := handlers.NewAdminHandler(d.Admin, d.Diagnostics)
	authMW := middleware.NewAuthMiddleware(d.TM)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Cfg.RateRPS))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
		}))

		r.Post("/checkout/sessions", co.Create)

		r.Get("/totals", th.List)
		r.Get("/totals/stream", th.Stream)
		r.Get("/totals/{teamID}", th.Get)

		r.Post("/admin/login", ah.Login)
		r.Post("/auth/refresh", ah.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth, middleware.RequireRole(services.RoleAdmin))
			r.Get("/admin/diagnostics", adm.Diagnostics)
			r.Post("/admin/teams/{teamID}/total", adm.AdjustTotal)
			r.Get("/admin/teams/{teamID}/donations", adm.Donations)
			r.Get("/admin/teams/{teamID}/audit", adm.Audit)
			r.Get("/admin/issues", adm.Issues)
			r.Post("/admin/issues/{issueID}/resolve", adm.ResolveIssue)
		})
	})

	return r
}
