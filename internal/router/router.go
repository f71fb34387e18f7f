package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-charity-backoffice/internal/config"
	"go-charity-backoffice/internal/handler"
	"go-charity-backoffice/internal/middleware"
)

const (
	roleAdmin = "admin"

	healthTimeout = 2 * time.Second
)

type Handlers struct {
	Recycle  *handler.RecycleHandler
	Finance  *handler.FinanceHandler
	Members  *handler.MemberHandler
	Projects *handler.ProjectHandler
	Settings *handler.SettingsHandler
	Activity *handler.ActivityHandler

	Events  http.HandlerFunc
	Metrics http.Handler

	// Health reports whether the document store is reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.WriteRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler(h.Health))
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	if h.Events != nil {
		r.With(authMiddleware.RequireAuth).Get("/ws", h.Events)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(authMiddleware.RequireAuth)

		admin := api.With(authMiddleware.RequireRoles(roleAdmin))

		api.Get("/recycle-bin", h.Recycle.List)
		api.Get("/recycle-bin/watch", h.Recycle.Watch)
		admin.Post("/recycle-bin/{id}/restore", h.Recycle.Restore)
		admin.Delete("/recycle-bin/{id}", h.Recycle.PermanentDelete)
		admin.Delete("/recycle-bin", h.Recycle.Empty)
		admin.Post("/recycle-bin/cleanup", h.Recycle.Cleanup)

		api.Get("/payments", h.Finance.ListPayments)
		admin.Post("/payments", h.Finance.CreatePayment)
		admin.Delete("/payments/{id}", h.Finance.DeletePayment)
		api.Get("/expenses", h.Finance.ListExpenses)
		admin.Post("/expenses", h.Finance.CreateExpense)
		admin.Delete("/expenses/{id}", h.Finance.DeleteExpense)

		api.Get("/finance/dues", h.Finance.Dues)
		api.Get("/finance/top-contributors", h.Finance.TopContributors)
		api.Get("/finance/stats", h.Finance.Stats)

		api.Get("/members", h.Members.List)
		admin.Post("/members", h.Members.Create)
		admin.Delete("/members/{id}", h.Members.Delete)

		api.Get("/projects", h.Projects.List)
		admin.Post("/projects", h.Projects.Create)
		admin.Delete("/projects/{id}", h.Projects.Delete)

		api.Get("/settings/finance", h.Settings.Get)
		admin.Put("/settings/finance/monthly-due", h.Settings.SetMonthlyDue)
		admin.Post("/settings/finance/years", h.Settings.AddYear)
		admin.Delete("/settings/finance/years/{year}", h.Settings.RemoveYear)
		admin.Delete("/settings/finance/years/{year}/months/{month}", h.Settings.DisableMonth)

		admin.Get("/activity", h.Activity.List)
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := check(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store unavailable"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
