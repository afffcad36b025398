package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atlas-erp/atlas-erp/internal/audit"
	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/budgets"
	"github.com/atlas-erp/atlas-erp/internal/ledger/transactions"
	internalshared "github.com/atlas-erp/atlas-erp/internal/shared"
)

// RouterConfig aggregates the handlers mounted on the API router.
type RouterConfig struct {
	Logger       *slog.Logger
	Config       *Config
	Accounts     *accounts.Handler
	Transactions *transactions.Handler
	Budgets      *budgets.Handler
	Audit        *audit.Handler
}

// NewRouter assembles the chi router with the shared middleware stack and
// the ledger API routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: cfg.Logger, Config: cfg.Config}) {
		r.Use(mw)
	}
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Config.AppRequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		internalshared.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	guard := HeaderGuard{Logger: cfg.Logger}
	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			cfg.Accounts.MountRoutes(r, guard)
		})
		r.Route("/transactions", func(r chi.Router) {
			cfg.Transactions.MountRoutes(r, guard)
		})
		r.Route("/budgets", func(r chi.Router) {
			cfg.Budgets.MountRoutes(r, guard)
		})
		r.Route("/audit", func(r chi.Router) {
			cfg.Audit.MountRoutes(r, guard)
		})
	})

	return r
}
