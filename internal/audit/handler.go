package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-erp/atlas-erp/internal/identity"
	internalshared "github.com/atlas-erp/atlas-erp/internal/shared"
)

// Handler exposes the audit trail read side.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the audit routes. The trail names actors and raw
// amounts, so reading it is admin-only.
func (h *Handler) MountRoutes(r chi.Router, guard identity.Guard) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(identity.RoleAdmin))
		r.Get("/{entity}/{entityID}", h.listByEntity)
	})
}

func (h *Handler) listByEntity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	entries, err := h.service.ListByEntity(r.Context(),
		chi.URLParam(r, "entity"), chi.URLParam(r, "entityID"), limit)
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	internalshared.RespondJSON(w, http.StatusOK, entries)
}
