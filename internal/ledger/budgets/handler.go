package budgets

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/identity"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
	internalshared "github.com/atlas-erp/atlas-erp/internal/shared"
)

// Handler wires the budget HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers budget routes with their role guards.
func (h *Handler) MountRoutes(r chi.Router, guard identity.Guard) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticated())
		r.Get("/", h.list)
		r.Get("/{id}", h.getByID)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(identity.RoleManager, identity.RoleAdmin))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/deactivate", h.deactivate)
	})
}

type createBudgetRequest struct {
	Name      string          `json:"name" validate:"required"`
	AccountID string          `json:"accountId" validate:"required"`
	Period    string          `json:"period" validate:"required"`
	StartDate time.Time       `json:"startDate" validate:"required"`
	EndDate   time.Time       `json:"endDate" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

type updateBudgetRequest struct {
	Name     *string          `json:"name"`
	Amount   *decimal.Decimal `json:"amount"`
	EndDate  *time.Time       `json:"endDate"`
	IsActive *bool            `json:"isActive"`
}

// budgetResponse exposes the money fields as fixed two-decimal strings.
type budgetResponse struct {
	Budget
	Amount    string `json:"amount"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
}

func toResponse(b Budget) budgetResponse {
	return budgetResponse{
		Budget:    b,
		Amount:    b.Amount().StringFixed(2),
		Spent:     b.Spent().StringFixed(2),
		Remaining: b.Remaining().StringFixed(2),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if err := internalshared.DecodeJSON(r, &req); err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			internalshared.RespondError(w, h.logger,
				shared.NewValidationError(fieldErrs[0].Field(), "failed %q constraint", fieldErrs[0].Tag()))
			return
		}
		internalshared.RespondError(w, h.logger, shared.NewValidationError("body", "%v", err))
		return
	}
	budget, err := h.service.Create(r.Context(), CreateInput{
		Name:      req.Name,
		AccountID: req.AccountID,
		Period:    req.Period,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Amount:    req.Amount,
	})
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusCreated, toResponse(budget))
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	budget, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(budget))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		internalshared.RespondError(w, h.logger,
			shared.NewValidationError("account", "account query parameter is required"))
		return
	}
	listed, err := h.service.ListByAccount(r.Context(), account)
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	out := make([]budgetResponse, 0, len(listed))
	for _, budget := range listed {
		out = append(out, toResponse(budget))
	}
	internalshared.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateBudgetRequest
	if err := internalshared.DecodeJSON(r, &req); err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	budget, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Name:     req.Name,
		Amount:   req.Amount,
		EndDate:  req.EndDate,
		IsActive: req.IsActive,
	})
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(budget))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	budget, err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(budget))
}
