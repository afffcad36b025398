package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/identity"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
	internalshared "github.com/atlas-erp/atlas-erp/internal/shared"
)

// Handler wires the account HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers account routes with their role guards.
func (h *Handler) MountRoutes(r chi.Router, guard identity.Guard) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticated())
		r.Get("/", h.list)
		r.Get("/{id}", h.getByID)
		r.Get("/number/{number}", h.getByNumber)
		r.Get("/user/{userID}", h.getByUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(identity.RoleManager, identity.RoleAdmin))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(identity.RoleAdmin))
		r.Post("/{id}/adjust", h.adjustBalance)
		r.Post("/{id}/deactivate", h.deactivate)
	})
}

type createAccountRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Currency    string `json:"currency" validate:"required,len=3"`
	ParentID    string `json:"parentId"`
	UserID      string `json:"userId"`
}

type updateAccountRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type adjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// accountResponse exposes the balance as a fixed two-decimal string on top
// of the stored account fields.
type accountResponse struct {
	Account
	Balance string `json:"balance"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{Account: a, Balance: a.Balance().StringFixed(2)}
}

func (h *Handler) checkStruct(v any) error {
	if err := h.validate.Struct(v); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			return shared.NewValidationError(fieldErrs[0].Field(), "failed %q constraint", fieldErrs[0].Tag())
		}
		return shared.NewValidationError("body", "%v", err)
	}
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := internalshared.DecodeJSON(r, &req); err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	if err := h.checkStruct(req); err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	account, err := h.service.Create(r.Context(), CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Currency:    req.Currency,
		ParentID:    req.ParentID,
		UserID:      req.UserID,
	})
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusCreated, toResponse(account))
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) getByNumber(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) getByUser(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	listed, err := h.service.ListByType(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	out := make([]accountResponse, 0, len(listed))
	for _, account := range listed {
		out = append(out, toResponse(account))
	}
	internalshared.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := internalshared.DecodeJSON(r, &req); err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	account, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if err := internalshared.DecodeJSON(r, &req); err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	actor := identity.ActorFromContext(r.Context())
	account, err := h.service.AdjustBalance(r.Context(), chi.URLParam(r, "id"), req.Amount, actor.ID)
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(account))
}
