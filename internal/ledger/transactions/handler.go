package transactions

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/identity"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
	internalshared "github.com/atlas-erp/atlas-erp/internal/shared"
)

// Handler wires the transaction HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transaction routes with their role guards.
func (h *Handler) MountRoutes(r chi.Router, guard identity.Guard) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticated())
		r.Get("/", h.list)
		r.Get("/{id}", h.getByID)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(identity.RoleManager, identity.RoleAdmin))
		r.Post("/", h.post)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(identity.RoleAdmin))
		r.Post("/{id}/void", h.void)
	})
}

type entryRequest struct {
	AccountID string          `json:"accountId" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo"`
}

type postTransactionRequest struct {
	Date          *time.Time     `json:"date"`
	Description   string         `json:"description" validate:"required"`
	Entries       []entryRequest `json:"entries" validate:"required,min=2,dive"`
	Type          string         `json:"type" validate:"required"`
	ReferenceID   string         `json:"referenceId"`
	ReferenceType string         `json:"referenceType"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
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

	in := PostInput{
		Description:   req.Description,
		Type:          req.Type,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		CreatedBy:     identity.ActorFromContext(r.Context()).ID,
	}
	if req.Date != nil {
		in.Date = *req.Date
	}
	for _, entry := range req.Entries {
		in.Entries = append(in.Entries, EntryInput{
			AccountID: entry.AccountID,
			Debit:     entry.Debit,
			Credit:    entry.Credit,
			Memo:      entry.Memo,
		})
	}

	txn, err := h.service.Post(r.Context(), in)
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusCreated, toResponse(txn))
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	actor := identity.ActorFromContext(r.Context())
	txn, err := h.service.Void(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(txn))
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	internalshared.RespondJSON(w, http.StatusOK, toResponse(txn))
}

// list serves both the by-account and the by-date-range projections, paged.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, perPage := internalshared.NormalizePage(
		atoiOrZero(query.Get("page")), atoiOrZero(query.Get("per_page")))
	offset := int64(page-1) * int64(perPage)

	if account := query.Get("account"); account != "" {
		listed, total, err := h.service.ListByAccount(r.Context(), account, offset, int64(perPage))
		if err != nil {
			internalshared.RespondError(w, h.logger, err)
			return
		}
		h.respondList(w, listed, internalshared.NewPagination(page, perPage, int(total)))
		return
	}

	from, err := parseDate(query.Get("from"), "from")
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	to, err := parseDate(query.Get("to"), "to")
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	listed, total, err := h.service.ListByDateRange(r.Context(),
		from, to.Add(24*time.Hour-time.Nanosecond), offset, int64(perPage))
	if err != nil {
		internalshared.RespondError(w, h.logger, err)
		return
	}
	h.respondList(w, listed, internalshared.NewPagination(page, perPage, int(total)))
}

type listResponse struct {
	Data       []transactionResponse     `json:"data"`
	Pagination internalshared.Pagination `json:"pagination"`
}

func (h *Handler) respondList(w http.ResponseWriter, listed []Transaction, pagination internalshared.Pagination) {
	out := make([]transactionResponse, 0, len(listed))
	for _, txn := range listed {
		out = append(out, toResponse(txn))
	}
	internalshared.RespondJSON(w, http.StatusOK, listResponse{Data: out, Pagination: pagination})
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func parseDate(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, shared.NewValidationError(field, "date is required as YYYY-MM-DD")
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.NewValidationError(field, "malformed date %q, expected YYYY-MM-DD", raw)
	}
	return parsed, nil
}
