package budgets

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/events"
	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// AccountDirectory resolves the account a budget caps.
type AccountDirectory interface {
	GetByID(ctx context.Context, id string) (accounts.Account, error)
}

// EventSink carries outbound domain events.
type EventSink interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Service tracks spend against time-boxed budgets and raises
// threshold-exceeded notifications.
type Service struct {
	repo   Repository
	dir    AccountDirectory
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the budget service.
func NewService(repo Repository, dir AccountDirectory, sink EventSink, logger *slog.Logger) *Service {
	return &Service{repo: repo, dir: dir, events: sink, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput groups the fields for budget creation.
type CreateInput struct {
	Name      string
	AccountID string
	Period    string
	StartDate time.Time
	EndDate   time.Time
	Amount    decimal.Decimal
}

// Create validates the period enumeration and the capped account, then
// opens the budget with spent zero and full remaining headroom.
func (s *Service) Create(ctx context.Context, in CreateInput) (Budget, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Budget{}, shared.NewValidationError("name", "name is required")
	}
	period, err := ParsePeriod(in.Period)
	if err != nil {
		return Budget{}, err
	}
	if err := shared.ValidateNonNegativeAmount("amount", in.Amount); err != nil {
		return Budget{}, err
	}
	if !in.EndDate.After(in.StartDate) {
		return Budget{}, shared.NewValidationError("endDate", "window must end after it starts")
	}
	if _, err := s.dir.GetByID(ctx, in.AccountID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Budget{}, shared.NewValidationError("accountId", "account %s does not exist", in.AccountID)
		}
		return Budget{}, err
	}

	now := s.now()
	amountMinor := shared.ToMinorUnits(in.Amount)
	budget := Budget{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(in.Name),
		AccountID:      in.AccountID,
		Period:         period,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		AmountMinor:    amountMinor,
		SpentMinor:     0,
		RemainingMinor: amountMinor,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, budget); err != nil {
		return Budget{}, err
	}
	return budget, nil
}

// ApplySpend accrues amount onto every active budget for the account whose
// window contains now. The caller is trusted: negative amounts (reversals,
// credit notes) pass through unchecked. Every update that leaves the budget
// over its cap re-fires a budget_exceeded notification; consumers that want
// edge-triggered alerts dedup downstream.
func (s *Service) ApplySpend(ctx context.Context, accountID string, amount decimal.Decimal) error {
	now := s.now()
	active, err := s.repo.ListActiveForAccountAt(ctx, accountID, now)
	if err != nil {
		return err
	}
	amountMinor := shared.ToMinorUnits(amount)
	for _, budget := range active {
		updated, err := s.repo.ApplySpend(ctx, budget.ID, amountMinor, now)
		if err != nil {
			return err
		}
		if updated.Exceeded() {
			s.notifyExceeded(ctx, updated)
		}
	}
	return nil
}

func (s *Service) notifyExceeded(ctx context.Context, budget Budget) {
	exceededBy := budget.Spent().Sub(budget.Amount())
	err := s.events.Publish(ctx, events.New(events.TypeBudgetExceeded, s.now(), map[string]any{
		"budget_id":    budget.ID,
		"name":         budget.Name,
		"account_id":   budget.AccountID,
		"amount":       budget.Amount().StringFixed(2),
		"spent":        budget.Spent().StringFixed(2),
		"remaining":    budget.Remaining().StringFixed(2),
		"exceeded_by":  exceededBy.StringFixed(2),
		"percent_used": budget.PercentUsed().String(),
	}))
	if err != nil {
		s.logger.Warn("budget exceeded event dropped",
			slog.String("budget_id", budget.ID), slog.Any("error", err))
	}
}

// GetByID returns one budget.
func (s *Service) GetByID(ctx context.Context, id string) (Budget, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByAccount returns all budgets capping an account.
func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]Budget, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// UpdateInput carries the partially updatable fields.
type UpdateInput struct {
	Name     *string
	Amount   *decimal.Decimal
	EndDate  *time.Time
	IsActive *bool
}

// Update applies a partial update. Spend accrual is never touched here; a
// changed amount recomputes remaining against the spend already accrued.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Budget, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Budget{}, shared.NewValidationError("name", "name must not be empty")
	}
	set := UpdateSet{Name: in.Name, EndDate: in.EndDate, IsActive: in.IsActive}
	if in.Amount != nil {
		if err := shared.ValidateNonNegativeAmount("amount", *in.Amount); err != nil {
			return Budget{}, err
		}
		minor := shared.ToMinorUnits(*in.Amount)
		set.AmountMinor = &minor
	}
	return s.repo.Update(ctx, id, set, s.now())
}

// Deactivate soft-deletes the budget; accrued history stays queryable.
func (s *Service) Deactivate(ctx context.Context, id string) (Budget, error) {
	inactive := false
	return s.repo.Update(ctx, id, UpdateSet{IsActive: &inactive}, s.now())
}
