package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/atlas-erp/atlas-erp/internal/audit"
	"github.com/atlas-erp/atlas-erp/internal/events"
	"github.com/atlas-erp/atlas-erp/internal/ledger/sequence"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// SequenceSource hands out the next number for a scope.
type SequenceSource interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// AuditPort records audit trail entries for privileged operations.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// EventSink carries outbound domain events.
type EventSink interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Service owns account lifecycle and the balance primitives.
type Service struct {
	repo   Repository
	seq    SequenceSource
	audit  AuditPort
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the account service.
func NewService(repo Repository, seq SequenceSource, auditPort AuditPort, sink EventSink, logger *slog.Logger) *Service {
	return &Service{repo: repo, seq: seq, audit: auditPort, events: sink, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput groups the fields for account creation.
type CreateInput struct {
	Name        string
	Description string
	Type        string
	Category    string
	Currency    string
	ParentID    string
	UserID      string
}

// Create validates the closed enumerations, enforces at most one active
// account per user and assigns a fresh account number. New accounts start at
// balance zero.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Account{}, shared.NewValidationError("name", "name is required")
	}
	accountType, err := ParseAccountType(in.Type)
	if err != nil {
		return Account{}, err
	}
	category, err := ParseCategory(accountType, in.Category)
	if err != nil {
		return Account{}, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Currency))
	if _, err := currency.ParseISO(code); err != nil {
		return Account{}, shared.NewValidationError("currency", "unknown ISO 4217 code %q", in.Currency)
	}
	if in.UserID != "" {
		existing, err := s.repo.GetActiveByUser(ctx, in.UserID)
		switch {
		case err == nil:
			return Account{}, shared.NewConflictError("user %s already has active account %s", in.UserID, existing.Number)
		case !errors.Is(err, shared.ErrNotFound):
			return Account{}, err
		}
	}

	seq, err := s.seq.Next(ctx, sequence.AccountScope(string(accountType)))
	if err != nil {
		return Account{}, err
	}
	now := s.now()
	account := Account{
		ID:          uuid.NewString(),
		Number:      sequence.FormatAccountNumber(NumberPrefix(accountType), seq),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Type:        accountType,
		Category:    category,
		Currency:    code,
		ParentID:    in.ParentID,
		UserID:      in.UserID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// GetByID looks an account up by id.
func (s *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByNumber looks an account up by its generated number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Account, error) {
	return s.repo.GetByNumber(ctx, number)
}

// GetByUser returns the user's active account.
func (s *Service) GetByUser(ctx context.Context, userID string) (Account, error) {
	return s.repo.GetActiveByUser(ctx, userID)
}

// ListByType lists accounts of one type ordered by number.
func (s *Service) ListByType(ctx context.Context, rawType string) ([]Account, error) {
	t, err := ParseAccountType(rawType)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByType(ctx, t)
}

// UpdateInput carries the partially updatable fields.
type UpdateInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// Update applies a partial update. It never touches the balance.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Account, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Account{}, shared.NewValidationError("name", "name must not be empty")
	}
	return s.repo.Update(ctx, id, UpdateSet{
		Name:        in.Name,
		Description: in.Description,
		IsActive:    in.IsActive,
	}, s.now())
}

// Deactivate soft-deletes the account. Accounts holding a balance stay
// active until the balance is cleared.
func (s *Service) Deactivate(ctx context.Context, id string) (Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if account.BalanceMinor != 0 {
		return Account{}, shared.NewConflictError(
			"account %s has nonzero balance %s", account.Number, account.Balance())
	}
	inactive := false
	return s.repo.Update(ctx, id, UpdateSet{IsActive: &inactive}, s.now())
}

// AdjustBalance is the privileged single-sided override: it moves the
// balance by amount with no offsetting entry anywhere, which can break the
// global debits-equals-credits invariant. Every call is written to the audit
// trail and announced on the event stream.
func (s *Service) AdjustBalance(ctx context.Context, id string, amount decimal.Decimal, actorID string) (Account, error) {
	if err := shared.ValidateAmount("amount", amount); err != nil {
		return Account{}, err
	}
	account, err := s.repo.IncrementBalance(ctx, id, shared.ToMinorUnits(amount), s.now())
	if err != nil {
		return Account{}, err
	}
	if err := s.audit.Record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   "account.adjust_balance",
		Entity:   "account",
		EntityID: account.ID,
		Meta: map[string]any{
			"number":  account.Number,
			"amount":  amount.String(),
			"balance": account.Balance().String(),
		},
	}); err != nil {
		s.logger.Warn("audit record failed",
			slog.String("account_id", account.ID), slog.Any("error", err))
	}
	if err := s.events.Publish(ctx, events.New(events.TypeBalanceAdjusted, s.now(), map[string]any{
		"account_id": account.ID,
		"number":     account.Number,
		"amount":     amount.String(),
		"balance":    account.Balance().String(),
		"actor_id":   actorID,
	})); err != nil {
		s.logger.Warn("balance adjusted event dropped",
			slog.String("account_id", account.ID), slog.Any("error", err))
	}
	return account, nil
}
