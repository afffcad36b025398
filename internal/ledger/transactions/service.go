package transactions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/audit"
	"github.com/atlas-erp/atlas-erp/internal/events"
	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/sequence"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// AccountDirectory resolves accounts referenced by journal entries.
type AccountDirectory interface {
	GetByID(ctx context.Context, id string) (accounts.Account, error)
}

// SequenceSource hands out the next number for a scope.
type SequenceSource interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// BudgetNotifier receives the spend applied to an account by a posting.
// Notification is asynchronous and best-effort; failures are logged only.
type BudgetNotifier interface {
	NotifySpend(ctx context.Context, accountID string, amount decimal.Decimal) error
}

// EventSink carries outbound domain events.
type EventSink interface {
	Publish(ctx context.Context, evt events.Event) error
}

// AuditPort records audit trail entries for privileged operations.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service validates and posts double-entry transactions, applies their
// balance effects and supports exactly-once voiding.
type Service struct {
	repo    Repository
	dir     AccountDirectory
	seq     SequenceSource
	audit   AuditPort
	budgets BudgetNotifier
	events  EventSink
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the transaction service.
func NewService(repo Repository, dir AccountDirectory, seq SequenceSource, auditPort AuditPort, budgets BudgetNotifier, sink EventSink, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		dir:     dir,
		seq:     seq,
		audit:   auditPort,
		budgets: budgets,
		events:  sink,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates the input, resolves every referenced account, assigns a
// transaction number and applies the posting. Validation and account
// resolution complete before any write begins, so a rejected posting has no
// side effects. After a successful posting the budget and event
// notifications go out asynchronously and never unwind the transaction.
func (s *Service) Post(ctx context.Context, in PostInput) (Transaction, error) {
	txnType, err := in.Validate()
	if err != nil {
		return Transaction{}, err
	}

	resolved := make(map[string]accounts.Account, len(in.Entries))
	for _, entry := range in.Entries {
		if _, ok := resolved[entry.AccountID]; ok {
			continue
		}
		account, err := s.dir.GetByID(ctx, entry.AccountID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Transaction{}, shared.NewValidationError("entries", "account %s does not exist", entry.AccountID)
			}
			return Transaction{}, err
		}
		if !account.IsActive {
			return Transaction{}, shared.NewValidationError("entries", "account %s is inactive", account.Number)
		}
		resolved[entry.AccountID] = account
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	seq, err := s.seq.Next(ctx, sequence.TransactionScope(date))
	if err != nil {
		return Transaction{}, err
	}

	now := s.now()
	txn := Transaction{
		ID:            uuid.NewString(),
		Number:        sequence.FormatTransactionNumber(date, seq),
		Date:          date,
		Description:   in.Description,
		Type:          txnType,
		Status:        StatusPosted,
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	deltas := make([]BalanceDelta, 0, len(in.Entries))
	for _, entry := range in.Entries {
		account := resolved[entry.AccountID]
		debitMinor := shared.ToMinorUnits(entry.Debit)
		creditMinor := shared.ToMinorUnits(entry.Credit)
		txn.Entries = append(txn.Entries, Entry{
			AccountID:   entry.AccountID,
			AccountName: account.Name,
			DebitMinor:  debitMinor,
			CreditMinor: creditMinor,
			Memo:        entry.Memo,
		})
		deltas = append(deltas, BalanceDelta{
			AccountID:  entry.AccountID,
			DeltaMinor: accounts.BalanceDeltaMinor(account.Type, debitMinor, creditMinor),
		})
	}

	if !s.repo.AtomicWrites() {
		s.logger.Warn("posting without multi-record atomicity, a crash can leave a partial transaction",
			slog.String("number", txn.Number))
	}
	if err := s.repo.ApplyPosting(ctx, txn, deltas); err != nil {
		return Transaction{}, err
	}

	s.notifyPosted(ctx, txn)
	return txn, nil
}

// notifyPosted fans the posting out to budget tracking and the event
// stream. Both are outside the consistency boundary.
func (s *Service) notifyPosted(ctx context.Context, txn Transaction) {
	for _, entry := range txn.Entries {
		spend := shared.FromMinorUnits(entry.DebitMinor - entry.CreditMinor)
		if spend.IsZero() {
			continue
		}
		if err := s.budgets.NotifySpend(ctx, entry.AccountID, spend); err != nil {
			s.logger.Warn("budget spend notification dropped",
				slog.String("number", txn.Number),
				slog.String("account_id", entry.AccountID),
				slog.Any("error", err))
		}
	}
	if err := s.events.Publish(ctx, events.New(events.TypeTransactionPosted, s.now(), postedPayload(txn))); err != nil {
		s.logger.Warn("transaction posted event dropped",
			slog.String("number", txn.Number), slog.Any("error", err))
	}
}

// Void reverses a posted transaction by replaying every entry with debit and
// credit swapped, under the same atomicity discipline as posting. Voiding
// twice is a conflict, not a no-op.
func (s *Service) Void(ctx context.Context, id, actorID string) (Transaction, error) {
	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status == StatusVoided {
		return Transaction{}, shared.NewConflictError("transaction %s is already voided", txn.Number)
	}

	deltas := make([]BalanceDelta, 0, len(txn.Entries))
	for _, entry := range txn.Entries {
		account, err := s.dir.GetByID(ctx, entry.AccountID)
		if err != nil {
			return Transaction{}, err
		}
		// Swapped debit/credit: the reversal is the exact inverse of the
		// original posting delta.
		deltas = append(deltas, BalanceDelta{
			AccountID:  entry.AccountID,
			DeltaMinor: accounts.BalanceDeltaMinor(account.Type, entry.CreditMinor, entry.DebitMinor),
		})
	}

	now := s.now()
	if !s.repo.AtomicWrites() {
		s.logger.Warn("voiding without multi-record atomicity, a crash can leave a partial reversal",
			slog.String("number", txn.Number))
	}
	if err := s.repo.ApplyVoid(ctx, txn.ID, deltas, now); err != nil {
		return Transaction{}, err
	}
	txn.Status = StatusVoided
	txn.UpdatedAt = now

	if err := s.audit.Record(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   "transaction.void",
		Entity:   "transaction",
		EntityID: txn.ID,
		Meta:     map[string]any{"number": txn.Number},
	}); err != nil {
		s.logger.Warn("audit record failed",
			slog.String("number", txn.Number), slog.Any("error", err))
	}
	if err := s.events.Publish(ctx, events.New(events.TypeTransactionVoided, now, map[string]any{
		"transaction_id": txn.ID,
		"number":         txn.Number,
		"actor_id":       actorID,
	})); err != nil {
		s.logger.Warn("transaction voided event dropped",
			slog.String("number", txn.Number), slog.Any("error", err))
	}
	return txn, nil
}

// GetByID returns one transaction.
func (s *Service) GetByID(ctx context.Context, id string) (Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByAccount returns one page of the transactions touching an account,
// newest first, with the total match count.
func (s *Service) ListByAccount(ctx context.Context, accountID string, offset, limit int64) ([]Transaction, int64, error) {
	return s.repo.ListByAccount(ctx, accountID, offset, limit)
}

// ListByDateRange returns one page of the transactions dated within
// [from, to], with the total match count.
func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, offset, limit int64) ([]Transaction, int64, error) {
	if to.Before(from) {
		return nil, 0, shared.NewValidationError("range", "to precedes from")
	}
	return s.repo.ListByDateRange(ctx, from, to, offset, limit)
}

func postedPayload(txn Transaction) map[string]any {
	entries := make([]map[string]any, 0, len(txn.Entries))
	var total decimal.Decimal
	for _, entry := range txn.Entries {
		entries = append(entries, map[string]any{
			"account_id": entry.AccountID,
			"debit":      entry.Debit().StringFixed(2),
			"credit":     entry.Credit().StringFixed(2),
		})
		total = total.Add(entry.Debit())
	}
	return map[string]any{
		"transaction_id": txn.ID,
		"number":         txn.Number,
		"type":           string(txn.Type),
		"date":           txn.Date,
		"description":    txn.Description,
		"total":          total.StringFixed(2),
		"entries":        entries,
		"created_by":     txn.CreatedBy,
	}
}
