package budgets

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-erp/internal/events"
	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

type memoryBudgetRepo struct {
	budgets map[string]Budget
}

func newMemoryBudgetRepo() *memoryBudgetRepo {
	return &memoryBudgetRepo{budgets: make(map[string]Budget)}
}

func (r *memoryBudgetRepo) Insert(ctx context.Context, budget Budget) error {
	r.budgets[budget.ID] = budget
	return nil
}

func (r *memoryBudgetRepo) GetByID(ctx context.Context, id string) (Budget, error) {
	budget, ok := r.budgets[id]
	if !ok {
		return Budget{}, shared.ErrNotFound
	}
	return budget, nil
}

func (r *memoryBudgetRepo) ListByAccount(ctx context.Context, accountID string) ([]Budget, error) {
	var out []Budget
	for _, budget := range r.budgets {
		if budget.AccountID == accountID {
			out = append(out, budget)
		}
	}
	return out, nil
}

func (r *memoryBudgetRepo) ListActiveForAccountAt(ctx context.Context, accountID string, at time.Time) ([]Budget, error) {
	var out []Budget
	for _, budget := range r.budgets {
		if budget.AccountID != accountID || !budget.IsActive {
			continue
		}
		if at.Before(budget.StartDate) || at.After(budget.EndDate) {
			continue
		}
		out = append(out, budget)
	}
	return out, nil
}

func (r *memoryBudgetRepo) ApplySpend(ctx context.Context, id string, amountMinor int64, at time.Time) (Budget, error) {
	budget, ok := r.budgets[id]
	if !ok {
		return Budget{}, shared.ErrNotFound
	}
	budget.SpentMinor += amountMinor
	budget.RemainingMinor -= amountMinor
	budget.UpdatedAt = at
	r.budgets[id] = budget
	return budget, nil
}

func (r *memoryBudgetRepo) Update(ctx context.Context, id string, set UpdateSet, at time.Time) (Budget, error) {
	budget, ok := r.budgets[id]
	if !ok {
		return Budget{}, shared.ErrNotFound
	}
	if set.Name != nil {
		budget.Name = *set.Name
	}
	if set.AmountMinor != nil {
		budget.AmountMinor = *set.AmountMinor
		budget.RemainingMinor = budget.AmountMinor - budget.SpentMinor
	}
	if set.EndDate != nil {
		budget.EndDate = *set.EndDate
	}
	if set.IsActive != nil {
		budget.IsActive = *set.IsActive
	}
	budget.UpdatedAt = at
	r.budgets[id] = budget
	return budget, nil
}

type staticDirectory struct {
	known map[string]bool
}

func (d staticDirectory) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	if !d.known[id] {
		return accounts.Account{}, shared.ErrNotFound
	}
	return accounts.Account{ID: id, IsActive: true}, nil
}

type recordingSink struct {
	published []events.Event
}

func (s *recordingSink) Publish(ctx context.Context, evt events.Event) error {
	s.published = append(s.published, evt)
	return nil
}

var testNow = time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memoryBudgetRepo, *recordingSink) {
	repo := newMemoryBudgetRepo()
	sink := &recordingSink{}
	svc := NewService(repo, staticDirectory{known: map[string]bool{"supplies": true}}, sink, slog.Default())
	svc.WithNow(func() time.Time { return testNow })
	return svc, repo, sink
}

func monthlyInput(amount string) CreateInput {
	return CreateInput{
		Name:      "Supplies September",
		AccountID: "supplies",
		Period:    "MONTHLY",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.RequireFromString(amount),
	}
}

func TestCreateOpensWithFullHeadroom(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	budget, err := svc.Create(ctx, monthlyInput("500.00"))
	require.NoError(t, err)
	require.Equal(t, int64(50000), budget.AmountMinor)
	require.Zero(t, budget.SpentMinor)
	require.Equal(t, budget.AmountMinor, budget.RemainingMinor)
	require.True(t, budget.IsActive)
	require.False(t, budget.Exceeded())
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := monthlyInput("500.00")
	in.Period = "WEEKLY"
	_, err := svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = monthlyInput("-1.00")
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = monthlyInput("500.00")
	in.EndDate = in.StartDate
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = monthlyInput("500.00")
	in.AccountID = "ghost"
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplySpendMaintainsRemainingInvariant(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	budget, err := svc.Create(ctx, monthlyInput("500.00"))
	require.NoError(t, err)

	// 500 cap, two postings of 300: the first stays under, the second tips
	// the budget over and fires exactly one notification.
	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("300.00")))
	got, err := repo.GetByID(ctx, budget.ID)
	require.NoError(t, err)
	require.Equal(t, int64(30000), got.SpentMinor)
	require.Equal(t, int64(20000), got.RemainingMinor)
	require.Empty(t, sink.published)

	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("300.00")))
	got, err = repo.GetByID(ctx, budget.ID)
	require.NoError(t, err)
	require.Equal(t, int64(60000), got.SpentMinor)
	require.Equal(t, int64(-10000), got.RemainingMinor)
	require.True(t, got.Exceeded())

	require.Len(t, sink.published, 1)
	evt := sink.published[0]
	require.Equal(t, events.TypeBudgetExceeded, evt.Type)
	require.Equal(t, "600.00", evt.Payload["spent"])
	require.Equal(t, "-100.00", evt.Payload["remaining"])
	require.Equal(t, "100.00", evt.Payload["exceeded_by"])
	require.Equal(t, "120", evt.Payload["percent_used"])

	// Every further over-budget posting re-fires.
	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("10.00")))
	require.Len(t, sink.published, 2)
}

func TestApplySpendSkipsOutOfWindowAndInactiveBudgets(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	expired := monthlyInput("100.00")
	expired.Name = "August"
	expired.StartDate = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	expired.EndDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	expiredBudget, err := svc.Create(ctx, expired)
	require.NoError(t, err)

	paused, err := svc.Create(ctx, monthlyInput("100.00"))
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, paused.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("250.00")))

	for _, id := range []string{expiredBudget.ID, paused.ID} {
		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Zero(t, got.SpentMinor)
	}
	require.Empty(t, sink.published)
}

func TestApplySpendAcceptsReversals(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	budget, err := svc.Create(ctx, monthlyInput("500.00"))
	require.NoError(t, err)

	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("200.00")))
	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("-50.00")))

	got, err := repo.GetByID(ctx, budget.ID)
	require.NoError(t, err)
	require.Equal(t, int64(15000), got.SpentMinor)
	require.Equal(t, int64(35000), got.RemainingMinor)
}

func TestUpdateAmountRecomputesRemaining(t *testing.T) {
	svc, _, sink := newTestService()
	ctx := context.Background()

	budget, err := svc.Create(ctx, monthlyInput("500.00"))
	require.NoError(t, err)
	require.NoError(t, svc.ApplySpend(ctx, "supplies", decimal.RequireFromString("600.00")))
	require.Len(t, sink.published, 1)

	raised := decimal.RequireFromString("800.00")
	updated, err := svc.Update(ctx, budget.ID, UpdateInput{Amount: &raised})
	require.NoError(t, err)
	require.Equal(t, int64(80000), updated.AmountMinor)
	require.Equal(t, int64(60000), updated.SpentMinor)
	require.Equal(t, int64(20000), updated.RemainingMinor)
	require.False(t, updated.Exceeded())

	empty := "  "
	_, err = svc.Update(ctx, budget.ID, UpdateInput{Name: &empty})
	require.ErrorIs(t, err, shared.ErrValidation)
}
