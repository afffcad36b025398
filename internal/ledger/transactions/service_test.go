package transactions

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-erp/internal/audit"
	"github.com/atlas-erp/atlas-erp/internal/events"
	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// memoryLedger backs both the transaction repository and the account
// directory, so posting deltas land on the same accounts the service
// resolves against.
type memoryLedger struct {
	atomic       bool
	accounts     map[string]accounts.Account
	transactions map[string]Transaction
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		atomic:       true,
		accounts:     make(map[string]accounts.Account),
		transactions: make(map[string]Transaction),
	}
}

func (l *memoryLedger) addAccount(id string, t accounts.AccountType, active bool) {
	l.accounts[id] = accounts.Account{
		ID: id, Number: "n-" + id, Name: "acct " + id, Type: t, IsActive: active,
	}
}

func (l *memoryLedger) balance(id string) int64 { return l.accounts[id].BalanceMinor }

// directory adapts memoryLedger to AccountDirectory without colliding with
// the repository's GetByID.
type directory struct{ ledger *memoryLedger }

func (d directory) GetByID(ctx context.Context, id string) (accounts.Account, error) {
	account, ok := d.ledger.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrNotFound
	}
	return account, nil
}

func (l *memoryLedger) AtomicWrites() bool { return l.atomic }

func (l *memoryLedger) ApplyPosting(ctx context.Context, txn Transaction, deltas []BalanceDelta) error {
	l.transactions[txn.ID] = txn
	return l.applyDeltas(deltas)
}

func (l *memoryLedger) ApplyVoid(ctx context.Context, id string, deltas []BalanceDelta, at time.Time) error {
	txn, ok := l.transactions[id]
	if !ok || txn.Status != StatusPosted {
		return shared.NewConflictError("transaction %s is already voided", id)
	}
	txn.Status = StatusVoided
	txn.UpdatedAt = at
	l.transactions[id] = txn
	return l.applyDeltas(deltas)
}

func (l *memoryLedger) applyDeltas(deltas []BalanceDelta) error {
	for _, delta := range deltas {
		account := l.accounts[delta.AccountID]
		account.BalanceMinor += delta.DeltaMinor
		l.accounts[delta.AccountID] = account
	}
	return nil
}

func (l *memoryLedger) GetByID(ctx context.Context, id string) (Transaction, error) {
	txn, ok := l.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return txn, nil
}

func (l *memoryLedger) ListByAccount(ctx context.Context, accountID string, offset, limit int64) ([]Transaction, int64, error) {
	var out []Transaction
	for _, txn := range l.transactions {
		for _, entry := range txn.Entries {
			if entry.AccountID == accountID {
				out = append(out, txn)
				break
			}
		}
	}
	return out, int64(len(out)), nil
}

func (l *memoryLedger) ListByDateRange(ctx context.Context, from, to time.Time, offset, limit int64) ([]Transaction, int64, error) {
	var out []Transaction
	for _, txn := range l.transactions {
		if !txn.Date.Before(from) && !txn.Date.After(to) {
			out = append(out, txn)
		}
	}
	return out, int64(len(out)), nil
}

type scopedSequence struct {
	counts map[string]int64
}

func (s *scopedSequence) Next(ctx context.Context, scope string) (int64, error) {
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[scope]++
	return s.counts[scope], nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Record(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type recordingSink struct {
	published []events.Event
}

func (s *recordingSink) Publish(ctx context.Context, evt events.Event) error {
	s.published = append(s.published, evt)
	return nil
}

type spendRecord struct {
	accountID string
	amount    decimal.Decimal
}

type recordingBudgets struct {
	spends []spendRecord
}

func (b *recordingBudgets) NotifySpend(ctx context.Context, accountID string, amount decimal.Decimal) error {
	b.spends = append(b.spends, spendRecord{accountID: accountID, amount: amount})
	return nil
}

type fixture struct {
	svc     *Service
	ledger  *memoryLedger
	audit   *recordingAudit
	budgets *recordingBudgets
	sink    *recordingSink
}

func newFixture() fixture {
	ledger := newMemoryLedger()
	ledger.addAccount("cash", accounts.TypeAsset, true)
	ledger.addAccount("revenue", accounts.TypeRevenue, true)
	ledger.addAccount("supplies", accounts.TypeExpense, true)
	ledger.addAccount("closed", accounts.TypeAsset, false)

	auditRec := &recordingAudit{}
	budgets := &recordingBudgets{}
	sink := &recordingSink{}
	svc := NewService(ledger, directory{ledger}, &scopedSequence{}, auditRec, budgets, sink, slog.Default())
	svc.WithNow(func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) })
	return fixture{svc: svc, ledger: ledger, audit: auditRec, budgets: budgets, sink: sink}
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPostBalancedTransaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	txn, err := f.svc.Post(ctx, PostInput{
		Description: "cash sale",
		Type:        "SALE",
		CreatedBy:   "u-1",
		Entries: []EntryInput{
			{AccountID: "cash", Debit: amt("100.00")},
			{AccountID: "revenue", Credit: amt("100.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "TXN-20260901-000001", txn.Number)
	require.Equal(t, StatusPosted, txn.Status)
	require.Equal(t, "acct cash", txn.Entries[0].AccountName)

	// Asset debited up, revenue credited up.
	require.Equal(t, int64(10000), f.ledger.balance("cash"))
	require.Equal(t, int64(10000), f.ledger.balance("revenue"))

	require.Len(t, f.sink.published, 1)
	require.Equal(t, events.TypeTransactionPosted, f.sink.published[0].Type)
	require.Equal(t, "100.00", f.sink.published[0].Payload["total"])

	second, err := f.svc.Post(ctx, PostInput{
		Description: "another sale",
		Type:        "sale",
		Entries: []EntryInput{
			{AccountID: "cash", Debit: amt("5.00")},
			{AccountID: "revenue", Credit: amt("5.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "TXN-20260901-000002", second.Number)
}

func TestPostRejectionsHaveNoSideEffects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		in   PostInput
		want error
	}{
		{
			name: "unbalanced",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "cash", Debit: amt("100.00")},
				{AccountID: "revenue", Credit: amt("90.00")},
			}},
			want: shared.ErrConflict,
		},
		{
			name: "unknown type",
			in: PostInput{Type: "GIFT", Entries: []EntryInput{
				{AccountID: "cash", Debit: amt("1.00")},
				{AccountID: "revenue", Credit: amt("1.00")},
			}},
			want: shared.ErrValidation,
		},
		{
			name: "single entry",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "cash", Debit: amt("1.00")},
			}},
			want: shared.ErrValidation,
		},
		{
			name: "entry with debit and credit",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "cash", Debit: amt("1.00"), Credit: amt("1.00")},
				{AccountID: "revenue", Credit: amt("1.00")},
			}},
			want: shared.ErrValidation,
		},
		{
			name: "entry with neither side",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "cash"},
				{AccountID: "revenue", Credit: amt("1.00")},
			}},
			want: shared.ErrValidation,
		},
		{
			name: "sub-cent amount",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "cash", Debit: amt("1.005")},
				{AccountID: "revenue", Credit: amt("1.005")},
			}},
			want: shared.ErrValidation,
		},
		{
			name: "unknown account",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "ghost", Debit: amt("1.00")},
				{AccountID: "revenue", Credit: amt("1.00")},
			}},
			want: shared.ErrValidation,
		},
		{
			name: "inactive account",
			in: PostInput{Type: "SALE", Entries: []EntryInput{
				{AccountID: "closed", Debit: amt("1.00")},
				{AccountID: "revenue", Credit: amt("1.00")},
			}},
			want: shared.ErrValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Post(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	require.Empty(t, f.ledger.transactions)
	require.Zero(t, f.ledger.balance("cash"))
	require.Zero(t, f.ledger.balance("revenue"))
	require.Empty(t, f.sink.published)
	require.Empty(t, f.budgets.spends)
}

func TestVoidRestoresBalancesExactly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	txn, err := f.svc.Post(ctx, PostInput{
		Type: "PURCHASE",
		Entries: []EntryInput{
			{AccountID: "supplies", Debit: amt("42.50")},
			{AccountID: "cash", Credit: amt("42.50")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(4250), f.ledger.balance("supplies"))
	require.Equal(t, int64(-4250), f.ledger.balance("cash"))

	voided, err := f.svc.Void(ctx, txn.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)
	require.Zero(t, f.ledger.balance("supplies"))
	require.Zero(t, f.ledger.balance("cash"))

	require.Len(t, f.audit.entries, 1)
	require.Equal(t, "transaction.void", f.audit.entries[0].Action)

	// Second void is a conflict, and balances stay put.
	_, err = f.svc.Void(ctx, txn.ID, "admin-1")
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Zero(t, f.ledger.balance("supplies"))
	require.Zero(t, f.ledger.balance("cash"))

	_, err = f.svc.Void(ctx, "missing", "admin-1")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPostNotifiesBudgetsWithNetDebit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Post(ctx, PostInput{
		Type: "PURCHASE",
		Entries: []EntryInput{
			{AccountID: "supplies", Debit: amt("300.00")},
			{AccountID: "cash", Credit: amt("300.00")},
		},
	})
	require.NoError(t, err)

	require.Len(t, f.budgets.spends, 2)
	require.Equal(t, "supplies", f.budgets.spends[0].accountID)
	require.True(t, f.budgets.spends[0].amount.Equal(amt("300.00")))
	require.Equal(t, "cash", f.budgets.spends[1].accountID)
	require.True(t, f.budgets.spends[1].amount.Equal(amt("-300.00")))
}

func TestPostWithoutAtomicWritesStillPosts(t *testing.T) {
	f := newFixture()
	f.ledger.atomic = false
	ctx := context.Background()

	txn, err := f.svc.Post(ctx, PostInput{
		Type: "SALE",
		Entries: []EntryInput{
			{AccountID: "cash", Debit: amt("10.00")},
			{AccountID: "revenue", Credit: amt("10.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, txn.Status)
	require.Equal(t, int64(1000), f.ledger.balance("cash"))
}

func TestListByDateRangeRejectsInvertedRange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := f.svc.ListByDateRange(ctx, from, from.Add(-time.Hour), 0, 20)
	require.ErrorIs(t, err, shared.ErrValidation)
}
