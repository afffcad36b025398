package transactions

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// EntryInput describes one journal line of a posting request.
type EntryInput struct {
	AccountID string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostInput groups the fields required to post a transaction. A zero Date
// means "now".
type PostInput struct {
	Date          time.Time
	Description   string
	Entries       []EntryInput
	Type          string
	ReferenceID   string
	ReferenceType string
	CreatedBy     string
}

// Validate checks the closed type enumeration, the per-line amount rules and
// the debit/credit equality invariant. It runs before anything is resolved
// or written, so a failing posting has no side effects.
func (in PostInput) Validate() (Type, error) {
	txnType, err := ParseType(in.Type)
	if err != nil {
		return "", err
	}
	if len(in.Entries) < 2 {
		return "", shared.NewValidationError("entries", "a transaction requires at least two entries")
	}
	var debitTotal, creditTotal decimal.Decimal
	for i, entry := range in.Entries {
		field := fmt.Sprintf("entries[%d]", i)
		if entry.AccountID == "" {
			return "", shared.NewValidationError(field, "account id is required")
		}
		if err := shared.ValidateNonNegativeAmount(field+".debit", entry.Debit); err != nil {
			return "", err
		}
		if err := shared.ValidateNonNegativeAmount(field+".credit", entry.Credit); err != nil {
			return "", err
		}
		debitSet := entry.Debit.IsPositive()
		creditSet := entry.Credit.IsPositive()
		if debitSet && creditSet {
			return "", shared.NewValidationError(field, "an entry debits or credits one account, not both")
		}
		if !debitSet && !creditSet {
			return "", shared.NewValidationError(field, "an entry must carry a debit or a credit amount")
		}
		debitTotal = debitTotal.Add(entry.Debit)
		creditTotal = creditTotal.Add(entry.Credit)
	}
	if !debitTotal.Equal(creditTotal) {
		return "", shared.NewConflictError(
			"unbalanced transaction: debits %s != credits %s",
			debitTotal.StringFixed(2), creditTotal.StringFixed(2))
	}
	return txnType, nil
}

// entryResponse renders amounts as fixed two-decimal strings.
type entryResponse struct {
	Entry
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
}

// transactionResponse is the wire form of a transaction.
type transactionResponse struct {
	Transaction
	Entries []entryResponse `json:"entries"`
}

func toResponse(txn Transaction) transactionResponse {
	entries := make([]entryResponse, 0, len(txn.Entries))
	for _, entry := range txn.Entries {
		entries = append(entries, entryResponse{
			Entry:  entry,
			Debit:  entry.Debit().StringFixed(2),
			Credit: entry.Credit().StringFixed(2),
		})
	}
	return transactionResponse{Transaction: txn, Entries: entries}
}
