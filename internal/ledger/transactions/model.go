package transactions

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// Type enumerates the business meanings a transaction can carry.
type Type string

const (
	TypeSale       Type = "SALE"
	TypePurchase   Type = "PURCHASE"
	TypePayment    Type = "PAYMENT"
	TypeReceipt    Type = "RECEIPT"
	TypeTransfer   Type = "TRANSFER"
	TypeAdjustment Type = "ADJUSTMENT"
	TypeReturn     Type = "RETURN"
)

// Types lists the legal transaction types.
var Types = []Type{TypeSale, TypePurchase, TypePayment, TypeReceipt, TypeTransfer, TypeAdjustment, TypeReturn}

// ParseType validates a raw type value against the closed enumeration.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(raw)))
	for _, candidate := range Types {
		if t == candidate {
			return t, nil
		}
	}
	names := make([]string, 0, len(Types))
	for _, candidate := range Types {
		names = append(names, string(candidate))
	}
	return "", shared.NewValidationError("type",
		"unknown transaction type %q, must be one of %s", raw, strings.Join(names, ", "))
}

// Status is the transaction lifecycle state. The only transition is
// POSTED to VOIDED, exactly once.
type Status string

const (
	StatusPosted Status = "POSTED"
	StatusVoided Status = "VOIDED"
)

// Entry is one journal line, embedded in its transaction. Exactly one of
// debit and credit is nonzero. AccountName is a snapshot taken at posting
// time; the account may be renamed later.
type Entry struct {
	AccountID   string `bson:"account_id" json:"accountId"`
	AccountName string `bson:"account_name" json:"accountName"`
	DebitMinor  int64  `bson:"debit_minor" json:"-"`
	CreditMinor int64  `bson:"credit_minor" json:"-"`
	Memo        string `bson:"memo,omitempty" json:"memo,omitempty"`
}

// Debit returns the entry's debit amount as a decimal.
func (e Entry) Debit() decimal.Decimal { return shared.FromMinorUnits(e.DebitMinor) }

// Credit returns the entry's credit amount as a decimal.
func (e Entry) Credit() decimal.Decimal { return shared.FromMinorUnits(e.CreditMinor) }

// Transaction is a posted double-entry record. It is created once, may be
// voided once, and is never otherwise mutated or deleted.
type Transaction struct {
	ID            string    `bson:"_id" json:"id"`
	Number        string    `bson:"number" json:"number"`
	Date          time.Time `bson:"date" json:"date"`
	Description   string    `bson:"description" json:"description"`
	Entries       []Entry   `bson:"entries" json:"entries"`
	Type          Type      `bson:"type" json:"type"`
	Status        Status    `bson:"status" json:"status"`
	ReferenceID   string    `bson:"reference_id,omitempty" json:"referenceId,omitempty"`
	ReferenceType string    `bson:"reference_type,omitempty" json:"referenceType,omitempty"`
	CreatedBy     string    `bson:"created_by" json:"createdBy"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

// BalanceDelta is one account balance movement computed from a posting or a
// reversal, in minor units.
type BalanceDelta struct {
	AccountID  string
	DeltaMinor int64
}
