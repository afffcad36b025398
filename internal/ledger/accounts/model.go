package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// AccountType enumerates the five ledger account classes.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists the legal account types in numbering order.
var AccountTypes = []AccountType{TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense}

// numberPrefixes maps each type to its one-digit account number prefix.
var numberPrefixes = map[AccountType]int{
	TypeAsset:     1,
	TypeLiability: 2,
	TypeEquity:    3,
	TypeRevenue:   4,
	TypeExpense:   5,
}

// NumberPrefix returns the account-number prefix digit for a type.
func NumberPrefix(t AccountType) int { return numberPrefixes[t] }

// ParseAccountType validates a raw type value against the closed enumeration.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := numberPrefixes[t]; !ok {
		return "", shared.NewValidationError("type", "unknown account type %q, must be one of %s", raw, joinTypes())
	}
	return t, nil
}

func joinTypes() string {
	names := make([]string, 0, len(AccountTypes))
	for _, t := range AccountTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// Category sub-classifies an account within its type.
type Category string

const (
	CategoryCurrentAssets       Category = "CURRENT_ASSETS"
	CategoryFixedAssets         Category = "FIXED_ASSETS"
	CategoryCurrentLiabilities  Category = "CURRENT_LIABILITIES"
	CategoryLongTermLiabilities Category = "LONG_TERM_LIABILITIES"
	CategoryOwnersEquity        Category = "OWNERS_EQUITY"
	CategoryRetainedEarnings    Category = "RETAINED_EARNINGS"
	CategoryOperatingRevenue    Category = "OPERATING_REVENUE"
	CategoryOtherRevenue        Category = "OTHER_REVENUE"
	CategoryOperatingExpenses   Category = "OPERATING_EXPENSES"
	CategoryOtherExpenses       Category = "OTHER_EXPENSES"
)

var categoriesByType = map[AccountType][]Category{
	TypeAsset:     {CategoryCurrentAssets, CategoryFixedAssets},
	TypeLiability: {CategoryCurrentLiabilities, CategoryLongTermLiabilities},
	TypeEquity:    {CategoryOwnersEquity, CategoryRetainedEarnings},
	TypeRevenue:   {CategoryOperatingRevenue, CategoryOtherRevenue},
	TypeExpense:   {CategoryOperatingExpenses, CategoryOtherExpenses},
}

// ParseCategory validates a raw category for the given account type.
func ParseCategory(t AccountType, raw string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(raw)))
	legal := categoriesByType[t]
	for _, candidate := range legal {
		if c == candidate {
			return c, nil
		}
	}
	names := make([]string, 0, len(legal))
	for _, candidate := range legal {
		names = append(names, string(candidate))
	}
	return "", shared.NewValidationError("category",
		"unknown category %q for type %s, must be one of %s", raw, t, strings.Join(names, ", "))
}

// Account is a chart-of-accounts node with its live balance. Balance is held
// in minor units and mutated only through atomic increments.
type Account struct {
	ID           string      `bson:"_id" json:"id"`
	Number       string      `bson:"number" json:"number"`
	Name         string      `bson:"name" json:"name"`
	Description  string      `bson:"description,omitempty" json:"description,omitempty"`
	Type         AccountType `bson:"type" json:"type"`
	Category     Category    `bson:"category" json:"category"`
	BalanceMinor int64       `bson:"balance_minor" json:"-"`
	Currency     string      `bson:"currency" json:"currency"`
	ParentID     string      `bson:"parent_id,omitempty" json:"parentId,omitempty"`
	UserID       string      `bson:"user_id,omitempty" json:"userId,omitempty"`
	IsActive     bool        `bson:"is_active" json:"isActive"`
	CreatedAt    time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `bson:"updated_at" json:"updatedAt"`
}

// Balance returns the account balance as a decimal.
func (a Account) Balance() decimal.Decimal {
	return shared.FromMinorUnits(a.BalanceMinor)
}

// BalanceDeltaMinor computes how a posted entry moves an account balance,
// in minor units, under the standard double-entry convention: Asset and
// Expense accounts increase with debit, Liability, Equity and Revenue
// accounts increase with credit.
func BalanceDeltaMinor(t AccountType, debitMinor, creditMinor int64) int64 {
	switch t {
	case TypeAsset, TypeExpense:
		return debitMinor - creditMinor
	default:
		return creditMinor - debitMinor
	}
}
