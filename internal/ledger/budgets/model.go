package budgets

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/ledger/shared"
)

// Period enumerates the budget window lengths.
type Period string

const (
	PeriodMonthly   Period = "MONTHLY"
	PeriodQuarterly Period = "QUARTERLY"
	PeriodYearly    Period = "YEARLY"
)

// Periods lists the legal budget periods.
var Periods = []Period{PeriodMonthly, PeriodQuarterly, PeriodYearly}

// ParsePeriod validates a raw period value against the closed enumeration.
func ParsePeriod(raw string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(raw)))
	for _, candidate := range Periods {
		if p == candidate {
			return p, nil
		}
	}
	names := make([]string, 0, len(Periods))
	for _, candidate := range Periods {
		names = append(names, string(candidate))
	}
	return "", shared.NewValidationError("period",
		"unknown period %q, must be one of %s", raw, strings.Join(names, ", "))
}

// Budget caps spending against one account over a date window. The
// remaining = amount - spent invariant is maintained on every mutation by
// incrementing both fields in the same atomic update.
type Budget struct {
	ID             string    `bson:"_id" json:"id"`
	Name           string    `bson:"name" json:"name"`
	AccountID      string    `bson:"account_id" json:"accountId"`
	Period         Period    `bson:"period" json:"period"`
	StartDate      time.Time `bson:"start_date" json:"startDate"`
	EndDate        time.Time `bson:"end_date" json:"endDate"`
	AmountMinor    int64     `bson:"amount_minor" json:"-"`
	SpentMinor     int64     `bson:"spent_minor" json:"-"`
	RemainingMinor int64     `bson:"remaining_minor" json:"-"`
	IsActive       bool      `bson:"is_active" json:"isActive"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

// Amount returns the budget cap as a decimal.
func (b Budget) Amount() decimal.Decimal { return shared.FromMinorUnits(b.AmountMinor) }

// Spent returns the accrued spend as a decimal.
func (b Budget) Spent() decimal.Decimal { return shared.FromMinorUnits(b.SpentMinor) }

// Remaining returns the headroom as a decimal; negative when exceeded.
func (b Budget) Remaining() decimal.Decimal { return shared.FromMinorUnits(b.RemainingMinor) }

// Exceeded reports whether spend has passed the cap.
func (b Budget) Exceeded() bool { return b.SpentMinor > b.AmountMinor }

// PercentUsed returns spent/amount as a percentage with two decimals.
func (b Budget) PercentUsed() decimal.Decimal {
	if b.AmountMinor == 0 {
		return decimal.Zero
	}
	return b.Spent().Div(b.Amount()).Mul(decimal.NewFromInt(100)).Round(2)
}
