package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMinorUnitsRoundTrip(t *testing.T) {
	for _, raw := range []string{"0", "0.01", "-0.01", "100", "42.50", "-1234.56", "92233720368.54"} {
		d := decimal.RequireFromString(raw)
		require.True(t, FromMinorUnits(ToMinorUnits(d)).Equal(d), "round trip of %s", raw)
	}
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, ValidateAmount("amount", decimal.RequireFromString("10.25")))
	require.NoError(t, ValidateAmount("amount", decimal.RequireFromString("-10.25")))
	require.NoError(t, ValidateAmount("amount", decimal.RequireFromString("10.250")))

	err := ValidateAmount("amount", decimal.RequireFromString("10.251"))
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorContains(t, err, "two decimal places")
}

func TestValidateNonNegativeAmount(t *testing.T) {
	require.NoError(t, ValidateNonNegativeAmount("amount", decimal.Zero))
	require.ErrorIs(t, ValidateNonNegativeAmount("amount", decimal.RequireFromString("-0.01")), ErrValidation)
}

func TestErrorTaxonomy(t *testing.T) {
	verr := NewValidationError("name", "name is %s", "required")
	require.ErrorIs(t, verr, ErrValidation)
	require.ErrorContains(t, verr, "name is required")

	cerr := NewConflictError("number %d taken", 7)
	require.ErrorIs(t, cerr, ErrConflict)
	require.NotErrorIs(t, cerr, ErrValidation)
	require.NotErrorIs(t, verr, ErrConflict)
}
