package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatAccountNumber(t *testing.T) {
	require.Equal(t, "10001", FormatAccountNumber(1, 1))
	require.Equal(t, "20042", FormatAccountNumber(2, 42))
	require.Equal(t, "512345", FormatAccountNumber(5, 12345))
}

func TestFormatTransactionNumber(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	require.Equal(t, "TXN-20260901-000001", FormatTransactionNumber(at, 1))
	require.Equal(t, "TXN-20260901-000123", FormatTransactionNumber(at, 123))
}

func TestScopes(t *testing.T) {
	at := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)
	require.Equal(t, "account:ASSET", AccountScope("ASSET"))
	require.Equal(t, "txn:20260901", TransactionScope(at))

	// Local times map onto the UTC day to keep one counter per day.
	loc := time.FixedZone("UTC+3", 3*3600)
	require.Equal(t, "txn:20260901", TransactionScope(time.Date(2026, 9, 2, 1, 0, 0, 0, loc)))
}
