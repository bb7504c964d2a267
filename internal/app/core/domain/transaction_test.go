package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostingRequestValidate(t *testing.T) {
	valid := func() *PostingRequest {
		return &PostingRequest{
			AccountID: "acc-1",
			CallerID:  "user-1",
			Type:      TransactionTypeDeposit,
			Amount:    decimal.RequireFromString("100.00"),
		}
	}

	t.Run("valid deposit", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("valid withdrawal", func(t *testing.T) {
		r := valid()
		r.Type = TransactionTypeWithdrawal
		assert.NoError(t, r.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		r := valid()
		r.Type = TransactionType("transfer")
		assert.ErrorIs(t, r.Validate(), ErrInvalidTransactionType)
	})

	t.Run("zero amount", func(t *testing.T) {
		r := valid()
		r.Amount = decimal.Zero
		assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)
	})

	t.Run("negative amount", func(t *testing.T) {
		r := valid()
		r.Amount = decimal.RequireFromString("-5.00")
		assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)
	})

	t.Run("more than two decimal places", func(t *testing.T) {
		r := valid()
		r.Amount = decimal.RequireFromString("1.001")
		assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)
	})

	t.Run("trailing zeros beyond two places", func(t *testing.T) {
		// "10.000" 的值就是 10.00，不可因表示法被拒
		r := valid()
		r.Amount = decimal.RequireFromString("10.000")
		require.NoError(t, r.Validate())
		assert.Equal(t, "10.00", r.Amount.String())
	})

	t.Run("two decimal places boundary", func(t *testing.T) {
		r := valid()
		r.Amount = decimal.RequireFromString("0.01")
		assert.NoError(t, r.Validate())
	})
}

func TestNewReferenceNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewReferenceNumber()
		require.True(t, strings.HasPrefix(ref, "TXN"))
		require.False(t, seen[ref], "reference collision: %s", ref)
		seen[ref] = true
	}
}
