package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionConstructors(t *testing.T) {
	t.Run("hold debits available", func(t *testing.T) {
		txn, err := NewHoldTransaction(2, 110000, 500000, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, TransactionTypeHold, txn.Type)
		assert.Equal(t, PoolAvailable, txn.Pool)
		assert.Equal(t, int64(-110000), txn.Amount)
		assert.Equal(t, int64(390000), txn.BalanceAfter)
		assert.Equal(t, TransactionStatusCompleted, txn.Status)
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", txn.Reference.String())
	})

	t.Run("hold exceeding the pool fails validation", func(t *testing.T) {
		_, err := NewHoldTransaction(2, 110000, 100000, 1, 10)
		assert.Error(t, err)
	})

	t.Run("pending payment moves nothing yet", func(t *testing.T) {
		txn, err := NewPendingPaymentTransaction(2, 99, 130000, 130000, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, TransactionStatusPending, txn.Status)
		assert.Equal(t, txn.BalanceBefore, txn.BalanceAfter)
		assert.Equal(t, PoolEscrow, txn.Pool)
		require.NotNil(t, txn.CounterpartyID)
		assert.Equal(t, int64(99), *txn.CounterpartyID)
	})

	t.Run("self-payment rejected", func(t *testing.T) {
		_, err := NewPendingPaymentTransaction(2, 2, 130000, 130000, 1, 20)
		assert.Error(t, err)
	})

	t.Run("withdraw leaves from the pending pool", func(t *testing.T) {
		txn, err := NewWithdrawTransaction(2, 100000, 100000, 7)
		require.NoError(t, err)
		assert.Equal(t, PoolPendingWithdrawal, txn.Pool)
		assert.Equal(t, int64(0), txn.BalanceAfter)
	})

	t.Run("admin adjustment carries its reason", func(t *testing.T) {
		txn, err := NewAdminAdjustmentTransaction(2, -5000, 100000, "promo reversal")
		require.NoError(t, err)
		assert.Equal(t, "promo reversal", txn.Metadata["reason"])
		assert.Equal(t, int64(95000), txn.BalanceAfter)

		_, err = NewAdminAdjustmentTransaction(2, 0, 100000, "noop")
		assert.Error(t, err)
	})
}

func TestTransaction_Validate(t *testing.T) {
	txn := &Transaction{Amount: -110000, BalanceBefore: 500000, BalanceAfter: 390000}
	assert.NoError(t, txn.Validate())

	txn.BalanceAfter = 400000
	assert.Error(t, txn.Validate())

	txn = &Transaction{Amount: -110000, BalanceBefore: 100000, BalanceAfter: -10000}
	assert.Error(t, txn.Validate())
}
