package entities

// TransactionType represents the kind of ledger entry
type TransactionType string

// All transaction types supported by the ledger
const (
	// Bidding transactions
	TransactionTypeHold    TransactionType = "hold"
	TransactionTypeRelease TransactionType = "release"

	// Settlement transactions
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"

	// Withdrawal transactions
	TransactionTypeWithdraw          TransactionType = "withdraw"
	TransactionTypeWithdrawalHold    TransactionType = "withdrawal_hold"
	TransactionTypeWithdrawalRelease TransactionType = "withdrawal_release"

	// Operator transactions
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
)

// TransactionStatus tracks two-sided transactions that need confirmation
// before funds move
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// BalancePool names the balance field a ledger entry's before/after snapshot
// refers to
type BalancePool string

const (
	PoolAvailable         BalancePool = "available"
	PoolEscrow            BalancePool = "escrow"
	PoolPendingWithdrawal BalancePool = "pending_withdrawal"
)

// IsBidding returns true for hold/release entries written by the bid engine
func (tt TransactionType) IsBidding() bool {
	return tt == TransactionTypeHold || tt == TransactionTypeRelease
}

// IsWithdrawal returns true for entries written by the withdrawal workflow
func (tt TransactionType) IsWithdrawal() bool {
	return tt == TransactionTypeWithdraw ||
		tt == TransactionTypeWithdrawalHold ||
		tt == TransactionTypeWithdrawalRelease
}

// IsTwoSided returns true for kinds that start Pending and require a later
// explicit completion step
func (tt TransactionType) IsTwoSided() bool {
	return tt == TransactionTypePayment || tt == TransactionTypeWithdraw
}

// String returns the string representation of the transaction type
func (tt TransactionType) String() string {
	return string(tt)
}
