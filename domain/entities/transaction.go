package entities

import (
	"time"

	"auctioneer/domain/errs"

	"github.com/google/uuid"
)

// Transaction is an immutable ledger entry. Every balance mutation writes
// exactly one entry per affected user, in the same atomic step as the balance
// write. Amount is the signed change applied to Pool; BalanceBefore and
// BalanceAfter snapshot that pool around the change. For moves between two
// pools of the same user (hold, release, withdrawal hold/release) the entry
// records the available-pool side; the counterpart pool movement is implied by
// the type.
//
// Only the two-sided kinds (payment, withdraw) ever change after creation, and
// then only their status, confirmation flags and updated-at.
type Transaction struct {
	ID             int64             `db:"id"`
	Reference      uuid.UUID         `db:"reference"`
	UserID         int64             `db:"user_id"`
	Type           TransactionType   `db:"type"`
	Status         TransactionStatus `db:"status"`
	Amount         int64             `db:"amount"`
	Pool           BalancePool       `db:"pool"`
	BalanceBefore  int64             `db:"balance_before"`
	BalanceAfter   int64             `db:"balance_after"`
	AuctionID      *int64            `db:"auction_id"`
	BidID          *int64            `db:"bid_id"`
	OrderID        *int64            `db:"order_id"`
	WithdrawalID   *int64            `db:"withdrawal_id"`
	CounterpartyID *int64            `db:"counterparty_id"`

	// Confirmation flags, meaningful only for payment entries on the
	// dual-confirmation settlement path
	BuyerConfirmed  bool `db:"buyer_confirmed"`
	SellerConfirmed bool `db:"seller_confirmed"`

	Metadata  map[string]any `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// Validate checks the arithmetic consistency of the entry
func (t *Transaction) Validate() error {
	if t.Amount == 0 {
		return errs.NewValidation("transaction amount cannot be zero")
	}
	if t.BalanceAfter != t.BalanceBefore+t.Amount {
		return errs.NewIntegrity(nil, "transaction balance arithmetic is inconsistent: %d + %d != %d",
			t.BalanceBefore, t.Amount, t.BalanceAfter)
	}
	if t.BalanceAfter < 0 {
		return errs.NewIntegrity(nil, "transaction would leave %s balance negative", t.Pool)
	}
	return nil
}

// IsPending returns true if the entry awaits confirmation before funds move
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// BothPartiesConfirmed returns true once buyer and seller have both confirmed
// a pending payment
func (t *Transaction) BothPartiesConfirmed() bool {
	return t.BuyerConfirmed && t.SellerConfirmed
}

func newTransaction(userID int64, tt TransactionType, pool BalancePool, amount, before int64) *Transaction {
	return &Transaction{
		Reference:     uuid.New(),
		UserID:        userID,
		Type:          tt,
		Status:        TransactionStatusCompleted,
		Amount:        amount,
		Pool:          pool,
		BalanceBefore: before,
		BalanceAfter:  before + amount,
		Metadata:      map[string]any{},
		CreatedAt:     time.Now().UTC(),
	}
}

// NewHoldTransaction records funds held against a bid: available decreases,
// escrow increases by the same amount.
func NewHoldTransaction(userID, amount, availableBefore int64, auctionID, bidID int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("hold amount must be positive, got %d", amount)
	}
	t := newTransaction(userID, TransactionTypeHold, PoolAvailable, -amount, availableBefore)
	t.AuctionID = &auctionID
	t.BidID = &bidID
	return t, t.Validate()
}

// NewReleaseTransaction records a superseded or cancelled hold returning to
// the available pool.
func NewReleaseTransaction(userID, amount, availableBefore int64, auctionID int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("release amount must be positive, got %d", amount)
	}
	t := newTransaction(userID, TransactionTypeRelease, PoolAvailable, amount, availableBefore)
	t.AuctionID = &auctionID
	return t, t.Validate()
}

// NewPendingPaymentTransaction records a won auction's payment obligation. No
// funds move until the payment is completed; the entry snapshots the winner's
// escrow pool unchanged.
func NewPendingPaymentTransaction(buyerID, sellerID, amount, escrowBefore int64, auctionID, bidID int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("payment amount must be positive, got %d", amount)
	}
	if buyerID == sellerID {
		return nil, errs.NewValidation("payment buyer and seller cannot be the same user")
	}
	t := &Transaction{
		Reference:     uuid.New(),
		UserID:        buyerID,
		Type:          TransactionTypePayment,
		Status:        TransactionStatusPending,
		Amount:        -amount,
		Pool:          PoolEscrow,
		BalanceBefore: escrowBefore,
		BalanceAfter:  escrowBefore,
		AuctionID:     &auctionID,
		BidID:         &bidID,
		Metadata:      map[string]any{},
		CreatedAt:     time.Now().UTC(),
	}
	t.CounterpartyID = &sellerID
	return t, nil
}

// NewPaymentCreditTransaction records the seller-side credit of a completed
// payment, linked back to the buyer debit.
func NewPaymentCreditTransaction(sellerID, buyerID, amount, availableBefore int64, auctionID, orderID *int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("payment credit must be positive, got %d", amount)
	}
	t := newTransaction(sellerID, TransactionTypePayment, PoolAvailable, amount, availableBefore)
	t.AuctionID = auctionID
	t.OrderID = orderID
	t.CounterpartyID = &buyerID
	return t, t.Validate()
}

// NewRefundTransaction records escrowed auction funds returned to the buyer
// after a cancelled order or auction.
func NewRefundTransaction(userID, amount, availableBefore int64, auctionID int64, orderID *int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("refund amount must be positive, got %d", amount)
	}
	t := newTransaction(userID, TransactionTypeRefund, PoolAvailable, amount, availableBefore)
	t.AuctionID = &auctionID
	t.OrderID = orderID
	return t, t.Validate()
}

// NewWithdrawalHoldTransaction records funds earmarked for a cash-out moving
// from available to the pending-withdrawal pool.
func NewWithdrawalHoldTransaction(userID, amount, availableBefore int64, withdrawalID int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("withdrawal hold must be positive, got %d", amount)
	}
	t := newTransaction(userID, TransactionTypeWithdrawalHold, PoolAvailable, -amount, availableBefore)
	t.WithdrawalID = &withdrawalID
	return t, t.Validate()
}

// NewWithdrawalReleaseTransaction records a rejected or cancelled withdrawal
// refunding the pending-withdrawal hold.
func NewWithdrawalReleaseTransaction(userID, amount, availableBefore int64, withdrawalID int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("withdrawal release must be positive, got %d", amount)
	}
	t := newTransaction(userID, TransactionTypeWithdrawalRelease, PoolAvailable, amount, availableBefore)
	t.WithdrawalID = &withdrawalID
	return t, t.Validate()
}

// NewWithdrawTransaction records a completed cash-out leaving the platform
// from the pending-withdrawal pool.
func NewWithdrawTransaction(userID, amount, pendingBefore int64, withdrawalID int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, errs.NewValidation("withdraw amount must be positive, got %d", amount)
	}
	t := newTransaction(userID, TransactionTypeWithdraw, PoolPendingWithdrawal, -amount, pendingBefore)
	t.WithdrawalID = &withdrawalID
	return t, t.Validate()
}

// NewAdminAdjustmentTransaction records an operator correction to the
// available pool. The only kind whose signed amount is caller-chosen.
func NewAdminAdjustmentTransaction(userID, amount, availableBefore int64, reason string) (*Transaction, error) {
	if amount == 0 {
		return nil, errs.NewValidation("adjustment amount cannot be zero")
	}
	t := newTransaction(userID, TransactionTypeAdminAdjustment, PoolAvailable, amount, availableBefore)
	t.Metadata["reason"] = reason
	return t, t.Validate()
}
