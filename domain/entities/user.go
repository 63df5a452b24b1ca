package entities

import (
	"time"

	"auctioneer/domain/errs"
)

// Balance is a user's three-pool account balance. The pools together equal the
// user's total claim on the platform; each pool is non-negative at every
// observable instant.
type Balance struct {
	Available         int64 `db:"available_balance"`
	Escrow            int64 `db:"escrow_balance"`
	PendingWithdrawal int64 `db:"pending_withdrawal_balance"`
}

// Total returns the user's total claim on the platform
func (b Balance) Total() int64 {
	return b.Available + b.Escrow + b.PendingWithdrawal
}

// Hold moves funds from available to escrow against a bid
func (b *Balance) Hold(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("hold amount must be positive, got %d", amount)
	}
	if b.Available < amount {
		return errs.NewInsufficientFunds(amount, b.Available)
	}
	b.Available -= amount
	b.Escrow += amount
	return nil
}

// Release moves funds from escrow back to available when a hold is superseded
// or cancelled
func (b *Balance) Release(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("release amount must be positive, got %d", amount)
	}
	if b.Escrow < amount {
		return errs.NewIntegrity(nil, "escrow release of %d exceeds escrowed %d", amount, b.Escrow)
	}
	b.Escrow -= amount
	b.Available += amount
	return nil
}

// DebitEscrow removes settled funds from escrow. The matching credit lands on
// the counterparty's available pool.
func (b *Balance) DebitEscrow(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("escrow debit must be positive, got %d", amount)
	}
	if b.Escrow < amount {
		return errs.NewIntegrity(nil, "escrow debit of %d exceeds escrowed %d", amount, b.Escrow)
	}
	b.Escrow -= amount
	return nil
}

// Credit adds settled funds to the available pool
func (b *Balance) Credit(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("credit amount must be positive, got %d", amount)
	}
	b.Available += amount
	return nil
}

// HoldForWithdrawal moves funds from available to the pending-withdrawal pool
func (b *Balance) HoldForWithdrawal(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("withdrawal hold must be positive, got %d", amount)
	}
	if b.Available < amount {
		return errs.NewInsufficientFunds(amount, b.Available)
	}
	b.Available -= amount
	b.PendingWithdrawal += amount
	return nil
}

// ReleaseWithdrawalHold refunds a pending withdrawal back to available
func (b *Balance) ReleaseWithdrawalHold(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("withdrawal release must be positive, got %d", amount)
	}
	if b.PendingWithdrawal < amount {
		return errs.NewIntegrity(nil, "withdrawal release of %d exceeds pending %d", amount, b.PendingWithdrawal)
	}
	b.PendingWithdrawal -= amount
	b.Available += amount
	return nil
}

// CompleteWithdrawal removes paid-out funds from the pending-withdrawal pool.
// The money has left the platform, so nothing is credited back.
func (b *Balance) CompleteWithdrawal(amount int64) error {
	if amount <= 0 {
		return errs.NewValidation("withdrawal completion must be positive, got %d", amount)
	}
	if b.PendingWithdrawal < amount {
		return errs.NewIntegrity(nil, "withdrawal completion of %d exceeds pending %d", amount, b.PendingWithdrawal)
	}
	b.PendingWithdrawal -= amount
	return nil
}

// User represents a marketplace participant with an account balance
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Balance   Balance   `db:"-"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CanAfford checks if the user has sufficient available balance for an amount
func (u *User) CanAfford(amount int64) bool {
	return u.Balance.Available >= amount
}
