package entities

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus represents the state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending     WithdrawalStatus = "pending" // awaiting one-time code
	WithdrawalStatusOtpVerified WithdrawalStatus = "otp_verified"
	WithdrawalStatusProcessing  WithdrawalStatus = "processing"
	WithdrawalStatusCompleted   WithdrawalStatus = "completed"
	WithdrawalStatusRejected    WithdrawalStatus = "rejected"
	WithdrawalStatusCancelled   WithdrawalStatus = "cancelled"
)

// IsTerminal returns true for states with no outgoing transitions
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusRejected || s == WithdrawalStatusCancelled
}

// WithdrawalRequest is a user-initiated cash-out gated by a time-limited
// one-time code and operator approval. It strictly owns its slice of the
// pending-withdrawal pool: exactly Amount is held at creation and released or
// paid out exactly once.
type WithdrawalRequest struct {
	ID        int64     `db:"id"`
	Reference uuid.UUID `db:"reference"`
	UserID    int64     `db:"user_id"`

	// Denormalized bank snapshot; only the last four digits are retained
	BankName     string `db:"bank_name"`
	AccountLast4 string `db:"account_last4"`

	Amount      int64            `db:"amount"`
	Fee         int64            `db:"fee"`
	FinalAmount int64            `db:"final_amount"`
	Status      WithdrawalStatus `db:"status"`

	// One-time code verification; only the hash is ever stored, and it is
	// cleared on successful verification
	OtpHash      *string    `db:"otp_hash"`
	OtpExpiresAt *time.Time `db:"otp_expires_at"`
	OtpAttempts  int        `db:"otp_attempts"`

	// Operator audit fields
	ApprovedBy   *int64  `db:"approved_by"`
	CompletedBy  *int64  `db:"completed_by"`
	RejectedBy   *int64  `db:"rejected_by"`
	RejectReason *string `db:"reject_reason"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OtpExpired returns true once the one-time code deadline has passed
func (w *WithdrawalRequest) OtpExpired(now time.Time) bool {
	return w.OtpExpiresAt == nil || now.After(*w.OtpExpiresAt)
}

// CanVerifyOtp returns true while the request still awaits its code
func (w *WithdrawalRequest) CanVerifyOtp() bool {
	return w.Status == WithdrawalStatusPending
}

// CanBeCancelledBy returns true if the requester may still cancel
func (w *WithdrawalRequest) CanBeCancelledBy(userID int64) bool {
	if w.UserID != userID {
		return false
	}
	return w.Status == WithdrawalStatusPending || w.Status == WithdrawalStatusOtpVerified
}

// CanBeRejected returns true while an operator may reject the request
func (w *WithdrawalRequest) CanBeRejected() bool {
	return w.Status == WithdrawalStatusOtpVerified
}
