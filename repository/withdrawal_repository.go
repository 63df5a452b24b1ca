package repository

import (
	"context"
	"fmt"
	"time"

	"auctioneer/database"
	"auctioneer/domain/entities"
	"auctioneer/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// WithdrawalRepository implements the WithdrawalRepository interface
type WithdrawalRepository struct {
	q Queryable
}

// NewWithdrawalRepository creates a new withdrawal repository backed by the pool
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

func newWithdrawalRepository(tx Queryable) interfaces.WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

const withdrawalColumns = `
	id, reference, user_id, bank_name, account_last4,
	amount, fee, final_amount, status,
	otp_hash, otp_expires_at, otp_attempts,
	approved_by, completed_by, rejected_by, reject_reason,
	created_at, updated_at`

func scanWithdrawal(row pgx.Row) (*entities.WithdrawalRequest, error) {
	var w entities.WithdrawalRequest
	err := row.Scan(
		&w.ID,
		&w.Reference,
		&w.UserID,
		&w.BankName,
		&w.AccountLast4,
		&w.Amount,
		&w.Fee,
		&w.FinalAmount,
		&w.Status,
		&w.OtpHash,
		&w.OtpExpiresAt,
		&w.OtpAttempts,
		&w.ApprovedBy,
		&w.CompletedBy,
		&w.RejectedBy,
		&w.RejectReason,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create creates a new withdrawal request
func (r *WithdrawalRepository) Create(ctx context.Context, request *entities.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (
			reference, user_id, bank_name, account_last4,
			amount, fee, final_amount, status,
			otp_hash, otp_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		request.Reference, request.UserID, request.BankName, request.AccountLast4,
		request.Amount, request.Fee, request.FinalAmount, request.Status,
		request.OtpHash, request.OtpExpiresAt,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request for user %d: %w", request.UserID, err)
	}
	return nil
}

// GetByID retrieves a request by ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*entities.WithdrawalRequest, error) {
	query := `SELECT` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	request, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal request %d: %w", id, err)
	}
	return request, nil
}

// GetByIDForUpdate retrieves a request with a row lock
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.WithdrawalRequest, error) {
	query := `SELECT` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	request, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock withdrawal request %d: %w", id, err)
	}
	return request, nil
}

// Update persists the request's mutable fields
func (r *WithdrawalRepository) Update(ctx context.Context, request *entities.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $2,
		    otp_hash = $3,
		    otp_attempts = $4,
		    approved_by = $5,
		    completed_by = $6,
		    rejected_by = $7,
		    reject_reason = $8,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		request.ID, request.Status, request.OtpHash, request.OtpAttempts,
		request.ApprovedBy, request.CompletedBy, request.RejectedBy, request.RejectReason)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request %d: %w", request.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal request %d not found", request.ID)
	}
	return nil
}

// CountByUserSince returns the number of requests a user created since the
// given time, excluding cancelled ones
func (r *WithdrawalRepository) CountByUserSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM withdrawal_requests
		WHERE user_id = $1 AND created_at >= $2 AND status != 'cancelled'`
	var count int
	if err := r.q.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count withdrawals for user %d: %w", userID, err)
	}
	return count, nil
}

// SumAmountByUserSince returns the total requested amount since the given
// time, excluding cancelled requests
func (r *WithdrawalRepository) SumAmountByUserSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawal_requests
		WHERE user_id = $1 AND created_at >= $2 AND status != 'cancelled'`
	var sum int64
	if err := r.q.QueryRow(ctx, query, userID, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum withdrawals for user %d: %w", userID, err)
	}
	return sum, nil
}
