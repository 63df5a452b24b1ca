package repository

import (
	"context"
	"fmt"

	"auctioneer/database"
	"auctioneer/domain/entities"
	"auctioneer/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository backed by the pool
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

func newUserRepository(tx Queryable) interfaces.UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `
	id, username, email,
	available_balance, escrow_balance, pending_withdrawal_balance,
	created_at, updated_at`

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Balance.Available,
		&user.Balance.Escrow,
		&user.Balance.PendingWithdrawal,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user with a row lock, serializing concurrent
// ledger operations on the same balance
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return user, nil
}

// Create creates a new user with the initial available balance
func (r *UserRepository) Create(ctx context.Context, username, email string, initialBalance int64) (*entities.User, error) {
	query := `
		INSERT INTO users (username, email, available_balance)
		VALUES ($1, $2, $3)
		RETURNING` + userColumns
	user, err := scanUser(r.q.QueryRow(ctx, query, username, email, initialBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return user, nil
}

// UpdateBalance persists all three balance pools for a user
func (r *UserRepository) UpdateBalance(ctx context.Context, userID int64, balance entities.Balance) error {
	query := `
		UPDATE users
		SET available_balance = $2,
		    escrow_balance = $3,
		    pending_withdrawal_balance = $4,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, userID, balance.Available, balance.Escrow, balance.PendingWithdrawal)
	if err != nil {
		return fmt.Errorf("failed to update balance for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}
