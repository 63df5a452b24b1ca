package repository

import (
	"context"
	"fmt"

	"auctioneer/database"
	"auctioneer/domain/entities"
	"auctioneer/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// TransactionRepository implements the immutable ledger store
type TransactionRepository struct {
	q Queryable
}

// NewTransactionRepository creates a new transaction repository backed by the pool
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

func newTransactionRepository(tx Queryable) interfaces.TransactionRepository {
	return &TransactionRepository{q: tx}
}

const transactionColumns = `
	id, reference, user_id, type, status, amount, pool,
	balance_before, balance_after,
	auction_id, bid_id, order_id, withdrawal_id, counterparty_id,
	buyer_confirmed, seller_confirmed, metadata, created_at, updated_at`

func scanTransaction(row pgx.Row) (*entities.Transaction, error) {
	var txn entities.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.UserID,
		&txn.Type,
		&txn.Status,
		&txn.Amount,
		&txn.Pool,
		&txn.BalanceBefore,
		&txn.BalanceAfter,
		&txn.AuctionID,
		&txn.BidID,
		&txn.OrderID,
		&txn.WithdrawalID,
		&txn.CounterpartyID,
		&txn.BuyerConfirmed,
		&txn.SellerConfirmed,
		&txn.Metadata,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Record writes a new ledger entry, populating its ID
func (r *TransactionRepository) Record(ctx context.Context, txn *entities.Transaction) error {
	query := `
		INSERT INTO transactions (
			reference, user_id, type, status, amount, pool,
			balance_before, balance_after,
			auction_id, bid_id, order_id, withdrawal_id, counterparty_id,
			buyer_confirmed, seller_confirmed, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		txn.Reference,
		txn.UserID,
		txn.Type,
		txn.Status,
		txn.Amount,
		txn.Pool,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.AuctionID,
		txn.BidID,
		txn.OrderID,
		txn.WithdrawalID,
		txn.CounterpartyID,
		txn.BuyerConfirmed,
		txn.SellerConfirmed,
		txn.Metadata,
	).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s transaction for user %d: %w", txn.Type, txn.UserID, err)
	}
	return nil
}

// Update persists the mutable fields of a two-sided entry. Everything else in
// a recorded entry stays immutable.
func (r *TransactionRepository) Update(ctx context.Context, txn *entities.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    balance_before = $3,
		    balance_after = $4,
		    order_id = $5,
		    buyer_confirmed = $6,
		    seller_confirmed = $7,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		txn.ID, txn.Status, txn.BalanceBefore, txn.BalanceAfter,
		txn.OrderID, txn.BuyerConfirmed, txn.SellerConfirmed)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", txn.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d not found", txn.ID)
	}
	return nil
}

// GetPendingPaymentByAuction returns the pending payment entry for an auction,
// or nil if none exists
func (r *TransactionRepository) GetPendingPaymentByAuction(ctx context.Context, auctionID int64) (*entities.Transaction, error) {
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE auction_id = $1 AND type = 'payment' AND status = 'pending'`
	txn, err := scanTransaction(r.q.QueryRow(ctx, query, auctionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payment for auction %d: %w", auctionID, err)
	}
	return txn, nil
}

// GetByUser returns the most recent entries for a user
func (r *TransactionRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.Transaction, error) {
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txns []*entities.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
