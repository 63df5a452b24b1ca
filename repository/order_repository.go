package repository

import (
	"context"
	"fmt"

	"auctioneer/database"
	"auctioneer/domain/entities"
	"auctioneer/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// OrderRepository implements the OrderRepository interface
type OrderRepository struct {
	q Queryable
}

// NewOrderRepository creates a new order repository backed by the pool
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{q: db.Pool}
}

func newOrderRepository(tx Queryable) interfaces.OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `
	id, auction_id, buyer_id, seller_id, amount, status,
	carrier, tracking_number, cancel_reason, cancelled_by,
	shipped_at, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*entities.Order, error) {
	var order entities.Order
	err := row.Scan(
		&order.ID,
		&order.AuctionID,
		&order.BuyerID,
		&order.SellerID,
		&order.Amount,
		&order.Status,
		&order.Carrier,
		&order.TrackingNumber,
		&order.CancelReason,
		&order.CancelledBy,
		&order.ShippedAt,
		&order.CompletedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create creates a new order
func (r *OrderRepository) Create(ctx context.Context, order *entities.Order) error {
	query := `
		INSERT INTO orders (auction_id, buyer_id, seller_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		order.AuctionID, order.BuyerID, order.SellerID, order.Amount, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order for auction %d: %w", order.AuctionID, err)
	}
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*entities.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return order, nil
}

// GetByIDForUpdate retrieves an order with a row lock
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
	}
	return order, nil
}

// GetByAuctionID returns the order for an auction, or nil if none exists
func (r *OrderRepository) GetByAuctionID(ctx context.Context, auctionID int64) (*entities.Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE auction_id = $1`
	order, err := scanOrder(r.q.QueryRow(ctx, query, auctionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get order for auction %d: %w", auctionID, err)
	}
	return order, nil
}

// Update persists the order's mutable fields
func (r *OrderRepository) Update(ctx context.Context, order *entities.Order) error {
	query := `
		UPDATE orders
		SET status = $2,
		    carrier = $3,
		    tracking_number = $4,
		    cancel_reason = $5,
		    cancelled_by = $6,
		    shipped_at = $7,
		    completed_at = $8,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		order.ID, order.Status, order.Carrier, order.TrackingNumber,
		order.CancelReason, order.CancelledBy, order.ShippedAt, order.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", order.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d not found", order.ID)
	}
	return nil
}
