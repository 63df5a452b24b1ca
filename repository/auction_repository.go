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

// AuctionRepository implements the AuctionRepository interface
type AuctionRepository struct {
	q Queryable
}

// NewAuctionRepository creates a new auction repository backed by the pool
func NewAuctionRepository(db *database.DB) *AuctionRepository {
	return &AuctionRepository{q: db.Pool}
}

func newAuctionRepository(tx Queryable) interfaces.AuctionRepository {
	return &AuctionRepository{q: tx}
}

const auctionColumns = `
	id, seller_id, title, description, current_price, bid_increment,
	start_time, end_time, status, winner_id, final_price,
	ending_soon_notified, created_at, updated_at`

func scanAuction(row pgx.Row) (*entities.Auction, error) {
	var auction entities.Auction
	err := row.Scan(
		&auction.ID,
		&auction.SellerID,
		&auction.Title,
		&auction.Description,
		&auction.CurrentPrice,
		&auction.BidIncrement,
		&auction.StartTime,
		&auction.EndTime,
		&auction.Status,
		&auction.WinnerID,
		&auction.FinalPrice,
		&auction.EndingSoonNotified,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, auction *entities.Auction) error {
	query := `
		INSERT INTO auctions (seller_id, title, description, current_price, bid_increment, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		auction.SellerID, auction.Title, auction.Description,
		auction.CurrentPrice, auction.BidIncrement,
		auction.StartTime, auction.EndTime, auction.Status,
	).Scan(&auction.ID, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id int64) (*entities.Auction, error) {
	query := `SELECT` + auctionColumns + ` FROM auctions WHERE id = $1`
	auction, err := scanAuction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %d: %w", id, err)
	}
	return auction, nil
}

// GetByIDForUpdate retrieves an auction with a row lock so concurrent bids and
// the reconcile sweep serialize per auction
func (r *AuctionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Auction, error) {
	query := `SELECT` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`
	auction, err := scanAuction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock auction %d: %w", id, err)
	}
	return auction, nil
}

// Update persists the auction's mutable fields
func (r *AuctionRepository) Update(ctx context.Context, auction *entities.Auction) error {
	query := `
		UPDATE auctions
		SET current_price = $2,
		    end_time = $3,
		    status = $4,
		    winner_id = $5,
		    final_price = $6,
		    ending_soon_notified = $7,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		auction.ID, auction.CurrentPrice, auction.EndTime, auction.Status,
		auction.WinnerID, auction.FinalPrice, auction.EndingSoonNotified)
	if err != nil {
		return fmt.Errorf("failed to update auction %d: %w", auction.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auction %d not found", auction.ID)
	}
	return nil
}

// FindDueToStart returns draft auction IDs whose start time has passed
func (r *AuctionRepository) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id FROM auctions
		WHERE status = 'draft' AND start_time <= $1
		ORDER BY start_time ASC
		LIMIT $2`
	return r.findIDs(ctx, query, now, limit)
}

// FindExpired returns active auction IDs whose end time has passed
func (r *AuctionRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id FROM auctions
		WHERE status = 'active' AND end_time <= $1
		ORDER BY end_time ASC
		LIMIT $2`
	return r.findIDs(ctx, query, now, limit)
}

func (r *AuctionRepository) findIDs(ctx context.Context, query string, now time.Time, limit int) ([]int64, error) {
	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find auctions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindEndingSoon returns active, not-yet-notified auctions ending within the
// window
func (r *AuctionRepository) FindEndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]*entities.Auction, error) {
	query := `
		SELECT` + auctionColumns + `
		FROM auctions
		WHERE status = 'active'
		  AND ending_soon_notified = FALSE
		  AND end_time > $1
		  AND end_time <= $2
		ORDER BY end_time ASC`
	rows, err := r.q.Query(ctx, query, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to find ending-soon auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*entities.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

// MarkEndingSoonNotified records that the reminder was sent
func (r *AuctionRepository) MarkEndingSoonNotified(ctx context.Context, auctionID int64) error {
	if _, err := r.q.Exec(ctx, `UPDATE auctions SET ending_soon_notified = TRUE WHERE id = $1`, auctionID); err != nil {
		return fmt.Errorf("failed to mark auction %d notified: %w", auctionID, err)
	}
	return nil
}
