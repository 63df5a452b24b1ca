package repository

import (
	"context"
	"fmt"

	"auctioneer/database"
	"auctioneer/domain/entities"
	"auctioneer/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// BidRepository implements the BidRepository interface
type BidRepository struct {
	q Queryable
}

// NewBidRepository creates a new bid repository backed by the pool
func NewBidRepository(db *database.DB) *BidRepository {
	return &BidRepository{q: db.Pool}
}

func newBidRepository(tx Queryable) interfaces.BidRepository {
	return &BidRepository{q: tx}
}

const bidColumns = `
	id, auction_id, bidder_id, amount, held_amount, hold_released, is_winning, created_at`

func scanBid(row pgx.Row) (*entities.Bid, error) {
	var bid entities.Bid
	err := row.Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.HeldAmount,
		&bid.HoldReleased,
		&bid.IsWinning,
		&bid.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// Create creates a new bid row
func (r *BidRepository) Create(ctx context.Context, bid *entities.Bid) error {
	query := `
		INSERT INTO bids (auction_id, bidder_id, amount, held_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query, bid.AuctionID, bid.BidderID, bid.Amount, bid.HeldAmount).
		Scan(&bid.ID, &bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bid on auction %d: %w", bid.AuctionID, err)
	}
	return nil
}

// GetByID retrieves a bid by its ID
func (r *BidRepository) GetByID(ctx context.Context, id int64) (*entities.Bid, error) {
	query := `SELECT` + bidColumns + ` FROM bids WHERE id = $1`
	bid, err := scanBid(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get bid %d: %w", id, err)
	}
	return bid, nil
}

// GetSummary computes the read-only bid projection for an auction. The leader
// ordering is amount descending with the earlier bid winning ties.
func (r *BidRepository) GetSummary(ctx context.Context, auctionID int64) (*entities.AuctionBidSummary, error) {
	summary := &entities.AuctionBidSummary{AuctionID: auctionID}

	leaderQuery := `
		SELECT` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC, id ASC
		LIMIT 1`
	leader, err := scanBid(r.q.QueryRow(ctx, leaderQuery, auctionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get leading bid for auction %d: %w", auctionID, err)
	}
	summary.HighestBid = leader

	statsQuery := `
		SELECT COUNT(*),
		       COALESCE((
		           SELECT SUM(per_bidder.held)
		           FROM (
		               SELECT MAX(held_amount) AS held
		               FROM bids
		               WHERE auction_id = $1 AND hold_released = FALSE
		               GROUP BY bidder_id
		           ) per_bidder
		       ), 0)
		FROM bids
		WHERE auction_id = $1`
	if err := r.q.QueryRow(ctx, statsQuery, auctionID).Scan(&summary.BidCount, &summary.TotalEscrowed); err != nil {
		return nil, fmt.Errorf("failed to get bid stats for auction %d: %w", auctionID, err)
	}
	return summary, nil
}

// GetActiveHoldAmount returns the bidder's cumulative unreleased held amount
// on an auction. Held amounts are cumulative per bid row, so the bidder's
// current hold is the maximum over unreleased rows.
func (r *BidRepository) GetActiveHoldAmount(ctx context.Context, auctionID, bidderID int64) (int64, error) {
	query := `
		SELECT COALESCE(MAX(held_amount), 0)
		FROM bids
		WHERE auction_id = $1 AND bidder_id = $2 AND hold_released = FALSE`
	var held int64
	if err := r.q.QueryRow(ctx, query, auctionID, bidderID).Scan(&held); err != nil {
		return 0, fmt.Errorf("failed to get hold for bidder %d on auction %d: %w", bidderID, auctionID, err)
	}
	return held, nil
}

// GetBiddersWithActiveHolds returns every bidder holding unreleased escrow on
// an auction with their cumulative held amounts
func (r *BidRepository) GetBiddersWithActiveHolds(ctx context.Context, auctionID int64) (map[int64]int64, error) {
	query := `
		SELECT bidder_id, MAX(held_amount)
		FROM bids
		WHERE auction_id = $1 AND hold_released = FALSE
		GROUP BY bidder_id`
	rows, err := r.q.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active holds for auction %d: %w", auctionID, err)
	}
	defer rows.Close()

	holds := make(map[int64]int64)
	for rows.Next() {
		var bidderID, held int64
		if err := rows.Scan(&bidderID, &held); err != nil {
			return nil, fmt.Errorf("failed to scan hold row: %w", err)
		}
		holds[bidderID] = held
	}
	return holds, rows.Err()
}

// MarkHoldsReleased flips hold_released on all of a bidder's unreleased rows
// for an auction
func (r *BidRepository) MarkHoldsReleased(ctx context.Context, auctionID, bidderID int64) error {
	query := `
		UPDATE bids
		SET hold_released = TRUE
		WHERE auction_id = $1 AND bidder_id = $2 AND hold_released = FALSE`
	if _, err := r.q.Exec(ctx, query, auctionID, bidderID); err != nil {
		return fmt.Errorf("failed to release holds for bidder %d on auction %d: %w", bidderID, auctionID, err)
	}
	return nil
}

// MarkWinning flags the winning bid of a settled auction
func (r *BidRepository) MarkWinning(ctx context.Context, bidID int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE bids SET is_winning = TRUE WHERE id = $1`, bidID)
	if err != nil {
		return fmt.Errorf("failed to mark bid %d winning: %w", bidID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bid %d not found", bidID)
	}
	return nil
}
