package entities

import (
	"time"
)

// AuctionStatus represents the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "draft"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusPending   AuctionStatus = "pending"   // ended with a winner, settlement in progress
	AuctionStatusCompleted AuctionStatus = "completed" // funds transferred to the seller
	AuctionStatusFailed    AuctionStatus = "failed"    // ended with zero bids
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// IsTerminal returns true for states with no outgoing transitions
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionStatusCompleted || s == AuctionStatusFailed || s == AuctionStatusCancelled
}

// Auction represents a timed listing. CurrentPrice only increases while
// Active; once a terminal state is reached the record is immutable except for
// settlement metadata written exactly once.
type Auction struct {
	ID                 int64         `db:"id"`
	SellerID           int64         `db:"seller_id"`
	Title              string        `db:"title"`
	Description        string        `db:"description"`
	CurrentPrice       int64         `db:"current_price"`
	BidIncrement       int64         `db:"bid_increment"`
	StartTime          time.Time     `db:"start_time"`
	EndTime            time.Time     `db:"end_time"`
	Status             AuctionStatus `db:"status"`
	WinnerID           *int64        `db:"winner_id"`
	FinalPrice         *int64        `db:"final_price"`
	EndingSoonNotified bool          `db:"ending_soon_notified"`
	CreatedAt          time.Time     `db:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"`
}

// IsActive returns true if the auction currently accepts bids
func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}

// HasEnded returns true once the end time has passed
func (a *Auction) HasEnded(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// IsDueToStart returns true for drafts whose scheduled start has arrived
func (a *Auction) IsDueToStart(now time.Time) bool {
	return a.Status == AuctionStatusDraft && !now.Before(a.StartTime)
}

// MinimumNextBid returns the lowest amount the next bid must reach
func (a *Auction) MinimumNextBid() int64 {
	return a.CurrentPrice + a.BidIncrement
}

// InAntiSnipeWindow returns true when the remaining time is inside the
// anti-snipe window
func (a *Auction) InAntiSnipeWindow(now time.Time, window time.Duration) bool {
	return a.EndTime.Sub(now) < window
}

// CanTransitionTo validates a status transition against the lifecycle state
// machine
func (a *Auction) CanTransitionTo(target AuctionStatus) bool {
	switch a.Status {
	case AuctionStatusDraft:
		return target == AuctionStatusActive || target == AuctionStatusCancelled
	case AuctionStatusActive:
		return target == AuctionStatusPending || target == AuctionStatusFailed || target == AuctionStatusCancelled
	case AuctionStatusPending:
		return target == AuctionStatusCompleted || target == AuctionStatusCancelled
	default:
		return false
	}
}
