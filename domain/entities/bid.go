package entities

import "time"

// Bid represents a single bid on an auction. HeldAmount is the bidder's
// cumulative escrowed amount on the auction as of this bid, so a bidder
// raising their own bid produces a new row whose HeldAmount covers all prior
// rows. HoldReleased flips exactly once, on outbid or settlement; rows are
// never deleted.
type Bid struct {
	ID           int64     `db:"id"`
	AuctionID    int64     `db:"auction_id"`
	BidderID     int64     `db:"bidder_id"`
	Amount       int64     `db:"amount"`
	HeldAmount   int64     `db:"held_amount"`
	HoldReleased bool      `db:"hold_released"`
	IsWinning    bool      `db:"is_winning"`
	CreatedAt    time.Time `db:"created_at"`
}

// Outranks reports whether this bid beats other under the ranking
// (amount desc, earlier timestamp wins ties). Exact ties cannot occur while
// the increment rule holds; the ordering is defined defensively.
func (b *Bid) Outranks(other *Bid) bool {
	if other == nil {
		return true
	}
	if b.Amount != other.Amount {
		return b.Amount > other.Amount
	}
	return b.CreatedAt.Before(other.CreatedAt)
}

// AuctionBidSummary is a read-only projection of an auction's bid state,
// computed on demand. Both the bid engine and the lifecycle driver read the
// leader from here, so they can never disagree on the winner.
type AuctionBidSummary struct {
	AuctionID     int64
	HighestBid    *Bid  // nil when the auction has no bids
	BidCount      int
	TotalEscrowed int64 // sum of unreleased held amounts across bidders
}

// HasBids returns true if at least one bid has been placed
func (s *AuctionBidSummary) HasBids() bool {
	return s.BidCount > 0
}
