package interfaces

import (
	"context"
	"time"

	"auctioneer/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByIDForUpdate retrieves a user with a row lock, serializing ledger
	// operations per user balance. Only valid inside a unit of work.
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error)

	// Create creates a new user with the initial available balance
	Create(ctx context.Context, username, email string, initialBalance int64) (*entities.User, error)

	// UpdateBalance persists all three balance pools for a user
	UpdateBalance(ctx context.Context, userID int64, balance entities.Balance) error
}

// TransactionRepository defines the interface for the immutable ledger
type TransactionRepository interface {
	// Record writes a new ledger entry, populating its ID
	Record(ctx context.Context, txn *entities.Transaction) error

	// Update persists status, confirmation flags and updated-at of a
	// two-sided entry. All other columns are immutable.
	Update(ctx context.Context, txn *entities.Transaction) error

	// GetPendingPaymentByAuction returns the pending payment entry for an
	// auction, or nil if none exists
	GetPendingPaymentByAuction(ctx context.Context, auctionID int64) (*entities.Transaction, error)

	// GetByUser returns the most recent entries for a user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.Transaction, error)
}

// BidRepository defines the interface for bid data access
type BidRepository interface {
	// Create creates a new bid row
	Create(ctx context.Context, bid *entities.Bid) error

	// GetByID retrieves a bid by its ID
	GetByID(ctx context.Context, id int64) (*entities.Bid, error)

	// GetSummary computes the read-only bid projection for an auction:
	// current leader, bid count, total unreleased escrow
	GetSummary(ctx context.Context, auctionID int64) (*entities.AuctionBidSummary, error)

	// GetActiveHoldAmount returns the bidder's cumulative unreleased held
	// amount on an auction, 0 if none
	GetActiveHoldAmount(ctx context.Context, auctionID, bidderID int64) (int64, error)

	// GetBiddersWithActiveHolds returns bidder IDs holding unreleased escrow
	// on an auction, with each bidder's cumulative held amount
	GetBiddersWithActiveHolds(ctx context.Context, auctionID int64) (map[int64]int64, error)

	// MarkHoldsReleased flips hold_released on all of a bidder's unreleased
	// rows for an auction
	MarkHoldsReleased(ctx context.Context, auctionID, bidderID int64) error

	// MarkWinning flags the winning bid of a settled auction
	MarkWinning(ctx context.Context, bidID int64) error
}

// AuctionRepository defines the interface for auction data access
type AuctionRepository interface {
	// Create creates a new auction
	Create(ctx context.Context, auction *entities.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id int64) (*entities.Auction, error)

	// GetByIDForUpdate retrieves an auction with a row lock so concurrent
	// bids and the reconcile sweep serialize per auction
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Auction, error)

	// Update persists the auction's mutable fields
	Update(ctx context.Context, auction *entities.Auction) error

	// FindDueToStart returns draft auction IDs whose start time has passed
	FindDueToStart(ctx context.Context, now time.Time, limit int) ([]int64, error)

	// FindExpired returns active auction IDs whose end time has passed
	FindExpired(ctx context.Context, now time.Time, limit int) ([]int64, error)

	// FindEndingSoon returns active, not-yet-notified auctions ending within
	// the window
	FindEndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]*entities.Auction, error)

	// MarkEndingSoonNotified records that the reminder was sent
	MarkEndingSoonNotified(ctx context.Context, auctionID int64) error
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create creates a new order
	Create(ctx context.Context, order *entities.Order) error

	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id int64) (*entities.Order, error)

	// GetByIDForUpdate retrieves an order with a row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Order, error)

	// GetByAuctionID returns the order for an auction, or nil if none exists
	GetByAuctionID(ctx context.Context, auctionID int64) (*entities.Order, error)

	// Update persists the order's mutable fields
	Update(ctx context.Context, order *entities.Order) error
}

// WithdrawalRepository defines the interface for withdrawal request data
// access
type WithdrawalRepository interface {
	// Create creates a new withdrawal request
	Create(ctx context.Context, request *entities.WithdrawalRequest) error

	// GetByID retrieves a request by ID
	GetByID(ctx context.Context, id int64) (*entities.WithdrawalRequest, error)

	// GetByIDForUpdate retrieves a request with a row lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.WithdrawalRequest, error)

	// Update persists the request's mutable fields
	Update(ctx context.Context, request *entities.WithdrawalRequest) error

	// CountByUserSince returns the number of requests a user created since
	// the given time, excluding cancelled ones
	CountByUserSince(ctx context.Context, userID int64, since time.Time) (int, error)

	// SumAmountByUserSince returns the total requested amount since the
	// given time, excluding cancelled requests
	SumAmountByUserSince(ctx context.Context, userID int64, since time.Time) (int64, error)
}
