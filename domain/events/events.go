package events

import "auctioneer/domain/entities"

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeTransactionRecorded     EventType = "transaction_recorded"
	EventTypeOutbid                  EventType = "outbid"
	EventTypeAuctionPriceChanged     EventType = "auction_price_changed"
	EventTypeAuctionActivated        EventType = "auction_activated"
	EventTypeAuctionEnded            EventType = "auction_ended"
	EventTypeOrderStatusChanged      EventType = "order_status_changed"
	EventTypeWithdrawalStatusChanged EventType = "withdrawal_status_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// TransactionRecordedEvent is emitted for every ledger entry written
type TransactionRecordedEvent struct {
	UserID          int64
	TransactionType entities.TransactionType
	Pool            entities.BalancePool
	Amount          int64
	BalanceBefore   int64
	BalanceAfter    int64
	AuctionID       *int64
}

func (e TransactionRecordedEvent) Type() EventType {
	return EventTypeTransactionRecorded
}

// OutbidEvent notifies a bidder that their hold was released by a higher bid
type OutbidEvent struct {
	AuctionID      int64
	OutbidUserID   int64
	NewLeaderID    int64
	NewPrice       int64
	ReleasedAmount int64
}

func (e OutbidEvent) Type() EventType {
	return EventTypeOutbid
}

// AuctionPriceChangedEvent notifies auction watchers of a new current price
type AuctionPriceChangedEvent struct {
	AuctionID int64
	NewPrice  int64
	BidderID  int64
	EndTime   int64 // unix seconds, reflects anti-snipe extensions
}

func (e AuctionPriceChangedEvent) Type() EventType {
	return EventTypeAuctionPriceChanged
}

// AuctionActivatedEvent marks a draft auction going live
type AuctionActivatedEvent struct {
	AuctionID int64
	SellerID  int64
}

func (e AuctionActivatedEvent) Type() EventType {
	return EventTypeAuctionActivated
}

// AuctionEndedEvent marks an auction reaching the end of bidding
type AuctionEndedEvent struct {
	AuctionID  int64
	SellerID   int64
	Status     entities.AuctionStatus
	WinnerID   *int64
	FinalPrice *int64
}

func (e AuctionEndedEvent) Type() EventType {
	return EventTypeAuctionEnded
}

// OrderStatusChangedEvent tracks the fulfillment handshake
type OrderStatusChangedEvent struct {
	OrderID   int64
	AuctionID int64
	BuyerID   int64
	SellerID  int64
	OldStatus entities.OrderStatus
	NewStatus entities.OrderStatus
}

func (e OrderStatusChangedEvent) Type() EventType {
	return EventTypeOrderStatusChanged
}

// WithdrawalStatusChangedEvent tracks a withdrawal request through its
// workflow
type WithdrawalStatusChangedEvent struct {
	WithdrawalID int64
	UserID       int64
	OldStatus    entities.WithdrawalStatus
	NewStatus    entities.WithdrawalStatus
	Amount       int64
}

func (e WithdrawalStatusChangedEvent) Type() EventType {
	return EventTypeWithdrawalStatusChanged
}
